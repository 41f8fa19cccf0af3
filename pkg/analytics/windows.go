package analytics

import "time"

const (
	visitorsWindow  = 30 * 24 * time.Hour
	countriesWindow = 23 * time.Hour
)

// Windows holds the filter bounds of one query.
type Windows struct {
	// VisitorsSince is the exclusive start date (YYYY-MM-DD) of the 30-day window.
	VisitorsSince string
	// CountriesSince is the exclusive start (RFC3339) of the 23-hour window.
	CountriesSince string
}

// NewWindows computes both windows relative to now. The country window is
// 23 hours rather than 24 to stay inside the provider's one-day limit for
// adaptive queries.
func NewWindows(now time.Time) Windows {
	now = now.UTC()
	return Windows{
		VisitorsSince:  now.Add(-visitorsWindow).Format("2006-01-02"),
		CountriesSince: now.Add(-countriesWindow).Format(time.RFC3339),
	}
}
