package analytics

import (
	"sort"

	"github.com/larsjoon/joonify/pkg/stats"
)

// CountryAggregate maps a country code to its summed request count.
type CountryAggregate map[string]int64

// SumUniques returns the sum of uniques over all daily groups.
func SumUniques(groups []DailyGroup) int64 {
	var total int64
	for _, g := range groups {
		total += g.Uniq.Uniques
	}
	return total
}

// FoldCountries sums counts per country code, skipping empty codes and the
// XX and T1 placeholders.
func FoldCountries(groups []AdaptiveGroup) CountryAggregate {
	agg := make(CountryAggregate)
	for _, g := range groups {
		code := g.Dimensions.ClientCountryName
		if !countable(code) {
			continue
		}
		agg[code] += g.Count
	}
	return agg
}

func countable(code string) bool {
	switch code {
	case "", "XX", "T1":
		return false
	default:
		return true
	}
}

// MapData returns the aggregate as map-data entries, highest count first,
// ties ordered by code.
func (c CountryAggregate) MapData() []stats.CountryCount {
	out := make([]stats.CountryCount, 0, len(c))
	for code, count := range c {
		out = append(out, stats.CountryCount{Code: code, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Code < out[j].Code
	})
	return out
}
