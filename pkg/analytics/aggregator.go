package analytics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/larsjoon/joonify/pkg/observability"
	"github.com/larsjoon/joonify/pkg/signature"
	"github.com/larsjoon/joonify/pkg/stats"
)

var tracer = otel.Tracer("joonify/analytics")

// DefaultCycleTimeout bounds one aggregation cycle when Config leaves it unset.
const DefaultCycleTimeout = 30 * time.Second

// StatsEndpoint is the stats actor as seen by the aggregator. It is
// implemented in-process by *actor.Actor and over HTTP by *actor.Client.
type StatsEndpoint interface {
	Stats(ctx context.Context, secret string) (stats.Snapshot, error)
	Update(ctx context.Context, body []byte, tag string) error
}

// Config configures an Aggregator.
type Config struct {
	// ZoneTag identifies the analytics zone to query.
	ZoneTag string
	// Secret authenticates the stats read and signs the update.
	Secret string
	// CycleTimeout bounds one whole cycle.
	CycleTimeout time.Duration
	// Logger defaults to an info-level JSON logger on stdout.
	Logger *observability.Logger
	// Metrics is optional.
	Metrics *observability.Metrics
	// Now defaults to time.Now.
	Now func() time.Time
}

// CycleResult summarizes a successful cycle.
type CycleResult struct {
	Success       bool                 `json:"success"`
	Visitors      int64                `json:"visitors"`
	Countries     int                  `json:"countries"`
	MapDataLength int                  `json:"mapDataLength"`
	MapData       []stats.CountryCount `json:"mapData"`
}

// Aggregator runs aggregation cycles.
type Aggregator struct {
	provider Provider
	endpoint StatsEndpoint
	zoneTag  string
	secret   string
	timeout  time.Duration
	logger   *observability.Logger
	metrics  *observability.Metrics
	now      func() time.Time

	group singleflight.Group
}

// NewAggregator creates an aggregator reading from provider and writing to endpoint.
func NewAggregator(provider Provider, endpoint StatsEndpoint, cfg Config) *Aggregator {
	timeout := cfg.CycleTimeout
	if timeout <= 0 {
		timeout = DefaultCycleTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Aggregator{
		provider: provider,
		endpoint: endpoint,
		zoneTag:  cfg.ZoneTag,
		secret:   cfg.Secret,
		timeout:  timeout,
		logger:   logger.WithField("component", "aggregator"),
		metrics:  cfg.Metrics,
		now:      now,
	}
}

// Run executes one aggregation cycle. Calls made while a cycle is in flight
// wait for it and share its result; a call made after it finished starts a
// new cycle. Cancelling ctx does not stop a started cycle; only the cycle
// timeout does.
func (a *Aggregator) Run(ctx context.Context) (*CycleResult, error) {
	v, err, shared := a.group.Do("cycle", func() (interface{}, error) {
		return a.runCycle(context.WithoutCancel(ctx))
	})
	if shared {
		a.logger.Debug("Joined in-flight aggregation cycle")
	}
	if err != nil {
		return nil, err
	}
	return v.(*CycleResult), nil
}

func (a *Aggregator) runCycle(ctx context.Context) (*CycleResult, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "Aggregator.Run")
	defer span.End()

	result, err := a.cycle(ctx)
	duration := time.Since(start)

	if a.metrics != nil {
		a.metrics.AggregationDuration.Observe(duration.Seconds())
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregation cycle failed")
		a.count("error")
		a.logger.WithError(err).WithField("duration_ms", duration.Milliseconds()).Error("Aggregation cycle failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("visitors", result.Visitors),
		attribute.Int("countries", result.Countries),
	)
	span.SetStatus(codes.Ok, "")
	a.count("ok")
	if a.metrics != nil {
		a.metrics.VisitorsCount.Set(float64(result.Visitors))
		a.metrics.CountriesCount.Set(float64(result.Countries))
	}
	a.logger.WithFields(map[string]interface{}{
		"visitors":    result.Visitors,
		"countries":   result.Countries,
		"duration_ms": duration.Milliseconds(),
	}).Info("Aggregation cycle completed")
	return result, nil
}

func (a *Aggregator) cycle(ctx context.Context) (*CycleResult, error) {
	zone, err := a.provider.Query(ctx, a.zoneTag, NewWindows(a.now()))
	if err != nil {
		return nil, fmt.Errorf("analytics query failed: %w", err)
	}

	visitors := SumUniques(zone.DailyGroups)
	mapData := FoldCountries(zone.AdaptiveGroups).MapData()

	current, err := a.endpoint.Stats(ctx, a.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to read current stats: %w", err)
	}

	update := current.Clone()
	update.SetInt(stats.KeyVisitorsCount, visitors)
	update.SetInt(stats.KeyCountriesCount, int64(len(mapData)))
	update.SetMapData(mapData)

	body, err := update.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode stats update: %w", err)
	}

	if err := a.endpoint.Update(ctx, body, signature.Sign(a.secret, body)); err != nil {
		return nil, fmt.Errorf("failed to submit stats update: %w", err)
	}

	return &CycleResult{
		Success:       true,
		Visitors:      visitors,
		Countries:     len(mapData),
		MapDataLength: len(mapData),
		MapData:       mapData,
	}, nil
}

func (a *Aggregator) count(result string) {
	if a.metrics != nil {
		a.metrics.AggregationCyclesTotal.WithLabelValues(result).Inc()
	}
}
