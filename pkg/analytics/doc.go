// Package analytics turns website-traffic analytics into stats updates.
//
// # Overview
//
// One aggregation cycle queries the analytics provider for two windows, folds
// the answer into three stat keys and submits them to the stats actor as a
// signed partial snapshot:
//
//   - visitors-count: sum of daily unique visitors over the last 30 days
//   - countries-count: number of distinct visitor countries over the last 23 hours
//   - map-data: per-country request counts over the last 23 hours
//
// Country codes "XX" (unknown) and "T1" (Tor) are never counted. map-data is
// ordered by count, highest first, ties broken by code.
//
// The cycle reads the current snapshot, overwrites the three keys, signs the
// whole body and posts it back. Any failure aborts the cycle before the
// write, so a failed cycle never changes persisted state.
//
// # Usage Example
//
//	provider := analytics.NewCloudflareProvider(analytics.CloudflareConfig{
//		Token:   cfg.AnalyticsToken,
//		Timeout: 10 * time.Second,
//	})
//	agg := analytics.NewAggregator(provider, statsActor, analytics.Config{
//		ZoneTag: cfg.ZoneTag,
//		Secret:  cfg.Secret,
//	})
//	result, err := agg.Run(ctx)
//
// Concurrent calls to Run share one in-flight cycle.
//
// # Related Packages
//
//   - pkg/actor: Implements StatsEndpoint
//   - pkg/signature: Signs the update body
//   - pkg/stats: Snapshot keys and map-data entries
package analytics
