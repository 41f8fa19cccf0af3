// Package stats defines the canonical live statistics snapshot.
//
// # Overview
//
// A Snapshot maps stat keys to JSON numbers, plus one structured entry,
// "map-data", holding per-country request counts. Snapshots are merged
// shallowly: keys present in an update replace the stored value wholesale,
// keys absent from the update are preserved.
//
//	current := stats.Snapshot{}
//	current.SetInt("projects-count", 7)
//
//	update := stats.Snapshot{}
//	update.SetInt(stats.KeyVisitorsCount, 120)
//	update.SetMapData([]stats.CountryCount{{Code: "US", Count: 10}})
//
//	merged := current.Merge(update)
//	// {"map-data":[{"code":"US","count":10}],"projects-count":7,"visitors-count":120}
//
// # Invariants
//
// Validate rejects negative numbers, non-numeric stat values and duplicate
// country codes in map-data. Encode is deterministic (keys sorted), so the
// bytes persisted and the bytes broadcast are identical.
package stats
