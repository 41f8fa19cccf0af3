// Package storage provides durable persistence for the live stats snapshot.
//
// # Overview
//
// The stats actor is the only caller of this package. It reads the snapshot,
// merges an update into it and writes it back; the actor's own locking keeps
// writers from interleaving, so backends need no versioning or CAS.
//
// Every backend stores a single key ("stats" by default) whose value is the
// JSON encoding of the snapshot.
//
// # Backends
//
//   - memory: in-process copy, for tests; must be selected explicitly
//   - filesystem: <root>/<key>.json written atomically; the default
//   - redis: plain string key
//   - postgres, sqlite: row in a kv(key, value) table
//   - s3: object joonify/<key>.json in a bucket
//
// # Usage Example
//
//	store, err := storage.New(ctx, storage.Config{
//		Type:     "redis",
//		Key:      "stats",
//		RedisURL: "redis://localhost:6379/0",
//		Timeout:  5 * time.Second,
//	})
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	snap, err := store.Get(ctx)
//
// # Related Packages
//
//   - pkg/actor: Owns the store
//   - pkg/stats: Snapshot type
package storage
