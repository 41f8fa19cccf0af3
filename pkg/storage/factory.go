package storage

import (
	"context"
	"fmt"
)

// New opens the backend selected by cfg.Type. When cfg.Timeout is positive
// every call on the returned store is bounded by it.
func New(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}

	var (
		store Store
		err   error
	)
	switch cfg.Type {
	case "", "memory":
		store = NewMemoryStore()
	case "filesystem":
		store, err = NewFileStore(cfg.FilesystemRoot, cfg.Key)
	case "redis":
		store, err = NewRedisStore(ctx, cfg)
	case "postgres", "sqlite":
		store, err = OpenSQLStore(ctx, cfg.Type, cfg.SQLDSN, cfg.Key)
	case "s3":
		store, err = NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Type, err)
	}

	return WithTimeout(store, backendName(cfg.Type), cfg.Timeout), nil
}

func backendName(t string) string {
	if t == "" {
		return "memory"
	}
	return t
}
