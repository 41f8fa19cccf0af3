package storage

import (
	"context"
	"time"

	"github.com/larsjoon/joonify/pkg/stats"
)

// DefaultKey is the key under which the snapshot is persisted.
const DefaultKey = "stats"

// Store persists the canonical stats snapshot.
type Store interface {
	// Get returns the persisted snapshot, or an empty snapshot when nothing
	// has been stored yet.
	Get(ctx context.Context) (stats.Snapshot, error)
	// Put replaces the persisted snapshot.
	Put(ctx context.Context, snap stats.Snapshot) error
	// Close releases backend resources.
	Close() error
}

// Pinger is implemented by stores that can report backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config for storage backend
type Config struct {
	Type    string        `yaml:"type"` // "memory", "filesystem", "redis", "postgres", "sqlite", "s3"
	Key     string        `yaml:"key"`
	Timeout time.Duration `yaml:"timeout"`

	// Filesystem config
	FilesystemRoot string `yaml:"filesystem_root"`

	// SQL config (postgres, sqlite)
	SQLDSN string `yaml:"sql_dsn"`

	// Redis config
	RedisURL        string `yaml:"redis_url"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
	RedisMaxRetries int    `yaml:"redis_max_retries"`
	RedisPoolSize   int    `yaml:"redis_pool_size"`

	// S3 config
	S3Endpoint     string `yaml:"s3_endpoint"`
	S3Region       string `yaml:"s3_region"`
	S3Bucket       string `yaml:"s3_bucket"`
	S3AccessKey    string `yaml:"s3_access_key"`
	S3SecretKey    string `yaml:"s3_secret_key"`
	S3UsePathStyle bool   `yaml:"s3_use_path_style"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:            "filesystem",
		Key:             DefaultKey,
		Timeout:         5 * time.Second,
		FilesystemRoot:  "/var/lib/joonify",
		RedisURL:        "redis://localhost:6379/0",
		RedisDB:         -1,
		RedisMaxRetries: 3,
		RedisPoolSize:   10,
		S3Region:        "us-east-1",
	}
}
