package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/larsjoon/joonify/pkg/stats"
)

const createKVTable = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// SQLStore persists the snapshot as one row of a kv table. It works against
// PostgreSQL and SQLite, which share the upsert syntax used here.
type SQLStore struct {
	db      *sql.DB
	key     string
	driver  string
	ownsDB  bool
	selectQ string
	upsertQ string
}

// OpenSQLStore connects to the database, verifies the connection and creates
// the kv table when missing. kind is "postgres" or "sqlite".
func OpenSQLStore(ctx context.Context, kind, dsn, key string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sql DSN is required for %s storage", kind)
	}

	driver := kind
	if kind == "sqlite" {
		driver = "sqlite3"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", kind, err)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)
	if driver == "sqlite3" {
		// A single connection keeps in-memory databases alive and avoids
		// SQLITE_BUSY between writers.
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", kind, err)
	}

	store := NewSQLStore(db, driver, key)
	store.ownsDB = true

	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStore wraps an open database handle. The caller keeps ownership of db.
func NewSQLStore(db *sql.DB, driver, key string) *SQLStore {
	if key == "" {
		key = DefaultKey
	}
	s := &SQLStore{db: db, key: key, driver: driver}
	if driver == "postgres" {
		s.selectQ = `SELECT value FROM kv WHERE key = $1`
		s.upsertQ = `INSERT INTO kv (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = excluded.value`
	} else {
		s.selectQ = `SELECT value FROM kv WHERE key = ?`
		s.upsertQ = `INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value`
	}
	return s
}

// Migrate creates the kv table when it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createKVTable); err != nil {
		return fmt.Errorf("failed to create kv table: %w", err)
	}
	return nil
}

// Get implements Store.Get
func (s *SQLStore) Get(ctx context.Context) (stats.Snapshot, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.selectQ, s.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return stats.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	return stats.Parse([]byte(value))
}

// Put implements Store.Put
func (s *SQLStore) Put(ctx context.Context, snap stats.Snapshot) error {
	data, err := snap.Encode()
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.upsertQ, s.key, string(data)); err != nil {
		return fmt.Errorf("failed to upsert stats: %w", err)
	}
	return nil
}

// Ping checks database connectivity
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database when the store opened it.
func (s *SQLStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}
