package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/larsjoon/joonify/pkg/stats"
)

// FileStore persists the snapshot as a JSON file on the local filesystem.
type FileStore struct {
	rootDir string
	path    string
}

// NewFileStore creates a filesystem-based store writing <rootDir>/<key>.json.
func NewFileStore(rootDir, key string) (*FileStore, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("filesystem root is required")
	}
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &FileStore{
		rootDir: rootDir,
		path:    filepath.Join(rootDir, key+".json"),
	}, nil
}

// Get implements Store.Get
func (s *FileStore) Get(ctx context.Context) (stats.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return stats.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read stats file: %w", err)
	}
	return stats.Parse(data)
}

// Put implements Store.Put. The file is replaced atomically so a crash never
// leaves a truncated snapshot behind.
func (s *FileStore) Put(ctx context.Context, snap stats.Snapshot) error {
	data, err := snap.Encode()
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	tmp, err := os.CreateTemp(s.rootDir, ".stats-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write stats file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write stats file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace stats file: %w", err)
	}
	return nil
}

// Ping checks that the root directory is still reachable.
func (s *FileStore) Ping(ctx context.Context) error {
	_, err := os.Stat(s.rootDir)
	return err
}

// Close implements Store.Close
func (s *FileStore) Close() error {
	return nil
}
