package storage

import (
	"context"
	"sync"

	"github.com/larsjoon/joonify/pkg/stats"
)

// MemoryStore keeps the encoded snapshot in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get implements Store.Get
func (s *MemoryStore) Get(ctx context.Context) (stats.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.data == nil {
		return stats.Snapshot{}, nil
	}
	return stats.Parse(s.data)
}

// Put implements Store.Put
func (s *MemoryStore) Put(ctx context.Context, snap stats.Snapshot) error {
	data, err := snap.Encode()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

// Close implements Store.Close
func (s *MemoryStore) Close() error {
	return nil
}
