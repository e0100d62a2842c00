package repository

import (
	"context"
	"sync"
)

// MemorySnapshotStore is an in-process SnapshotStore used when Redis is
// disabled. Snapshots do not survive a restart.
type MemorySnapshotStore struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemorySnapshotStore creates an empty in-memory store.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{items: make(map[string]string)}
}

func (s *MemorySnapshotStore) GetItem(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.items[key]
	return val, ok, nil
}

func (s *MemorySnapshotStore) SetItem(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	return nil
}

func (s *MemorySnapshotStore) RemoveItem(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}
