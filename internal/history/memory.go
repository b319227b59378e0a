package history

import (
	"context"
	"sync"
)

// MemoryStore keeps lists for the lifetime of the process. Used in dev and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	lists map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{lists: make(map[string][]string)}
}

func (s *MemoryStore) Push(_ context.Context, key, value string, limit int) error {
	s.mu.Lock()
	s.lists[key] = Prepend(s.lists[key], value, limit)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(_ context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.lists[key]...), nil
}

func (s *MemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.lists, key)
	s.mu.Unlock()
	return nil
}
