package identity

import (
	"context"
	"sync"
)

// MemoryStore keeps identifiers for the lifetime of the process. Used in
// tests and as the fallback when no persistence is configured.
type MemoryStore struct {
	mu  sync.Mutex
	ids map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ids: make(map[string]string)}
}

func (s *MemoryStore) LoadOrStore(_ context.Context, key, candidate string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.ids[key]; ok {
		return id, nil
	}
	s.ids[key] = candidate
	return candidate, nil
}
