// Package invalidation marks server-rendered views stale after mutations and
// serves cached renders until their view path is invalidated.
package invalidation

import (
	"context"
	"sync"
)

// Store keeps one generation counter per view path.
// A path's generation only moves forward; a render is fresh while it matches.
type Store interface {
	Bump(ctx context.Context, path string) (int64, error)
	Generation(ctx context.Context, path string) (int64, error)
}

// MemoryStore is an in-process Store for single-instance deployments
type MemoryStore struct {
	mu   sync.Mutex
	gens map[string]int64
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{gens: make(map[string]int64)}
}

func (s *MemoryStore) Bump(_ context.Context, path string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[path]++
	return s.gens[path], nil
}

func (s *MemoryStore) Generation(_ context.Context, path string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[path], nil
}
