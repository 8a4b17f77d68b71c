package authrequest

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore is an in-process Store backed by go-cache.
// Suitable for single-instance deployments, development and tests.
type MemoryStore struct {
	mu  sync.Mutex
	c   *gocache.Cache
	ttl time.Duration
}

// NewMemoryStore creates a MemoryStore. ttl <= 0 uses DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		c:   gocache.New(ttl, time.Minute),
		ttl: ttl,
	}
}

// Save persists req under (sessionID, state).
func (s *MemoryStore) Save(ctx context.Context, sessionID string, req *AuthorizationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *req
	s.c.Set(storageKey(sessionID, req.State), &cp, s.ttl)
	return nil
}

// Consume retrieves and deletes in one critical section. The mutex is what
// guarantees that two callbacks racing on the same state see exactly one hit.
func (s *MemoryStore) Consume(ctx context.Context, sessionID, state string) (*AuthorizationRequest, error) {
	if state == "" {
		return nil, ErrNotFound
	}

	key := storageKey(sessionID, state)

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.c.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	s.c.Delete(key)

	req, ok := v.(*AuthorizationRequest)
	if !ok || req.State != state {
		// Hash collision or corrupted entry; treat as absent.
		return nil, ErrNotFound
	}
	cp := *req
	return &cp, nil
}
