package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
)

// sweepEvery is the number of claims between scans for expired keys
const sweepEvery = 256

type claim struct {
	owner     string
	expiresAt time.Time
}

// InMemoryIdempotencyStore keeps idempotency claims in process memory. It
// serves the memory store and single-process sqlite ledgers; ledgers shared
// by several processes need the Redis store. Expired keys are dropped on
// access and by a sweep every sweepEvery claims, so no goroutine is needed.
type InMemoryIdempotencyStore struct {
	mu     sync.Mutex
	claims map[string]claim
	calls  int
	now    func() time.Time
}

func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	return &InMemoryIdempotencyStore{claims: make(map[string]claim), now: time.Now}
}

// Claim binds key to value for ttl if the key is free or expired
func (s *InMemoryIdempotencyStore) Claim(_ context.Context, key, value string, ttl time.Duration) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.calls++; s.calls%sweepEvery == 0 {
		s.sweep(now)
	}
	if c, ok := s.claims[key]; ok && now.Before(c.expiresAt) {
		return c.owner, false, nil
	}
	s.claims[key] = claim{owner: value, expiresAt: now.Add(ttl)}
	return value, true, nil
}

// Release frees a key; unknown keys are ignored
func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.claims, key)
	s.mu.Unlock()
	return nil
}

// Close drops every claim
func (s *InMemoryIdempotencyStore) Close() error {
	s.mu.Lock()
	clear(s.claims)
	s.mu.Unlock()
	return nil
}

func (s *InMemoryIdempotencyStore) sweep(now time.Time) {
	for key, c := range s.claims {
		if !now.Before(c.expiresAt) {
			delete(s.claims, key)
		}
	}
}

// Len returns the number of stored claims, expired ones included
func (s *InMemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.claims)
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
