package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/catalogsync/internal/domain/shared"
)

// InMemoryIdempotencyStore implements IdempotencyStore using an in-memory map.
// Claims do not survive the process, so it suits tests and local CLI runs only.
type InMemoryIdempotencyStore struct {
	mu        sync.RWMutex
	entries   map[string]time.Time // token -> expiry
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryIdempotencyStore creates a new in-memory store.
// It starts a background goroutine that sweeps expired claims.
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		entries:  make(map[string]time.Time),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop(5 * time.Minute)

	return store
}

// MarkProcessed claims token with a TTL.
// Returns true if the token was newly claimed, false if a live claim exists
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, token string, ttl time.Duration) (bool, error) {
	if token == "" {
		return false, ErrEmptyToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiresAt, ok := s.entries[token]; ok && now.Before(expiresAt) {
		return false, nil
	}
	s.entries[token] = now.Add(ttl)
	return true, nil
}

// IsProcessed checks if a token holds a live claim
func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, token string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiresAt, ok := s.entries[token]
	return ok && s.now().Before(expiresAt), nil
}

// Close stops the cleanup goroutine. Safe to call multiple times
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryIdempotencyStore) cleanupLoop(every time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup removes expired claims
func (s *InMemoryIdempotencyStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for token, expiresAt := range s.entries {
		if !now.Before(expiresAt) {
			delete(s.entries, token)
		}
	}
}

// Size returns the number of stored claims, live or not
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
