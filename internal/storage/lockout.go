package storage

import (
	"context"
	"sync"
	"time"
)

// LockoutState is the brute-force envelope of one login key.
type LockoutState struct {
	FailedCount int
	LockedUntil time.Time
}

// Locked reports whether the key is still locked at now.
func (s LockoutState) Locked(now time.Time) bool {
	return now.Before(s.LockedUntil)
}

// LockoutStore counts failed logins per account, shared by every chat
// that tries the same phone.
type LockoutStore interface {
	Get(ctx context.Context, key string) (LockoutState, error)
	// RecordFailure counts a failure and sets LockedUntil once the count
	// reaches threshold.
	RecordFailure(ctx context.Context, key string, now time.Time, threshold int, window time.Duration) (LockoutState, error)
	Clear(ctx context.Context, key string) error
}

// MemoryLockoutStore keeps lockouts in process.
type MemoryLockoutStore struct {
	mu     sync.Mutex
	states map[string]LockoutState
}

func NewMemoryLockoutStore() *MemoryLockoutStore {
	return &MemoryLockoutStore{states: make(map[string]LockoutState)}
}

func (s *MemoryLockoutStore) Get(ctx context.Context, key string) (LockoutState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[key], nil
}

func (s *MemoryLockoutStore) RecordFailure(ctx context.Context, key string, now time.Time, threshold int, window time.Duration) (LockoutState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.states[key]
	state.FailedCount++
	if state.FailedCount >= threshold {
		state.LockedUntil = now.Add(window).UTC()
	}
	s.states[key] = state
	return state, nil
}

func (s *MemoryLockoutStore) Clear(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, key)
	return nil
}
