// Package memory provides the in-memory reference implementation of
// store.Store. It is also the normative implementation of the atomicity
// requirement in §4.1(a): a single mutex is held across the whole
// read-compute-write section so Mutate is exact, not approximate.
//
//	s := memory.New()
//	limiter := halt.NewLimiter(policy, s)
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Store implements store.Store, store.Incrementer, store.Sweeper, and
// store.Mutator with in-memory state guarded by a single mutex. All
// operations are thread-safe.
type Store struct {
	mu   sync.Mutex
	data map[string]entry
}

type entry struct {
	value    string
	deadline time.Time // zero means no expiry
}

// New creates an empty in-memory Store.
func New() *Store {
	return &Store{data: make(map[string]entry)}
}

func (s *Store) expired(e entry, now time.Time) bool {
	return !e.deadline.IsZero() && now.After(e.deadline)
}

// Get returns the value for key, lazily evicting it first if expired.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok {
		return "", false, nil
	}
	if s.expired(e, time.Now()) {
		delete(s.data, key)
		return "", false, nil
	}
	return e.value, true, nil
}

// Set upserts key with an optional ttl. ttl <= 0 means no expiry.
func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{value: value}
	if ttl > 0 {
		e.deadline = time.Now().Add(ttl)
	}
	s.data[key] = e
	return nil
}

// Delete removes key. Idempotent.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Increment atomically adds delta to the integer stored at key, creating it
// with ttlIfCreate if it didn't already exist. TTL is never refreshed on an
// existing key, matching window-counter semantics (§4.2).
func (s *Store) Increment(_ context.Context, key string, delta int64, ttlIfCreate time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok || s.expired(e, time.Now()) {
		next := delta
		ne := entry{value: fmt.Sprintf("%d", next)}
		if ttlIfCreate > 0 {
			ne.deadline = time.Now().Add(ttlIfCreate)
		}
		s.data[key] = ne
		return next, nil
	}

	var current int64
	if _, err := fmt.Sscanf(e.value, "%d", &current); err != nil {
		return 0, fmt.Errorf("store/memory: key %q holds a non-integer value", key)
	}
	current += delta
	e.value = fmt.Sprintf("%d", current)
	s.data[key] = e
	return current, nil
}

// Mutate holds the store's mutex across the whole read-compute-write
// section, making it exact (not approximate) for the same key.
func (s *Store) Mutate(_ context.Context, key string, _ time.Duration, fn func(current string, found bool) (next string, ttlOverride time.Duration, keep bool)) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if ok && s.expired(e, time.Now()) {
		ok = false
	}

	next, ttlOverride, keep := fn(e.value, ok)
	if !keep {
		return next, nil
	}

	ne := entry{value: next}
	if ttlOverride > 0 {
		ne.deadline = time.Now().Add(ttlOverride)
	}
	s.data[key] = ne
	return next, nil
}

// CleanupExpired sweeps and removes all expired keys, returning the count
// removed. Exposed for explicit driving by callers or tests; no background
// goroutine runs it automatically, since a ticker on wall-clock time would
// fight a test's injected clock.
func (s *Store) CleanupExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for k, e := range s.data {
		if s.expired(e, now) {
			delete(s.data, k)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of live (non-expired) keys, for tests.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	now := time.Now()
	for _, e := range s.data {
		if !s.expired(e, now) {
			n++
		}
	}
	return n
}
