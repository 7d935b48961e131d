// Package cache provides an L1 in-process cache in front of a halt.Limiter.
//
// Even a local Redis adds sub-millisecond latency per request; LocalCache
// serves most checks out of process memory instead, syncing with the
// backend limiter only when the cached allowance runs out or expires.
//
//	Request → L1 (in-process, ~50ns) → L2 (store, ~1ms) → Decision
//
// LocalCache drives the backend limiter through CheckKey, not Check,
// because the L1 layer is addressed by already-derived key: exemption
// evaluation and key derivation stay the caller's job, run once, outside
// the cache.
//
//	limiter := halt.NewLimiter(policy, redisStore)
//	cached := cache.New(limiter, cache.WithTTL(100*time.Millisecond))
//	decision, err := cached.CheckKey(ctx, key, 1)
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/krishna-kudari/halt"
)

// Option configures the LocalCache.
type Option func(*config)

type config struct {
	ttl     time.Duration
	maxKeys int
}

// WithTTL sets the cache entry TTL. After this duration, the next request
// for that key syncs with the backend. Lower values track the backend more
// closely; higher values cut backend load further. Default 100ms.
func WithTTL(ttl time.Duration) Option {
	return func(c *config) { c.ttl = ttl }
}

// WithMaxKeys sets the maximum number of cached keys. When exceeded, the
// oldest entry is evicted. Default 100000.
func WithMaxKeys(maxKeys int) Option {
	return func(c *config) { c.maxKeys = maxKeys }
}

// backend is the subset of *halt.Limiter the cache needs, so tests can
// substitute a fake without a real store.
type backend interface {
	CheckKey(ctx context.Context, key string, cost int64) (halt.Decision, error)
	Reset(ctx context.Context, key string) error
}

// LocalCache wraps a halt.Limiter with an L1 in-process layer.
//
// On each CheckKey call:
//  1. Cache hit + remaining local allowance → serve locally.
//  2. Cache hit + allowance exhausted → sync with the backend.
//  3. Cache miss or expired entry → sync with the backend.
//
// Denied decisions are cached until the earlier of RetryAfter and the cache
// TTL, so a blocked key doesn't hammer the backend while it's blocked.
type LocalCache struct {
	inner   backend
	cfg     config
	mu      sync.Mutex
	entries map[string]*cacheEntry
	closeCh chan struct{}
	closed  bool
}

type cacheEntry struct {
	decision  halt.Decision
	localUsed int64
	fetchedAt time.Time
}

// New wraps inner with a local cache layer.
func New(inner backend, opts ...Option) *LocalCache {
	cfg := config{ttl: 100 * time.Millisecond, maxKeys: 100000}
	for _, o := range opts {
		o(&cfg)
	}
	lc := &LocalCache{
		inner:   inner,
		cfg:     cfg,
		entries: make(map[string]*cacheEntry),
		closeCh: make(chan struct{}),
	}
	go lc.evictionLoop()
	return lc
}

// CheckKey serves cost requests for key, locally when possible.
func (lc *LocalCache) CheckKey(ctx context.Context, key string, cost int64) (halt.Decision, error) {
	lc.mu.Lock()
	e, ok := lc.entries[key]
	if ok && !lc.isExpired(e) {
		if !e.decision.Allowed {
			d := e.decision
			lc.mu.Unlock()
			return d, nil
		}
		if e.decision.Remaining-e.localUsed >= cost {
			e.localUsed += cost
			d := halt.Decision{
				Allowed:   true,
				Limit:     e.decision.Limit,
				Remaining: e.decision.Remaining - e.localUsed,
				ResetAt:   e.decision.ResetAt,
			}
			lc.mu.Unlock()
			return d, nil
		}
	}
	lc.mu.Unlock()

	decision, err := lc.inner.CheckKey(ctx, key, cost)
	if err != nil {
		return decision, err
	}

	lc.mu.Lock()
	lc.entries[key] = &cacheEntry{decision: decision, fetchedAt: time.Now()}
	lc.evictIfOverCapacity()
	lc.mu.Unlock()

	return decision, nil
}

// Reset clears key from both the local cache and the backend.
func (lc *LocalCache) Reset(ctx context.Context, key string) error {
	lc.mu.Lock()
	delete(lc.entries, key)
	lc.mu.Unlock()
	return lc.inner.Reset(ctx, key)
}

// Close stops the background eviction goroutine.
func (lc *LocalCache) Close() {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if !lc.closed {
		lc.closed = true
		close(lc.closeCh)
	}
}

// Stats reports current cache occupancy.
type Stats struct {
	Keys int
}

// Stats returns current cache statistics.
func (lc *LocalCache) Stats() Stats {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return Stats{Keys: len(lc.entries)}
}

func (lc *LocalCache) isExpired(e *cacheEntry) bool {
	ttl := lc.cfg.ttl
	if !e.decision.Allowed && e.decision.RetryAfter > 0 {
		if ra := time.Duration(e.decision.RetryAfter) * time.Second; ra < ttl {
			ttl = ra
		}
	}
	return time.Since(e.fetchedAt) >= ttl
}

func (lc *LocalCache) evictIfOverCapacity() {
	if len(lc.entries) <= lc.cfg.maxKeys {
		return
	}
	var oldestKey string
	var oldestTime time.Time
	for k, e := range lc.entries {
		if oldestKey == "" || e.fetchedAt.Before(oldestTime) {
			oldestKey = k
			oldestTime = e.fetchedAt
		}
	}
	if oldestKey != "" {
		delete(lc.entries, oldestKey)
	}
}

func (lc *LocalCache) evictionLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			lc.evictExpired()
		case <-lc.closeCh:
			return
		}
	}
}

func (lc *LocalCache) evictExpired() {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	for k, e := range lc.entries {
		if lc.isExpired(e) {
			delete(lc.entries, k)
		}
	}
}
