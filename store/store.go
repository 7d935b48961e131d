// Package store defines the backend storage contract rate limiting
// algorithms, the quota accountant, and the penalty engine are built on.
//
// Store is intentionally narrow: get/set/delete on opaque strings with TTL.
// Everything algorithm-specific (field packing, scripting) lives on the Go
// side now, not in the store — the widening the teacher's Redis-flavoured
// Store interface went through (Eval/HSet/ZAdd/...) is pulled back out of
// the contract and pushed into the one concrete implementation that still
// needs it (store/redis), so a caller who only has a key/value store with
// TTL (most of them) can implement Store in a few lines.
//
// A store/memory.Store is provided as the normative reference
// implementation; store/redis.Store is a non-normative convenience backed
// by github.com/redis/go-redis/v9.
package store

import (
	"context"
	"time"
)

// Store abstracts the backend for rate limit, quota, and penalty state.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key and whether it was found. A missing or
	// expired key returns ("", false, nil) — implementations never raise on
	// miss.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set upserts value with an optional ttl. ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key. Idempotent.
	Delete(ctx context.Context, key string) error
}

// Incrementer is an optional capability for stores that can atomically add
// to an integer counter. ttlIfCreate is applied only when the key is newly
// created, so TTL anchors to first use rather than last update.
type Incrementer interface {
	Increment(ctx context.Context, key string, delta int64, ttlIfCreate time.Duration) (int64, error)
}

// Sweeper is an optional capability for stores that can run a best-effort
// sweep of expired keys. Stores with native TTL eviction may implement it
// as a no-op returning 0.
type Sweeper interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// Mutator is the compare-and-recompute primitive backing the limiter's
// load-compute-store critical section (§4.1(b)). fn receives the current
// value (and whether it was found) and returns the next value, an optional
// TTL override, and whether to persist at all (keep=false leaves the key
// untouched, used by callers that decide not to write after inspecting the
// current value). Implementations MUST make fn's invocation atomic with
// respect to other operations against the same key.
//
// store/memory implements this by holding its single mutex across fn.
// store/redis implements it via a Lua script (EVALSHA/EVAL), mirroring the
// teacher's per-algorithm scripts generalized to one opaque-string script.
// A store without Mutator forces callers onto a get-then-set pair, which is
// documented as "approximate" under concurrent writers — never fatal, per
// §4.1's closing paragraph.
type Mutator interface {
	Mutate(ctx context.Context, key string, ttl time.Duration, fn func(current string, found bool) (next string, ttlOverride time.Duration, keep bool)) (string, error)
}
