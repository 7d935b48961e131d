package halt

import (
	"context"
	"fmt"
	"time"

	"github.com/krishna-kudari/halt/store"
	"github.com/krishna-kudari/halt/telemetry"
)

// Limiter orchestrates a single Policy against a Store: derive key, load
// state, run the algorithm transition, persist, observe, return. It is safe
// for concurrent use whenever its Store is.
type Limiter struct {
	policy   *Policy
	store    store.Store
	observer telemetry.Observer
	clock    Clock
}

// LimiterOption configures optional Limiter fields.
type LimiterOption func(*Limiter)

// WithObserver attaches a telemetry.Observer. Default telemetry.NoopObserver.
func WithObserver(o telemetry.Observer) LimiterOption {
	return func(l *Limiter) { l.observer = o }
}

// WithClock overrides the time source. Default time.Now.
func WithClock(c Clock) LimiterOption {
	return func(l *Limiter) { l.clock = c }
}

// NewLimiter builds a Limiter for policy backed by s.
func NewLimiter(policy *Policy, s store.Store, opts ...LimiterOption) *Limiter {
	l := &Limiter{
		policy:   policy,
		store:    s,
		observer: telemetry.NoopObserver{},
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Policy returns the limiter's policy.
func (l *Limiter) Policy() *Policy { return l.policy }

// Check implements §4.5's six steps: exemption short-circuit, key
// derivation + namespacing, load-or-seed state, algorithm transition,
// persist with TTL, telemetry dispatch.
func (l *Limiter) Check(ctx context.Context, req Request) (Decision, error) {
	// Health-check paths and private-IP exemptions don't need a derivable
	// key, so they're evaluated before DeriveKey: a failed key derivation
	// must never turn an exempt request into a denial.
	if isKeyIndependentExempt(l.policy, req) {
		return exemptDecision(l.policy.Limit, l.clock.nowUnix()), nil
	}

	key, ok := DeriveKey(l.policy, req)
	if !ok {
		if l.policy.AllowUnidentified {
			return Decision{Allowed: true, Limit: l.policy.Limit, Remaining: l.policy.Limit}, nil
		}
		return Decision{Allowed: false, Limit: l.policy.Limit, RetryAfter: 1, ResetAt: l.clock.nowUnix() + 1}, nil
	}
	if isExempt(l.policy, req, key) {
		return exemptDecision(l.policy.Limit, l.clock.nowUnix()), nil
	}

	return l.CheckKey(ctx, key, l.policy.Cost)
}

// CheckKey runs the load → transition → persist → observe sequence for an
// already-derived key, skipping exemption and key-derivation. This is the
// building block the quota/penalty accountants and the cache package's L1
// layer build on.
func (l *Limiter) CheckKey(ctx context.Context, key string, cost int64) (Decision, error) {
	storeKey := fmt.Sprintf("halt:%s:%s:%s", l.policy.Algorithm, l.policy.Name, key)
	now := l.clock.nowSeconds()

	decision, err := l.transition(ctx, storeKey, cost, now)
	if err != nil {
		// Store unavailability is category 3 (§7): recovered locally per
		// the policy's fail-open/fail-closed setting and reported through
		// telemetry, not the return value — callers must not see an error
		// for a recovery the policy already made on their behalf.
		l.observer.OnStoreError(l.policy.Name, key, err)
		if l.policy.FailOpen {
			decision = Decision{Allowed: true, Limit: l.policy.Limit, Remaining: l.policy.Limit, ResetAt: l.clock.nowUnix()}
		} else {
			decision = Decision{Allowed: false, Limit: l.policy.Limit, RetryAfter: 1, ResetAt: l.clock.nowUnix() + 1}
		}
		err = nil
	}

	l.observer.OnCheck(l.policy.Name, key)
	if decision.Allowed {
		l.observer.OnAllowed(l.policy.Name, key, decision.Remaining)
	} else {
		l.observer.OnBlocked(l.policy.Name, key, decision.RetryAfter)
	}
	return decision, err
}

// ttl computes the persistence TTL per §4.5 step 5: window*2 for the two
// bucket flavours, window + a small fixed jitter for the two window
// flavours. The jitter is a fixed fraction, not random, so TTL stays
// deterministic under tests.
func (l *Limiter) ttl() time.Duration {
	switch l.policy.Algorithm {
	case TokenBucket, LeakyBucket:
		return l.policy.Window * 2
	default:
		return l.policy.Window + l.policy.Window/10
	}
}

func (l *Limiter) transition(ctx context.Context, storeKey string, cost int64, now float64) (Decision, error) {
	var decision Decision
	var loadErr error

	mutate := func(current string, found bool) (next string, ttlOverride time.Duration, keep bool) {
		var d Decision
		var encoded string
		switch l.policy.Algorithm {
		case TokenBucket:
			prior, err := decodeOrNil[tokenBucketState](current, found)
			if err != nil {
				loadErr = err
				return current, 0, found
			}
			var ns *tokenBucketState
			d, ns = tokenBucketTransition(l.policy, prior, cost, now)
			encoded, loadErr = encodeState(ns)
		case LeakyBucket:
			prior, err := decodeOrNil[leakyBucketState](current, found)
			if err != nil {
				loadErr = err
				return current, 0, found
			}
			var ns *leakyBucketState
			d, ns = leakyBucketTransition(l.policy, prior, cost, now)
			encoded, loadErr = encodeState(ns)
		case FixedWindow:
			prior, err := decodeOrNil[fixedWindowState](current, found)
			if err != nil {
				loadErr = err
				return current, 0, found
			}
			var ns *fixedWindowState
			d, ns = fixedWindowTransition(l.policy, prior, cost, now)
			encoded, loadErr = encodeState(ns)
		case SlidingWindow:
			prior, err := decodeOrNil[slidingWindowState](current, found)
			if err != nil {
				loadErr = err
				return current, 0, found
			}
			var ns *slidingWindowState
			d, ns = slidingWindowTransition(l.policy, prior, cost, now)
			encoded, loadErr = encodeState(ns)
		}
		decision = d
		return encoded, l.ttl(), true
	}

	if m, ok := l.store.(store.Mutator); ok {
		if _, err := m.Mutate(ctx, storeKey, l.ttl(), mutate); err != nil {
			return Decision{}, err
		}
		return decision, loadErr
	}

	// No Mutator capability: fall back to get-then-set, documented as
	// "approximate" under concurrent writers to the same key (§4.1).
	current, found, err := l.store.Get(ctx, storeKey)
	if err != nil {
		return Decision{}, err
	}
	next, ttlOverride, _ := mutate(current, found)
	if loadErr != nil {
		return Decision{}, loadErr
	}
	if err := l.store.Set(ctx, storeKey, next, ttlOverride); err != nil {
		return Decision{}, err
	}
	return decision, nil
}

func decodeOrNil[T any](current string, found bool) (*T, error) {
	if !found {
		return nil, nil
	}
	var v T
	if err := decodeState(current, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Reset deletes a key's stored state, equivalent to a fresh first use.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	storeKey := fmt.Sprintf("halt:%s:%s:%s", l.policy.Algorithm, l.policy.Name, key)
	return l.store.Delete(ctx, storeKey)
}
