// Package halt is a request-admission rate limiter for HTTP-style services.
//
// It enforces per-client admission policies using pluggable algorithms and a
// pluggable durable store, and exposes a small Decision API that web
// frameworks wrap as middleware. Four algorithms are provided:
//
//   - Token bucket    — smooth average rate with burst tolerance
//   - Leaky bucket    — smooth output rate, rejects on overflow
//   - Fixed window    — simple counter reset on a wall-clock boundary
//   - Sliding window  — sub-bucketed counter approximating a true sliding log
//
// Quick Start:
//
//	policy, _ := halt.NewPolicy("api", 100, time.Minute)
//	limiter := halt.NewLimiter(policy, memory.New())
//	decision, err := limiter.Check(ctx, req)
//	if !decision.Allowed {
//	    // respond 429, decision.Headers() carries RateLimit-*/Retry-After
//	}
//
// With Redis:
//
//	store := redisstore.New(redisClient)
//	limiter := halt.NewLimiter(policy, store)
//
// With the builder:
//
//	limiter, _ := halt.NewBuilder("checkout").
//	    TokenBucket(50, time.Second).
//	    KeyStrategy(halt.KeyAPIKey).
//	    Store(store).
//	    Build()
//
// Quota and penalty are sibling check-and-update loops a caller layers on
// top of the per-request check; neither one mutates the other's state.
package halt
