package halt

import (
	"fmt"
	"time"

	"github.com/krishna-kudari/halt/store"
	"github.com/krishna-kudari/halt/telemetry"
)

// Builder assembles a Policy and a Limiter fluently.
//
//	limiter, err := halt.NewBuilder("checkout").
//	    TokenBucket(50, time.Second).
//	    KeyStrategy(halt.KeyAPIKey).
//	    Store(redisStore).
//	    Build()
type Builder struct {
	name      string
	limit     int64
	window    time.Duration
	algorithm Algorithm
	algoSet   bool
	policyOpts []PolicyOption
	store      store.Store
	limiterOpts []LimiterOption
	err        error
}

// NewBuilder starts a Builder for a policy named name.
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

func (b *Builder) setAlgo(a Algorithm, limit int64, window time.Duration) *Builder {
	b.algorithm = a
	b.algoSet = true
	b.limit = limit
	b.window = window
	return b
}

// TokenBucket configures the token bucket algorithm with limit requests per
// window.
func (b *Builder) TokenBucket(limit int64, window time.Duration) *Builder {
	return b.setAlgo(TokenBucket, limit, window)
}

// LeakyBucket configures the leaky bucket algorithm with limit requests per
// window.
func (b *Builder) LeakyBucket(limit int64, window time.Duration) *Builder {
	return b.setAlgo(LeakyBucket, limit, window)
}

// FixedWindow configures the fixed window algorithm with limit requests per
// window.
func (b *Builder) FixedWindow(limit int64, window time.Duration) *Builder {
	return b.setAlgo(FixedWindow, limit, window)
}

// SlidingWindow configures the sliding window algorithm with limit requests
// per window.
func (b *Builder) SlidingWindow(limit int64, window time.Duration) *Builder {
	return b.setAlgo(SlidingWindow, limit, window)
}

// Precision overrides the sliding window sub-bucket count.
func (b *Builder) Precision(precision int) *Builder {
	b.policyOpts = append(b.policyOpts, WithPrecision(precision))
	return b
}

// KeyStrategy selects how the rate-limit key is derived.
func (b *Builder) KeyStrategy(k KeyStrategy) *Builder {
	b.policyOpts = append(b.policyOpts, WithKeyStrategy(k))
	return b
}

// Composite sets the sub-strategies used for KeyComposite.
func (b *Builder) Composite(strategies ...KeyStrategy) *Builder {
	b.policyOpts = append(b.policyOpts, WithComposite(strategies...))
	return b
}

// KeyExtractor sets a custom key extractor (implies KeyCustom).
func (b *Builder) KeyExtractor(fn Extractor) *Builder {
	b.policyOpts = append(b.policyOpts, WithKeyExtractor(fn))
	return b
}

// TrustedProxies lists proxies allowed to set X-Forwarded-For.
func (b *Builder) TrustedProxies(proxies ...string) *Builder {
	b.policyOpts = append(b.policyOpts, WithTrustedProxies(proxies...))
	return b
}

// Burst overrides the default burst size.
func (b *Builder) Burst(burst int64) *Builder {
	b.policyOpts = append(b.policyOpts, WithBurst(burst))
	return b
}

// Cost overrides the default per-request cost.
func (b *Builder) Cost(cost int64) *Builder {
	b.policyOpts = append(b.policyOpts, WithCost(cost))
	return b
}

// Exemptions adds literal path/key exemptions.
func (b *Builder) Exemptions(exemptions ...string) *Builder {
	b.policyOpts = append(b.policyOpts, WithExemptions(exemptions...))
	return b
}

// ExemptPrivateIPs enables the private/loopback IP exemption.
func (b *Builder) ExemptPrivateIPs(enabled bool) *Builder {
	b.policyOpts = append(b.policyOpts, WithExemptPrivateIPs(enabled))
	return b
}

// AllowUnidentified controls the fallback when no key can be derived.
func (b *Builder) AllowUnidentified(allow bool) *Builder {
	b.policyOpts = append(b.policyOpts, WithAllowUnidentified(allow))
	return b
}

// FailOpen controls the fallback when the store is unavailable.
func (b *Builder) FailOpen(failOpen bool) *Builder {
	b.policyOpts = append(b.policyOpts, WithFailOpen(failOpen))
	return b
}

// BlockDuration sets the advisory block-duration hint.
func (b *Builder) BlockDuration(d time.Duration) *Builder {
	b.policyOpts = append(b.policyOpts, WithBlockDuration(d))
	return b
}

// Store sets the backing store. Required.
func (b *Builder) Store(s store.Store) *Builder {
	b.store = s
	return b
}

// Observer attaches a telemetry.Observer to the built Limiter.
func (b *Builder) Observer(o telemetry.Observer) *Builder {
	b.limiterOpts = append(b.limiterOpts, WithObserver(o))
	return b
}

// Clock overrides the built Limiter's time source.
func (b *Builder) Clock(c Clock) *Builder {
	b.limiterOpts = append(b.limiterOpts, WithClock(c))
	return b
}

// Build validates the accumulated configuration and returns a ready Limiter.
func (b *Builder) Build() (*Limiter, error) {
	if !b.algoSet {
		return nil, fmt.Errorf("halt: builder: no algorithm selected (call TokenBucket/LeakyBucket/FixedWindow/SlidingWindow)")
	}
	if b.store == nil {
		return nil, fmt.Errorf("halt: builder: Store is required")
	}

	opts := append([]PolicyOption{WithAlgorithm(b.algorithm)}, b.policyOpts...)
	policy, err := NewPolicy(b.name, b.limit, b.window, opts...)
	if err != nil {
		return nil, err
	}

	return NewLimiter(policy, b.store, b.limiterOpts...), nil
}
