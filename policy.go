package halt

import (
	"math"
	"time"
)

// Algorithm selects which of the four pure transition functions a Policy
// runs. Zero value is TokenBucket.
type Algorithm int

const (
	TokenBucket Algorithm = iota
	LeakyBucket
	FixedWindow
	SlidingWindow
)

func (a Algorithm) String() string {
	switch a {
	case TokenBucket:
		return "token_bucket"
	case LeakyBucket:
		return "leaky_bucket"
	case FixedWindow:
		return "fixed_window"
	case SlidingWindow:
		return "sliding_window"
	default:
		return "unknown"
	}
}

func (a Algorithm) valid() bool {
	switch a {
	case TokenBucket, LeakyBucket, FixedWindow, SlidingWindow:
		return true
	default:
		return false
	}
}

// KeyStrategy selects how Limiter derives the rate-limit key from a Request.
// Zero value is KeyIP.
type KeyStrategy int

const (
	KeyIP KeyStrategy = iota
	KeyUser
	KeyAPIKey
	KeyComposite
	KeyCustom
)

func (k KeyStrategy) String() string {
	switch k {
	case KeyIP:
		return "ip"
	case KeyUser:
		return "user"
	case KeyAPIKey:
		return "api_key"
	case KeyComposite:
		return "composite"
	case KeyCustom:
		return "custom"
	default:
		return "unknown"
	}
}

func (k KeyStrategy) valid() bool {
	switch k {
	case KeyIP, KeyUser, KeyAPIKey, KeyComposite, KeyCustom:
		return true
	default:
		return false
	}
}

// defaultHealthCheckPaths are the paths exempted from limiting by default,
// per the exemption contract.
var defaultHealthCheckPaths = []string{"/health", "/ping", "/ready", "/healthz", "/livez"}

// Policy is the declarative configuration of one rate-limit rule. It is
// immutable after construction; NewPolicy validates and returns an error
// rather than panicking, so misconfiguration is a construction-time failure
// and never a runtime one.
type Policy struct {
	Name      string
	Limit     int64
	Window    time.Duration
	Algorithm Algorithm
	Precision int // sliding window sub-bucket count; default 10

	KeyStrategy    KeyStrategy
	CompositeOf    []KeyStrategy
	KeyExtractor   Extractor
	TrustedProxies []string

	Burst         int64
	Cost          int64
	BlockDuration time.Duration

	Exemptions         []string
	HealthCheckPaths   []string
	ExemptPrivateIPs   bool
	AllowUnidentified  bool
	FailOpen           bool
}

// PolicyOption configures optional Policy fields. See With* functions.
type PolicyOption func(*Policy)

// WithAlgorithm selects the rate-limiting algorithm. Default TokenBucket.
func WithAlgorithm(a Algorithm) PolicyOption {
	return func(p *Policy) { p.Algorithm = a }
}

// WithKeyStrategy selects how the rate-limit key is derived. Default KeyIP.
func WithKeyStrategy(k KeyStrategy) PolicyOption {
	return func(p *Policy) { p.KeyStrategy = k }
}

// WithComposite sets the ordered sub-strategies used when KeyStrategy is
// KeyComposite.
func WithComposite(strategies ...KeyStrategy) PolicyOption {
	return func(p *Policy) {
		p.KeyStrategy = KeyComposite
		p.CompositeOf = strategies
	}
}

// WithKeyExtractor supplies the extractor used when KeyStrategy is KeyCustom.
func WithKeyExtractor(fn Extractor) PolicyOption {
	return func(p *Policy) {
		p.KeyStrategy = KeyCustom
		p.KeyExtractor = fn
	}
}

// WithTrustedProxies lists IPs or CIDRs allowed to set X-Forwarded-For for
// the KeyIP strategy. Untrusted peers always yield their own RemoteAddr.
func WithTrustedProxies(proxies ...string) PolicyOption {
	return func(p *Policy) { p.TrustedProxies = proxies }
}

// WithBurst overrides the default burst (ceil(limit*1.2)). Must be >= limit.
func WithBurst(burst int64) PolicyOption {
	return func(p *Policy) { p.Burst = burst }
}

// WithCost overrides the default per-request cost of 1.
func WithCost(cost int64) PolicyOption {
	return func(p *Policy) { p.Cost = cost }
}

// WithBlockDuration sets an optional duration a caller-layered penalty
// response should hold a violator blocked; the core never reads this field
// itself, it is advisory configuration for callers composing policy with a
// PenaltyManager.
func WithBlockDuration(d time.Duration) PolicyOption {
	return func(p *Policy) { p.BlockDuration = d }
}

// WithExemptions adds literal path/key strings that bypass limiting.
func WithExemptions(exemptions ...string) PolicyOption {
	return func(p *Policy) { p.Exemptions = append(p.Exemptions, exemptions...) }
}

// WithHealthCheckPaths overrides the default health-check exemption set.
func WithHealthCheckPaths(paths ...string) PolicyOption {
	return func(p *Policy) { p.HealthCheckPaths = paths }
}

// WithExemptPrivateIPs enables the private/loopback IP exemption. Disabled
// by default since a service fronted by a private-network load balancer
// would otherwise exempt all of its real traffic.
func WithExemptPrivateIPs(enabled bool) PolicyOption {
	return func(p *Policy) { p.ExemptPrivateIPs = enabled }
}

// WithAllowUnidentified controls the fallback when no key can be derived.
// Default true (allow, no headers).
func WithAllowUnidentified(allow bool) PolicyOption {
	return func(p *Policy) { p.AllowUnidentified = allow }
}

// WithFailOpen controls the fallback when the store is unavailable. Default
// true: a healthy service behind a broken store beats an outage.
func WithFailOpen(failOpen bool) PolicyOption {
	return func(p *Policy) { p.FailOpen = failOpen }
}

// WithPrecision sets the sliding window sub-bucket count. Default 10.
func WithPrecision(precision int) PolicyOption {
	return func(p *Policy) { p.Precision = precision }
}

// NewPolicy constructs a Policy, applying opts in order and validating the
// result. Construction errors are fatal only to construction — see §7 of
// the design: misconfiguration never surfaces at check time.
func NewPolicy(name string, limit int64, window time.Duration, opts ...PolicyOption) (*Policy, error) {
	p := &Policy{
		Name:              name,
		Limit:             limit,
		Window:            window,
		Algorithm:         TokenBucket,
		KeyStrategy:       KeyIP,
		Cost:              1,
		Precision:         10,
		HealthCheckPaths:  defaultHealthCheckPaths,
		AllowUnidentified: true,
		FailOpen:          true,
	}
	for _, o := range opts {
		o(p)
	}
	if p.Burst == 0 {
		p.Burst = int64(math.Ceil(float64(limit) * 1.2))
	}

	if p.Limit <= 0 {
		return nil, errInvalidLimit(p.Limit)
	}
	if p.Window <= 0 {
		return nil, errInvalidWindow(p.Window)
	}
	if p.Cost <= 0 {
		return nil, errInvalidCost(p.Cost)
	}
	if p.Burst < p.Limit {
		return nil, errBurstBelowLimit(p.Burst, p.Limit)
	}
	if !p.Algorithm.valid() {
		return nil, errUnknownAlgorithm(p.Algorithm)
	}
	if !p.KeyStrategy.valid() {
		return nil, errUnknownKeyStrategy(p.KeyStrategy)
	}
	if p.KeyStrategy == KeyCustom && p.KeyExtractor == nil {
		return nil, errMissingKeyExtractor()
	}
	if p.Precision <= 0 {
		p.Precision = 10
	}

	return p, nil
}
