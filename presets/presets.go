// Package presets provides canned policies and quota tiers, the way the
// teacher's doc.go "Quick Start" leans on a handful of named constructors
// instead of asking every caller to hand-tune an algorithm. Construction
// errors here are a programming bug in this package, not a caller mistake,
// so init panics rather than returning an error nothing can surface —
// mirroring the teacher's package-level redis.NewScript(...) construction
// pattern, which panics on a malformed script rather than threading an
// error through every call site.
package presets

import (
	"time"

	"github.com/krishna-kudari/halt"
)

// Policy presets, values matched to the reference implementation's
// presets.py defaults.
var (
	// PublicAPI: 100 req/min, burst 120, token bucket, by IP.
	PublicAPI *halt.Policy
	// AuthEndpoints: 5 req/min, burst 10, token bucket, by IP, 5-minute
	// block duration hint for a caller-layered penalty.
	AuthEndpoints *halt.Policy
	// ExpensiveOps: 10 req/hour, burst 15, cost 10, token bucket, by user.
	ExpensiveOps *halt.Policy
	// StrictAPI: 20 req/min, burst 25, token bucket, by API key.
	StrictAPI *halt.Policy
	// GenerousAPI: 1000 req/min, burst 1200, token bucket, by IP.
	GenerousAPI *halt.Policy
)

func mustPolicy(name string, limit int64, window time.Duration, opts ...halt.PolicyOption) *halt.Policy {
	p, err := halt.NewPolicy(name, limit, window, opts...)
	if err != nil {
		panic("halt/presets: " + name + ": " + err.Error())
	}
	return p
}

func init() {
	PublicAPI = mustPolicy("public_api", 100, time.Minute,
		halt.WithBurst(120),
		halt.WithKeyStrategy(halt.KeyIP),
	)
	AuthEndpoints = mustPolicy("auth_endpoints", 5, time.Minute,
		halt.WithBurst(10),
		halt.WithKeyStrategy(halt.KeyIP),
		halt.WithBlockDuration(5*time.Minute),
	)
	ExpensiveOps = mustPolicy("expensive_ops", 10, time.Hour,
		halt.WithBurst(15),
		halt.WithCost(10),
		halt.WithKeyStrategy(halt.KeyUser),
	)
	StrictAPI = mustPolicy("strict_api", 20, time.Minute,
		halt.WithBurst(25),
		halt.WithKeyStrategy(halt.KeyAPIKey),
	)
	GenerousAPI = mustPolicy("generous_api", 1000, time.Minute,
		halt.WithBurst(1200),
		halt.WithKeyStrategy(halt.KeyIP),
	)
}

// Quota tiers, values matched to the reference implementation's quota.py
// module-level constants.
var (
	FreeMonthly       = &halt.Quota{Name: "free_monthly", Limit: 10000, Period: halt.Monthly}
	ProMonthly        = &halt.Quota{Name: "pro_monthly", Limit: 100000, Period: halt.Monthly}
	EnterpriseMonthly = &halt.Quota{Name: "enterprise_monthly", Limit: 1000000, Period: halt.Monthly}
	FreeDaily         = &halt.Quota{Name: "free_daily", Limit: 500, Period: halt.Daily}
	ProDaily          = &halt.Quota{Name: "pro_daily", Limit: 5000, Period: halt.Daily}
)

// Penalty configuration tiers, values matched to the reference
// implementation's penalty.py module-level constants.
var (
	PenaltyLenient = halt.PenaltyConfig{Threshold: 20, Duration: 30 * time.Minute, Multiplier: 0.75, DecayRate: 2.0}
	PenaltyModerate = halt.PenaltyConfig{Threshold: 10, Duration: time.Hour, Multiplier: 0.5, DecayRate: 1.0}
	PenaltyStrict   = halt.PenaltyConfig{Threshold: 5, Duration: 4 * time.Hour, Multiplier: 0.25, DecayRate: 0.5}
)
