// Package logging provides a zerolog-backed telemetry.Observer, the
// ambient-stack logging story the core itself stays silent about — the
// library logs only if a caller wires this observer in.
package logging

import (
	"github.com/rs/zerolog"

	"github.com/krishna-kudari/halt/telemetry"
)

// Observer implements telemetry.Observer with structured zerolog events.
// Field names match the reference implementation's LoggingTelemetry log
// lines it's grounded on.
type Observer struct {
	telemetry.NoopObserver
	log zerolog.Logger
}

// New wraps log as a telemetry.Observer.
func New(log zerolog.Logger) *Observer {
	return &Observer{log: log}
}

func (o *Observer) OnCheck(policy, key string) {
	o.log.Debug().Str("policy", policy).Str("key", key).Msg("rate limit check")
}

func (o *Observer) OnAllowed(policy, key string, remaining int64) {
	o.log.Debug().Str("policy", policy).Str("key", key).Int64("remaining", remaining).Msg("request allowed")
}

func (o *Observer) OnBlocked(policy, key string, retryAfter int64) {
	o.log.Info().Str("policy", policy).Str("key", key).Int64("retry_after", retryAfter).Msg("request blocked")
}

func (o *Observer) OnQuotaCheck(quota, identifier string, allowed bool, remaining int64) {
	o.log.Debug().Str("quota", quota).Str("identifier", identifier).Bool("allowed", allowed).Int64("remaining", remaining).Msg("quota check")
}

func (o *Observer) OnQuotaExceeded(quota, identifier string) {
	o.log.Warn().Str("quota", quota).Str("identifier", identifier).Msg("quota exceeded")
}

func (o *Observer) OnPenaltyApplied(identifier string, until int64) {
	o.log.Warn().Str("identifier", identifier).Int64("penalty_until", until).Msg("penalty applied")
}

func (o *Observer) OnViolation(identifier string, score float64) {
	o.log.Info().Str("identifier", identifier).Float64("abuse_score", score).Msg("violation recorded")
}

func (o *Observer) OnStoreError(policy, key string, err error) {
	o.log.Error().Str("policy", policy).Str("key", key).Err(err).Msg("store error, falling back to policy-defined recovery")
}

var _ telemetry.Observer = (*Observer)(nil)
