package halt

import (
	"context"
	"fmt"
	"time"

	"github.com/krishna-kudari/halt/store"
	"github.com/krishna-kudari/halt/telemetry"
)

// PenaltyConfig parameterizes the abuse-score accumulator: the score at
// which a penalty engages, how long it lasts, the multiplier applied to a
// policy's limit while active, and the linear decay rate.
type PenaltyConfig struct {
	Threshold  float64
	Duration   time.Duration
	Multiplier float64
	DecayRate  float64 // points/hour
}

// penaltyRecord is the JSON-serialized state persisted per identifier.
type penaltyRecord struct {
	AbuseScore    float64 `json:"abuse_score"`
	PenaltyUntil  int64   `json:"penalty_until"`
	Violations    int64   `json:"violations"`
	LastViolation int64   `json:"last_violation"`
}

// Penalty is a read-only view of an identifier's abuse state.
type Penalty struct {
	AbuseScore    float64
	PenaltyUntil  int64
	Violations    int64
	LastViolation int64
}

// IsActive reports whether a penalty is currently engaged.
func (p Penalty) IsActive(now time.Time) bool {
	return p.PenaltyUntil > 0 && p.PenaltyUntil > now.Unix()
}

const penaltyTTL = 7 * 24 * time.Hour

// PenaltyManager implements the record_violation / get_rate_limit_multiplier
// / clear_penalty operations of §4.7 against a store.Store.
type PenaltyManager struct {
	store    store.Store
	cfg      PenaltyConfig
	observer telemetry.Observer
	clock    Clock
}

// PenaltyManagerOption configures optional PenaltyManager fields.
type PenaltyManagerOption func(*PenaltyManager)

// WithPenaltyObserver attaches a telemetry.Observer to a PenaltyManager.
func WithPenaltyObserver(o telemetry.Observer) PenaltyManagerOption {
	return func(m *PenaltyManager) { m.observer = o }
}

// WithPenaltyClock overrides the PenaltyManager's time source.
func WithPenaltyClock(c Clock) PenaltyManagerOption {
	return func(m *PenaltyManager) { m.clock = c }
}

// NewPenaltyManager builds a PenaltyManager backed by s using cfg.
func NewPenaltyManager(s store.Store, cfg PenaltyConfig, opts ...PenaltyManagerOption) *PenaltyManager {
	m := &PenaltyManager{store: s, cfg: cfg, observer: telemetry.NoopObserver{}}
	for _, o := range opts {
		o(m)
	}
	return m
}

func penaltyKey(identifier string) string {
	return fmt.Sprintf("halt:penalty:%s", identifier)
}

// decay applies linear time-decay to rec's score as of now, per §4.7 step 1.
func (m *PenaltyManager) decay(rec penaltyRecord, now time.Time) penaltyRecord {
	if rec.LastViolation == 0 {
		return rec
	}
	hours := now.Sub(time.Unix(rec.LastViolation, 0)).Hours()
	if hours <= 0 {
		return rec
	}
	rec.AbuseScore -= m.cfg.DecayRate * hours
	if rec.AbuseScore < 0 {
		rec.AbuseScore = 0
	}
	return rec
}

func (m *PenaltyManager) load(current string, found bool) penaltyRecord {
	if !found {
		return penaltyRecord{}
	}
	var rec penaltyRecord
	_ = decodeState(current, &rec)
	return rec
}

func toPenalty(rec penaltyRecord) Penalty {
	return Penalty{
		AbuseScore:    rec.AbuseScore,
		PenaltyUntil:  rec.PenaltyUntil,
		Violations:    rec.Violations,
		LastViolation: rec.LastViolation,
	}
}

// RecordViolation implements §4.7's record_violation: decay the stored
// score, add severity, and engage a new penalty window if the threshold is
// crossed while none is currently active.
func (m *PenaltyManager) RecordViolation(ctx context.Context, identifier string, severity float64) (Penalty, error) {
	key := penaltyKey(identifier)
	now := m.clock.now()

	var result Penalty
	var engaged bool
	mutate := func(current string, found bool) (string, time.Duration, bool) {
		rec := m.decay(m.load(current, found), now)
		wasActive := rec.PenaltyUntil > 0 && rec.PenaltyUntil > now.Unix()

		rec.AbuseScore += severity
		rec.Violations++
		rec.LastViolation = now.Unix()

		if rec.AbuseScore >= m.cfg.Threshold && !wasActive {
			rec.PenaltyUntil = now.Unix() + int64(m.cfg.Duration.Seconds())
			engaged = true
		}

		result = toPenalty(rec)
		encoded, _ := encodeState(rec)
		return encoded, penaltyTTL, true
	}

	if mu, ok := m.store.(store.Mutator); ok {
		if _, err := mu.Mutate(ctx, key, penaltyTTL, mutate); err != nil {
			return Penalty{}, err
		}
	} else {
		current, found, err := m.store.Get(ctx, key)
		if err != nil {
			return Penalty{}, err
		}
		encoded, ttl, _ := mutate(current, found)
		if err := m.store.Set(ctx, key, encoded, ttl); err != nil {
			return Penalty{}, err
		}
	}

	m.observer.OnViolation(identifier, result.AbuseScore)
	if engaged {
		m.observer.OnPenaltyApplied(identifier, result.PenaltyUntil)
	}
	return result, nil
}

// ApplyPenalty administratively engages a penalty window for identifier,
// bypassing the abuse-score/threshold logic RecordViolation runs. duration
// overrides cfg.Duration when non-zero. Mirrors apply_penalty: it does not
// reset LastViolation, so decay continues uninterrupted across repeated
// manual or automatic engagements.
func (m *PenaltyManager) ApplyPenalty(ctx context.Context, identifier string, duration time.Duration) (Penalty, error) {
	key := penaltyKey(identifier)
	now := m.clock.now()
	if duration <= 0 {
		duration = m.cfg.Duration
	}

	var result Penalty
	mutate := func(current string, found bool) (string, time.Duration, bool) {
		rec := m.load(current, found)
		rec.PenaltyUntil = now.Unix() + int64(duration.Seconds())

		result = toPenalty(rec)
		encoded, _ := encodeState(rec)
		return encoded, penaltyTTL, true
	}

	if mu, ok := m.store.(store.Mutator); ok {
		if _, err := mu.Mutate(ctx, key, penaltyTTL, mutate); err != nil {
			return Penalty{}, err
		}
	} else {
		current, found, err := m.store.Get(ctx, key)
		if err != nil {
			return Penalty{}, err
		}
		encoded, ttl, _ := mutate(current, found)
		if err := m.store.Set(ctx, key, encoded, ttl); err != nil {
			return Penalty{}, err
		}
	}

	m.observer.OnPenaltyApplied(identifier, result.PenaltyUntil)
	return result, nil
}

// GetRateLimitMultiplier returns cfg.Multiplier if a penalty is currently
// active for identifier, else 1.0. The caller scales its own policy limit
// before constructing the effective algorithm — this engine never mutates
// policies directly.
func (m *PenaltyManager) GetRateLimitMultiplier(ctx context.Context, identifier string) (float64, error) {
	current, found, err := m.store.Get(ctx, penaltyKey(identifier))
	if err != nil {
		return 1.0, err
	}
	if !found {
		return 1.0, nil
	}
	rec := m.load(current, found)
	if rec.PenaltyUntil > 0 && rec.PenaltyUntil > m.clock.nowUnix() {
		return m.cfg.Multiplier, nil
	}
	return 1.0, nil
}

// ClearPenalty is an administrative reset, deleting all abuse state for
// identifier.
func (m *PenaltyManager) ClearPenalty(ctx context.Context, identifier string) error {
	return m.store.Delete(ctx, penaltyKey(identifier))
}
