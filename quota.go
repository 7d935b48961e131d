package halt

import (
	"context"
	"fmt"
	"time"

	"github.com/krishna-kudari/halt/store"
	"github.com/krishna-kudari/halt/telemetry"
)

// QuotaPeriod is the calendar period a Quota resets against.
type QuotaPeriod int

const (
	Hourly QuotaPeriod = iota
	Daily
	Monthly
	Yearly
)

func (p QuotaPeriod) String() string {
	switch p {
	case Hourly:
		return "hourly"
	case Daily:
		return "daily"
	case Monthly:
		return "monthly"
	case Yearly:
		return "yearly"
	default:
		return "unknown"
	}
}

// Quota is a long-horizon counter with a calendar-boundary reset, distinct
// from the short-horizon Policy/Limiter pair: a caller typically checks both
// and only consumes the quota after the rate-limit check passes.
type Quota struct {
	Name   string
	Limit  int64
	Period QuotaPeriod
}

// quotaRecord is the JSON-serialized state persisted per identifier.
type quotaRecord struct {
	CurrentUsage int64 `json:"current_usage"`
	ResetAt      int64 `json:"reset_at"`
}

// QuotaSnapshot is a read-only view of a quota's state after a check or
// consume.
type QuotaSnapshot struct {
	Name         string
	Limit        int64
	Period       QuotaPeriod
	CurrentUsage int64
	ResetAt      int64
}

// IsExceeded reports whether the quota has no remaining capacity.
func (s QuotaSnapshot) IsExceeded() bool { return s.CurrentUsage >= s.Limit }

// Remaining reports the capacity left in the current period, never negative.
func (s QuotaSnapshot) Remaining() int64 {
	r := s.Limit - s.CurrentUsage
	if r < 0 {
		return 0
	}
	return r
}

// QuotaManager implements the check_quota/consume_quota operations of
// §4.6 against a store.Store.
type QuotaManager struct {
	store    store.Store
	observer telemetry.Observer
	clock    Clock
}

// QuotaManagerOption configures optional QuotaManager fields.
type QuotaManagerOption func(*QuotaManager)

// WithQuotaObserver attaches a telemetry.Observer to a QuotaManager.
func WithQuotaObserver(o telemetry.Observer) QuotaManagerOption {
	return func(m *QuotaManager) { m.observer = o }
}

// WithQuotaClock overrides the QuotaManager's time source.
func WithQuotaClock(c Clock) QuotaManagerOption {
	return func(m *QuotaManager) { m.clock = c }
}

// NewQuotaManager builds a QuotaManager backed by s.
func NewQuotaManager(s store.Store, opts ...QuotaManagerOption) *QuotaManager {
	m := &QuotaManager{store: s, observer: telemetry.NoopObserver{}}
	for _, o := range opts {
		o(m)
	}
	return m
}

func quotaKey(quota Quota, identifier string) string {
	return fmt.Sprintf("halt:quota:%s:%s", quota.Name, identifier)
}

// nextBoundary computes the start of the next calendar period in UTC,
// following the Python reference implementation's _calculate_reset_time
// verbatim for its calendar-edge behaviour (including December's year
// rollover for MONTHLY).
func nextBoundary(period QuotaPeriod, now time.Time) time.Time {
	now = now.UTC()
	switch period {
	case Hourly:
		return time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, time.UTC).Add(time.Hour)
	case Daily:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	case Monthly:
		if now.Month() == time.December {
			return time.Date(now.Year()+1, time.January, 1, 0, 0, 0, 0, time.UTC)
		}
		return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	case Yearly:
		return time.Date(now.Year()+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return now.Add(time.Hour)
	}
}

// quotaTTLFloor is the minimum TTL persisted for a quota record, guarding
// the reset_at < now corner the reference implementation leaves unspecified
// (§9 open question).
const quotaTTLFloor = 60 * time.Second

func quotaTTL(resetAt, now time.Time) time.Duration {
	ttl := resetAt.Sub(now) + time.Hour
	if ttl < quotaTTLFloor {
		return quotaTTLFloor
	}
	return ttl
}

// load returns the current record for identifier, resetting it in place if
// its period has rolled over.
func (m *QuotaManager) load(quota Quota, current string, found bool, now time.Time) quotaRecord {
	var rec quotaRecord
	if found {
		_ = decodeState(current, &rec)
	}
	if !found || now.Unix() >= rec.ResetAt {
		rec = quotaRecord{CurrentUsage: 0, ResetAt: nextBoundary(quota.Period, now).Unix()}
	}
	return rec
}

func (m *QuotaManager) snapshot(quota Quota, rec quotaRecord) QuotaSnapshot {
	return QuotaSnapshot{
		Name:         quota.Name,
		Limit:        quota.Limit,
		Period:       quota.Period,
		CurrentUsage: rec.CurrentUsage,
		ResetAt:      rec.ResetAt,
	}
}

// CheckQuota reports whether cost more usage would fit within quota,
// without mutating stored state.
func (m *QuotaManager) CheckQuota(ctx context.Context, identifier string, quota Quota, cost int64) (bool, QuotaSnapshot, error) {
	key := quotaKey(quota, identifier)
	now := m.clock.now()

	current, found, err := m.store.Get(ctx, key)
	if err != nil {
		return false, QuotaSnapshot{}, err
	}
	rec := m.load(quota, current, found, now)
	allowed := rec.CurrentUsage+cost <= quota.Limit
	snap := m.snapshot(quota, rec)

	m.observer.OnQuotaCheck(quota.Name, identifier, allowed, snap.Remaining())
	if !allowed {
		m.observer.OnQuotaExceeded(quota.Name, identifier)
	}
	return allowed, snap, nil
}

// ConsumeQuota adds cost to the identifier's usage for quota, regardless of
// whether it exceeds the limit — callers invoke this only after a
// preceding rate-limit check already passed, per §4.6.
func (m *QuotaManager) ConsumeQuota(ctx context.Context, identifier string, quota Quota, cost int64) (QuotaSnapshot, error) {
	key := quotaKey(quota, identifier)
	now := m.clock.now()

	var snap QuotaSnapshot
	mutate := func(current string, found bool) (string, time.Duration, bool) {
		rec := m.load(quota, current, found, now)
		rec.CurrentUsage += cost
		snap = m.snapshot(quota, rec)
		encoded, _ := encodeState(rec)
		return encoded, quotaTTL(time.Unix(rec.ResetAt, 0), now), true
	}

	if mu, ok := m.store.(store.Mutator); ok {
		if _, err := mu.Mutate(ctx, key, quotaTTLFloor, mutate); err != nil {
			return QuotaSnapshot{}, err
		}
		m.observer.OnQuotaCheck(quota.Name, identifier, !snap.IsExceeded(), snap.Remaining())
		return snap, nil
	}

	current, found, err := m.store.Get(ctx, key)
	if err != nil {
		return QuotaSnapshot{}, err
	}
	encoded, ttl, _ := mutate(current, found)
	if err := m.store.Set(ctx, key, encoded, ttl); err != nil {
		return QuotaSnapshot{}, err
	}
	m.observer.OnQuotaCheck(quota.Name, identifier, !snap.IsExceeded(), snap.Remaining())
	return snap, nil
}
