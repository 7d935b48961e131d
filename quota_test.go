package halt

import (
	"context"
	"testing"
	"time"

	"github.com/krishna-kudari/halt/store/memory"
)

// mirrors §8 scenario 5: DAILY quota, limit=500.
func TestQuotaManager_Scenario5(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	now := base
	clock := Clock(func() time.Time { return now })

	m := NewQuotaManager(memory.New(), WithQuotaClock(clock))
	quota := Quota{Name: "daily_500", Limit: 500, Period: Daily}

	for i := 0; i < 500; i++ {
		snap, err := m.ConsumeQuota(ctx, "acct-1", quota, 1)
		if err != nil {
			t.Fatalf("consume %d: %v", i+1, err)
		}
		if snap.CurrentUsage != int64(i+1) {
			t.Fatalf("consume %d: usage = %d, want %d", i+1, snap.CurrentUsage, i+1)
		}
	}

	allowed, snap, err := m.CheckQuota(ctx, "acct-1", quota, 1)
	if err != nil {
		t.Fatal(err)
	}
	if allowed {
		t.Fatal("501st check: expected denied")
	}
	if snap.Remaining() != 0 {
		t.Fatalf("501st check: remaining = %d, want 0", snap.Remaining())
	}

	// Advance past the next UTC midnight.
	now = time.Date(2026, 8, 1, 0, 0, 1, 0, time.UTC)
	allowed, snap, err = m.CheckQuota(ctx, "acct-1", quota, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !allowed {
		t.Fatal("post-reset check: expected allowed")
	}
	if snap.Remaining() != 500 {
		t.Fatalf("post-reset check: remaining = %d, want 500", snap.Remaining())
	}
}

func TestNextBoundary_CalendarEdges(t *testing.T) {
	cases := []struct {
		period QuotaPeriod
		now    time.Time
		want   time.Time
	}{
		{Hourly, time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC), time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)},
		{Daily, time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
		{Monthly, time.Date(2026, 12, 15, 0, 0, 0, 0, time.UTC), time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Monthly, time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{Yearly, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		got := nextBoundary(c.period, c.now)
		if !got.Equal(c.want) {
			t.Errorf("nextBoundary(%s, %v) = %v, want %v", c.period, c.now, got, c.want)
		}
	}
}

func TestQuotaTTL_ClampsToFloor(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	resetAt := now.Add(-2 * time.Hour) // already past, an inconsistent state
	if got := quotaTTL(resetAt, now); got != quotaTTLFloor {
		t.Fatalf("expected floor TTL of %v, got %v", quotaTTLFloor, got)
	}
}
