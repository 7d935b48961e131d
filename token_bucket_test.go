package halt

import (
	"testing"
	"time"
)

// mirrors §8 scenario 1: limit=5/window=10s, burst=5, cost=1, 7 requests at t=0.
func TestTokenBucketTransition_Scenario1(t *testing.T) {
	p, err := NewPolicy("scenario1", 5, 10*time.Second, WithBurst(5))
	if err != nil {
		t.Fatal(err)
	}

	var state *tokenBucketState
	wantRemaining := []int64{4, 3, 2, 1, 0}
	for i, want := range wantRemaining {
		d, ns := tokenBucketTransition(p, state, 1, 0)
		if !d.Allowed {
			t.Fatalf("request %d: expected allow", i+1)
		}
		if d.Remaining != want {
			t.Fatalf("request %d: remaining = %d, want %d", i+1, d.Remaining, want)
		}
		state = ns
	}

	for i := 6; i <= 7; i++ {
		d, ns := tokenBucketTransition(p, state, 1, 0)
		if d.Allowed {
			t.Fatalf("request %d: expected deny", i)
		}
		if d.RetryAfter != 3 {
			t.Fatalf("request %d: retry_after = %d, want 3", i, d.RetryAfter)
		}
		if d.ResetAt != 10 {
			t.Fatalf("request %d: reset_at = %d, want 10", i, d.ResetAt)
		}
		state = ns
	}
}

func TestTokenBucketTransition_DenialDoesNotAdvanceLastRefill(t *testing.T) {
	p, _ := NewPolicy("p", 5, 10*time.Second, WithBurst(5))
	state := &tokenBucketState{Tokens: 0, LastRefill: 0}

	_, ns := tokenBucketTransition(p, state, 1, 1)
	if ns.LastRefill != 0 {
		t.Fatalf("expected last_refill unchanged on denial, got %v", ns.LastRefill)
	}
}

func TestTokenBucketTransition_RecoveryAfterRetryAfter(t *testing.T) {
	p, _ := NewPolicy("p", 5, 10*time.Second, WithBurst(5))
	var state *tokenBucketState
	for i := 0; i < 5; i++ {
		_, state = tokenBucketTransition(p, state, 1, 0)
	}
	d, _ := tokenBucketTransition(p, state, 1, 0)
	if d.Allowed {
		t.Fatal("expected deny before waiting")
	}
	retryAfter := float64(d.RetryAfter)

	d2, _ := tokenBucketTransition(p, state, 1, retryAfter)
	if !d2.Allowed {
		t.Fatalf("expected allow after waiting retry_after=%v seconds", retryAfter)
	}
}

func TestTokenBucketTransition_MonotoneRemainingWithoutRefill(t *testing.T) {
	p, _ := NewPolicy("p", 100, 10*time.Second, WithBurst(100))
	var state *tokenBucketState
	prevRemaining := int64(1 << 62)
	for i := 0; i < 20; i++ {
		d, ns := tokenBucketTransition(p, state, 1, 0)
		if !d.Allowed {
			break
		}
		if d.Remaining > prevRemaining {
			t.Fatalf("remaining increased at step %d: %d > %d", i, d.Remaining, prevRemaining)
		}
		prevRemaining = d.Remaining
		state = ns
	}
}
