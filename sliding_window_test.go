package halt

import (
	"testing"
	"time"
)

// mirrors §8 scenario 3: limit=10/window=60, precision=6 (bucket_size=10s).
func TestSlidingWindowTransition_Scenario3(t *testing.T) {
	p, err := NewPolicy("scenario3", 10, 60*time.Second, WithAlgorithm(SlidingWindow), WithPrecision(6))
	if err != nil {
		t.Fatal(err)
	}

	var state *slidingWindowState
	for i := 0; i < 10; i++ {
		d, ns := slidingWindowTransition(p, state, 1, 0)
		if !d.Allowed {
			t.Fatalf("request %d at t=0: expected allow", i+1)
		}
		state = ns
	}

	d, ns := slidingWindowTransition(p, state, 1, 0)
	if d.Allowed {
		t.Fatal("11th request at t=0: expected deny")
	}
	state = ns

	// At t=30 the bucket holding the first 10 requests (index 0) is still
	// within the window (discarded only once cur-precision >= its index,
	// i.e. cur >= 6, t >= 60), so the 11th request submitted at t=30 stays
	// denied.
	d2, _ := slidingWindowTransition(p, state, 1, 30)
	if d2.Allowed {
		t.Fatal("11th request at t=30: expected deny")
	}
}

func TestSlidingWindowTransition_OldBucketsDiscarded(t *testing.T) {
	p, _ := NewPolicy("p", 10, 60*time.Second, WithAlgorithm(SlidingWindow), WithPrecision(6))
	var state *slidingWindowState
	for i := 0; i < 10; i++ {
		_, state = slidingWindowTransition(p, state, 1, 0)
	}
	// Once bucket 0 falls outside the retained window, the request allows
	// again.
	d, _ := slidingWindowTransition(p, state, 1, 90)
	if !d.Allowed {
		t.Fatalf("expected allow once the oldest sub-bucket ages out, got %+v", d)
	}
}
