package halt

import (
	"testing"
	"time"
)

func TestNewPolicy_Defaults(t *testing.T) {
	p, err := NewPolicy("p", 10, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if p.Algorithm != TokenBucket {
		t.Errorf("default algorithm = %v, want TokenBucket", p.Algorithm)
	}
	if p.KeyStrategy != KeyIP {
		t.Errorf("default key strategy = %v, want KeyIP", p.KeyStrategy)
	}
	if p.Cost != 1 {
		t.Errorf("default cost = %d, want 1", p.Cost)
	}
	if p.Burst != 12 { // ceil(10*1.2)
		t.Errorf("default burst = %d, want 12", p.Burst)
	}
	if !p.AllowUnidentified || !p.FailOpen {
		t.Error("expected AllowUnidentified and FailOpen to default true")
	}
}

func TestNewPolicy_RejectsMisconfiguration(t *testing.T) {
	cases := []struct {
		name string
		opts []PolicyOption
		lim  int64
		win  time.Duration
	}{
		{"non-positive limit", nil, 0, time.Second},
		{"non-positive window", nil, 1, 0},
		{"cost below one", []PolicyOption{WithCost(0)}, 1, time.Second},
		{"burst below limit", []PolicyOption{WithBurst(1)}, 10, time.Second},
		{"unknown algorithm", []PolicyOption{WithAlgorithm(Algorithm(99))}, 1, time.Second},
		{"unknown key strategy", []PolicyOption{WithKeyStrategy(KeyStrategy(99))}, 1, time.Second},
		{"custom strategy missing extractor", []PolicyOption{WithKeyExtractor(nil)}, 1, time.Second},
	}
	for _, c := range cases {
		if _, err := NewPolicy("p", c.lim, c.win, c.opts...); err == nil {
			t.Errorf("%s: expected construction error", c.name)
		}
	}
}

func TestNewPolicy_BurstOverride(t *testing.T) {
	p, err := NewPolicy("p", 10, time.Minute, WithBurst(50))
	if err != nil {
		t.Fatal(err)
	}
	if p.Burst != 50 {
		t.Errorf("burst = %d, want 50", p.Burst)
	}
}

func TestNewPolicy_KeyExtractorImpliesCustomStrategy(t *testing.T) {
	fn := func(Request) (string, bool) { return "k", true }
	p, err := NewPolicy("p", 1, time.Second, WithKeyExtractor(fn))
	if err != nil {
		t.Fatal(err)
	}
	if p.KeyStrategy != KeyCustom {
		t.Errorf("expected KeyCustom, got %v", p.KeyStrategy)
	}
}
