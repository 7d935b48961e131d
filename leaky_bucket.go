package halt

import "math"

// leakyBucketTransition implements §4.3.2: drain by elapsed time at
// limit/window req/sec, then add cost to the level. Unlike token bucket,
// last_leak advances on denial too — the drain was computed either way.
func leakyBucketTransition(p *Policy, prior *leakyBucketState, cost int64, now float64) (Decision, *leakyBucketState) {
	capacity := float64(p.Burst)
	leakRate := float64(p.Limit) / p.Window.Seconds()

	state := prior
	if state == nil {
		state = &leakyBucketState{Level: 0, LastLeak: now}
	}

	level := math.Max(0, state.Level-(now-state.LastLeak)*leakRate)
	c := float64(cost)

	if level+c <= capacity {
		newLevel := level + c
		newState := &leakyBucketState{Level: newLevel, LastLeak: now}
		remaining := int64(math.Floor(capacity - newLevel))
		resetAt := int64(math.Ceil(now + newLevel/leakRate))
		return Decision{
			Allowed:   true,
			Limit:     p.Burst,
			Remaining: remaining,
			ResetAt:   resetAt,
		}, newState
	}

	newState := &leakyBucketState{Level: level, LastLeak: now}
	overflow := level + c - capacity
	retryAfter := int64(math.Ceil(overflow/leakRate)) + 1
	return Decision{
		Allowed:    false,
		Limit:      p.Burst,
		Remaining:  int64(math.Floor(capacity - level)),
		ResetAt:    int64(math.Ceil(now + level/leakRate)),
		RetryAfter: retryAfter,
	}, newState
}
