package halt

import "math"

// tokenBucketTransition implements §4.3.1: refill by elapsed time at
// limit/window tokens/sec, then draw cost tokens. prior is nil on first use
// for a key, in which case the bucket starts full.
func tokenBucketTransition(p *Policy, prior *tokenBucketState, cost int64, now float64) (Decision, *tokenBucketState) {
	capacity := float64(p.Burst)
	rate := float64(p.Limit) / p.Window.Seconds()

	state := prior
	if state == nil {
		state = &tokenBucketState{Tokens: capacity, LastRefill: now}
	}

	tokens := math.Min(capacity, state.Tokens+(now-state.LastRefill)*rate)
	c := float64(cost)

	if tokens >= c {
		newState := &tokenBucketState{Tokens: tokens - c, LastRefill: now}
		remaining := int64(math.Floor(newState.Tokens))
		resetAt := int64(math.Ceil(now + (capacity-newState.Tokens)/rate))
		return Decision{
			Allowed:   true,
			Limit:     p.Burst,
			Remaining: remaining,
			ResetAt:   resetAt,
		}, newState
	}

	// Denied: last_refill is NOT advanced, so the elapsed-time accounting on
	// the next check still measures from the last successful refill.
	deficit := c - tokens
	retryAfter := int64(math.Ceil(deficit/rate)) + 1
	return Decision{
		Allowed:    false,
		Limit:      p.Burst,
		Remaining:  0,
		ResetAt:    int64(math.Ceil(now + (capacity-tokens)/rate)),
		RetryAfter: retryAfter,
	}, state
}
