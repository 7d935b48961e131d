package halt

// fixedWindowTransition implements §4.3.3. Known imprecision: up to 2*limit
// requests can land in the real time span straddling a window boundary.
// Accepted as the algorithm's documented trade-off, not "fixed" here.
func fixedWindowTransition(p *Policy, prior *fixedWindowState, cost int64, now float64) (Decision, *fixedWindowState) {
	window := p.Window.Seconds()

	state := prior
	if state == nil {
		state = &fixedWindowState{Count: 0, WindowStart: now}
	}
	if now-state.WindowStart >= window {
		state = &fixedWindowState{Count: 0, WindowStart: now}
	}

	resetAt := int64(state.WindowStart + window)

	if state.Count+cost <= p.Limit {
		newState := &fixedWindowState{Count: state.Count + cost, WindowStart: state.WindowStart}
		return Decision{
			Allowed:   true,
			Limit:     p.Limit,
			Remaining: p.Limit - newState.Count,
			ResetAt:   resetAt,
		}, newState
	}

	return Decision{
		Allowed:    false,
		Limit:      p.Limit,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: resetAt - int64(now) + 1,
	}, state
}
