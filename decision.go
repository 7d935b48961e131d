package halt

import "strconv"

// Decision is the immutable outcome of a rate limit check. Zero value is
// never returned to callers; every path through Limiter.Check constructs one
// explicitly.
type Decision struct {
	Allowed bool
	Limit   int64
	// Remaining is the count of requests still admissible in the current
	// window/bucket. Never negative; Headers still clamps it to 0
	// defensively.
	Remaining int64
	// ResetAt is the epoch second at which the bucket/window is next fully
	// available, or the window boundary for window algorithms.
	ResetAt int64
	// RetryAfter is 0 when Allowed, and >= 1 otherwise.
	RetryAfter int64
}

// Header is a single response header name/value pair, in emission order.
type Header struct {
	Name  string
	Value string
}

// Headers renders the normative response header contract for d:
// RateLimit-Limit, RateLimit-Remaining, RateLimit-Reset, and (on deny)
// Retry-After.
func (d Decision) Headers() []Header {
	remaining := d.Remaining
	if remaining < 0 {
		remaining = 0
	}
	h := []Header{
		{"RateLimit-Limit", strconv.FormatInt(d.Limit, 10)},
		{"RateLimit-Remaining", strconv.FormatInt(remaining, 10)},
		{"RateLimit-Reset", strconv.FormatInt(d.ResetAt, 10)},
	}
	if !d.Allowed {
		h = append(h, Header{"Retry-After", strconv.FormatInt(d.RetryAfter, 10)})
	}
	return h
}

// exemptDecision builds the synthetic always-allow Decision returned for
// exempt requests.
func exemptDecision(limit int64, now int64) Decision {
	return Decision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit,
		ResetAt:   now,
	}
}
