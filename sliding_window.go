package halt

import "math"

// slidingWindowTransition implements §4.3.4. The window is divided into
// Policy.Precision sub-buckets of bucket_size = window/precision seconds;
// only sub-buckets within the last `precision` buckets of `cur` are
// retained. reset_at is computed from the oldest retained sub-bucket plus
// one extra bucket (§9 open question — documented as-designed, since it
// bounds "when a deny could become an allow", not the instant it will).
func slidingWindowTransition(p *Policy, prior *slidingWindowState, cost int64, now float64) (Decision, *slidingWindowState) {
	precision := int64(p.Precision)
	bucketSize := p.Window.Seconds() / float64(precision)
	cur := int64(math.Floor(now / bucketSize))

	state := prior
	if state == nil {
		state = &slidingWindowState{Buckets: map[int64]int64{}}
	}
	buckets := make(map[int64]int64, len(state.Buckets))
	for idx, count := range state.Buckets {
		if idx > cur-precision {
			buckets[idx] = count
		}
	}

	var total int64
	oldest := cur
	first := true
	for idx, count := range buckets {
		total += count
		if first || idx < oldest {
			oldest = idx
			first = false
		}
	}

	resetAt := int64(math.Ceil(float64(oldest+precision+1) * bucketSize))

	if total+cost <= p.Limit {
		newBuckets := make(map[int64]int64, len(buckets)+1)
		for idx, count := range buckets {
			newBuckets[idx] = count
		}
		newBuckets[cur] += cost
		return Decision{
			Allowed:   true,
			Limit:     p.Limit,
			Remaining: p.Limit - total - cost,
			ResetAt:   resetAt,
		}, &slidingWindowState{Buckets: newBuckets}
	}

	return Decision{
		Allowed:    false,
		Limit:      p.Limit,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: int64(math.Ceil(bucketSize)) + 1,
	}, &slidingWindowState{Buckets: buckets}
}
