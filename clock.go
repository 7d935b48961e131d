package halt

import "time"

// Clock supplies wall-clock time to the limiter and accountants. The
// default is time.Now; tests substitute a func returning a fixed or
// manually-advanced value so the pure algorithm transitions (which take now
// as a plain float64/int64 parameter, never reading the clock themselves)
// can be driven without time.Sleep.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

func (c Clock) nowSeconds() float64 {
	return float64(c.now().UnixNano()) / 1e9
}

func (c Clock) nowUnix() int64 {
	return c.now().Unix()
}
