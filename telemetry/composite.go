package telemetry

import "log"

// Composite fans a single event out to a list of observers in registration
// order. A panicking observer is recovered and logged; it never affects the
// caller's decision (§7 category 4).
type Composite struct {
	NoopObserver
	observers []Observer
}

// NewComposite builds a Composite fanning out to observers in order.
func NewComposite(observers ...Observer) *Composite {
	return &Composite{observers: observers}
}

func (c *Composite) dispatch(name string, fn func(Observer)) {
	for _, o := range c.observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("halt: telemetry observer panic in %s: %v", name, r)
				}
			}()
			fn(o)
		}()
	}
}

func (c *Composite) OnCheck(policy, key string) {
	c.dispatch("OnCheck", func(o Observer) { o.OnCheck(policy, key) })
}

func (c *Composite) OnAllowed(policy, key string, remaining int64) {
	c.dispatch("OnAllowed", func(o Observer) { o.OnAllowed(policy, key, remaining) })
}

func (c *Composite) OnBlocked(policy, key string, retryAfter int64) {
	c.dispatch("OnBlocked", func(o Observer) { o.OnBlocked(policy, key, retryAfter) })
}

func (c *Composite) OnQuotaCheck(quota, identifier string, allowed bool, remaining int64) {
	c.dispatch("OnQuotaCheck", func(o Observer) { o.OnQuotaCheck(quota, identifier, allowed, remaining) })
}

func (c *Composite) OnQuotaExceeded(quota, identifier string) {
	c.dispatch("OnQuotaExceeded", func(o Observer) { o.OnQuotaExceeded(quota, identifier) })
}

func (c *Composite) OnPenaltyApplied(identifier string, until int64) {
	c.dispatch("OnPenaltyApplied", func(o Observer) { o.OnPenaltyApplied(identifier, until) })
}

func (c *Composite) OnViolation(identifier string, score float64) {
	c.dispatch("OnViolation", func(o Observer) { o.OnViolation(identifier, score) })
}

func (c *Composite) OnStoreError(policy, key string, err error) {
	c.dispatch("OnStoreError", func(o Observer) { o.OnStoreError(policy, key, err) })
}

var _ Observer = (*Composite)(nil)
