package halt

import (
	"fmt"
	"time"
)

// Construction-time misconfiguration is the only error category the core
// surfaces to callers (see doc on Policy). Everything else — key extraction
// failure, store unavailability, a panicking observer — is recovered
// locally and reported through telemetry instead.

func errInvalidLimit(limit int64) error {
	return fmt.Errorf("halt: policy: limit must be positive, got %d", limit)
}

func errInvalidWindow(window time.Duration) error {
	return fmt.Errorf("halt: policy: window must be positive, got %s", window)
}

func errInvalidCost(cost int64) error {
	return fmt.Errorf("halt: policy: cost must be positive, got %d", cost)
}

func errBurstBelowLimit(burst, limit int64) error {
	return fmt.Errorf("halt: policy: burst (%d) must be >= limit (%d)", burst, limit)
}

func errUnknownAlgorithm(a Algorithm) error {
	return fmt.Errorf("halt: policy: unknown algorithm %v", a)
}

func errUnknownKeyStrategy(k KeyStrategy) error {
	return fmt.Errorf("halt: policy: unknown key strategy %v", k)
}

func errMissingKeyExtractor() error {
	return fmt.Errorf("halt: policy: KeyCustom strategy requires WithKeyExtractor")
}
