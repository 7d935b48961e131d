package halt

import "encoding/json"

// Per-key algorithm state. Each is a plain, JSON-marshaled struct; the
// limiter owns serialization so the four algorithms stay pure functions
// over values, never touching the store themselves.

type tokenBucketState struct {
	Tokens     float64 `json:"tokens"`
	LastRefill float64 `json:"last_refill"`
}

type leakyBucketState struct {
	Level    float64 `json:"level"`
	LastLeak float64 `json:"last_leak"`
}

type fixedWindowState struct {
	Count       int64   `json:"count"`
	WindowStart float64 `json:"window_start"`
}

type slidingWindowState struct {
	// Buckets maps sub-bucket index to its count. Indices at or below
	// cur-precision are discarded on every access.
	Buckets map[int64]int64 `json:"buckets"`
}

func encodeState(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeState(data string, v interface{}) error {
	return json.Unmarshal([]byte(data), v)
}
