package webhook

import (
	"math/rand"
	"time"
)

// retryDelays is the backoff schedule between delivery attempts: 1 minute,
// then 5 minutes, 30 minutes, 2 hours, and finally 12 hours.
var retryDelays = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	30 * time.Minute,
	2 * time.Hour,
	12 * time.Hour,
}

const (
	// DefaultMaxAttempts is how many times a delivery is tried before it
	// is marked exhausted.
	DefaultMaxAttempts = 5

	// JitterFactor spreads retries by ±20% so endpoints recovering from
	// an outage are not hit by every backed-up delivery at once.
	JitterFactor = 0.2
)

// NextRetryDelay returns the jittered delay before the next attempt.
// attemptCount is 0-indexed; attempts past the schedule reuse its last
// entry.
func NextRetryDelay(attemptCount int) time.Duration {
	switch {
	case attemptCount < 0:
		attemptCount = 0
	case attemptCount >= len(retryDelays):
		attemptCount = len(retryDelays) - 1
	}

	base := retryDelays[attemptCount]
	jitter := (rand.Float64()*2 - 1) * float64(base) * JitterFactor
	return time.Duration(float64(base) + jitter)
}

// NextRetryAt returns the wall-clock time of the next attempt.
func NextRetryAt(attemptCount int) time.Time {
	return time.Now().Add(NextRetryDelay(attemptCount))
}

// IsExhausted reports whether a delivery has used up its attempt budget.
func IsExhausted(attemptCount, maxAttempts int) bool {
	return attemptCount >= maxAttempts
}

// GetRetryDelays returns a copy of the backoff schedule.
func GetRetryDelays() []time.Duration {
	return append([]time.Duration{}, retryDelays...)
}
