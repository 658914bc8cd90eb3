package retry

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// exponential builds the backoff for p. A zero MaxElapsedTime leaves the schedule bounded only
// by MaxAttempts.
func (p Policy) exponential() *backoff.ExponentialBackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	exp.Multiplier = p.Multiplier
	exp.MaxElapsedTime = p.MaxElapsedTime
	exp.Reset()
	return exp
}

// CalculateBackoffDuration is the delay before attempt+1, ignoring jitter. It is only used for
// reporting; the schedule itself comes from the randomized backoff.
func CalculateBackoffDuration(attempt int, initialInterval time.Duration, multiplier float64, maxInterval time.Duration) time.Duration {
	delay := float64(initialInterval) * math.Pow(multiplier, float64(attempt))
	if delay > float64(maxInterval) {
		return maxInterval
	}
	return time.Duration(delay)
}
