package batch

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// newBackoffSchedule returns a schedule whose n-th NextBackOff call yields
// initial × 2^(n-1). Randomization is disabled so delays are strictly increasing.
func newBackoffSchedule(initial time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.RandomizationFactor = 0
	b.Multiplier = BackoffMultiplier
	b.MaxInterval = time.Duration(math.MaxInt64)
	b.Reset()
	return b
}

// BackoffDelay returns the delay slept after the given failed attempt
// (1-based): initial × 2^(attempt-1).
func BackoffDelay(initial time.Duration, attempt int) time.Duration {
	b := newBackoffSchedule(initial)
	var d time.Duration
	for i := 0; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}
