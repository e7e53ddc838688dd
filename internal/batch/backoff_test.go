package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay(t *testing.T) {
	testCases := []struct {
		attempt  int
		expected time.Duration
	}{
		{attempt: 1, expected: 500 * time.Millisecond},
		{attempt: 2, expected: time.Second},
		{attempt: 3, expected: 2 * time.Second},
		{attempt: 4, expected: 4 * time.Second},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, BackoffDelay(500*time.Millisecond, tc.attempt),
			"delay after attempt %d", tc.attempt)
	}
}

func TestBackoffSchedule_StrictlyIncreasing(t *testing.T) {
	schedule := newBackoffSchedule(10 * time.Millisecond)

	prev := time.Duration(0)
	for i := 1; i <= 12; i++ {
		d := schedule.NextBackOff()
		assert.Greater(t, d, prev, "delay %d must be larger than the previous one", i)
		assert.Equal(t, 10*time.Millisecond*time.Duration(1<<(i-1)), d)
		prev = d
	}
}
