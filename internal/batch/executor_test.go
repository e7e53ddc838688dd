package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/batchload/internal/events"
	"github.com/phrazzld/batchload/internal/platform/logger"
)

func TestExecutor_SucceedsFirstAttempt(t *testing.T) {
	fetcher := newMockFetcher(nil)
	rec := events.NewRecorder()
	exec := newTestExecutor(NewGate(1), fetcher, fastPolicy(), rec)

	result := exec.Execute(context.Background(), WorkItem{ID: "file-1"})

	assert.Equal(t, ItemResult{ItemID: "file-1", Status: StatusSucceeded, Attempts: 1}, result)
	assert.Equal(t, 1, fetcher.Calls("file-1"))
	assert.Equal(t, 1, rec.Count(events.KindAttemptStarted))
	assert.Equal(t, 1, rec.Count(events.KindAttemptSucceeded))
	assert.Equal(t, 1, rec.Count(events.KindItemSucceeded))
	assert.Equal(t, 0, rec.Count(events.KindRetryScheduled))
}

func TestExecutor_SucceedsOnLastAttempt(t *testing.T) {
	policy := fastPolicy()
	fetcher := newMockFetcher(func(ctx context.Context, itemID string, call int) error {
		if call < policy.MaxRetries {
			return errBoom
		}
		return nil
	})
	rec := events.NewRecorder()
	exec := newTestExecutor(NewGate(1), fetcher, policy, rec)

	result := exec.Execute(context.Background(), WorkItem{ID: "file-1"})

	assert.Equal(t, StatusSucceeded, result.Status)
	assert.Equal(t, policy.MaxRetries, result.Attempts)
	assert.NoError(t, result.Err)
	assert.Equal(t, policy.MaxRetries-1, rec.Count(events.KindAttemptFailed))
	assert.Equal(t, policy.MaxRetries-1, rec.Count(events.KindRetryScheduled))
}

func TestExecutor_ExhaustsRetries(t *testing.T) {
	policy := fastPolicy()
	fetcher := newMockFetcher(func(ctx context.Context, itemID string, call int) error {
		return errBoom
	})
	rec := events.NewRecorder()
	exec := newTestExecutor(NewGate(1), fetcher, policy, rec)

	result := exec.Execute(context.Background(), WorkItem{ID: "file-1"})

	assert.Equal(t, StatusExhaustedRetries, result.Status)
	assert.Equal(t, policy.MaxRetries, result.Attempts)
	assert.Equal(t, policy.MaxRetries, fetcher.Calls("file-1"), "no attempt may follow the last one")

	require.Error(t, result.Err)
	assert.ErrorIs(t, result.Err, ErrItemExhausted)
	assert.ErrorIs(t, result.Err, ErrFetchFailure)
	assert.ErrorIs(t, result.Err, errBoom)

	var attemptErr *AttemptError
	require.True(t, errors.As(result.Err, &attemptErr))
	assert.Equal(t, "file-1", attemptErr.ItemID)
	assert.Equal(t, policy.MaxRetries, attemptErr.Attempt)

	// Retries are announced between attempts only
	assert.Equal(t, policy.MaxRetries-1, rec.Count(events.KindRetryScheduled))
	assert.Equal(t, 1, rec.Count(events.KindItemExhausted))
}

func TestExecutor_BackoffDelays(t *testing.T) {
	policy := fastPolicy()
	policy.MaxRetries = 4
	policy.InitialBackoff = 10 * time.Millisecond

	fetcher := newMockFetcher(func(ctx context.Context, itemID string, call int) error {
		return errBoom
	})
	rec := events.NewRecorder()
	exec := newTestExecutor(NewGate(1), fetcher, policy, rec)

	exec.Execute(context.Background(), WorkItem{ID: "file-1"})

	retries := rec.OfKind(events.KindRetryScheduled)
	require.Len(t, retries, policy.MaxRetries-1)
	for i, ev := range retries {
		assert.Equal(t, i+1, ev.Attempt)
		assert.Equal(t, BackoffDelay(policy.InitialBackoff, i+1), ev.Delay)
		if i > 0 {
			assert.Greater(t, ev.Delay, retries[i-1].Delay)
		}
	}

	// Attempt k (k >= 2) starts at least initial × 2^(k-2) after attempt k-1
	starts := fetcher.Starts("file-1")
	require.Len(t, starts, policy.MaxRetries)
	for k := 2; k <= len(starts); k++ {
		gap := starts[k-1].Sub(starts[k-2])
		assert.GreaterOrEqual(t, gap, policy.InitialBackoff*time.Duration(1<<(k-2)),
			"gap before attempt %d", k)
	}
}

func TestExecutor_TimeoutCountsAsFailure(t *testing.T) {
	policy := fastPolicy()
	policy.AttemptTimeout = 20 * time.Millisecond
	policy.MaxRetries = 2

	fetcher := newMockFetcher(func(ctx context.Context, itemID string, call int) error {
		<-ctx.Done()
		return ctx.Err()
	})
	rec := events.NewRecorder()
	exec := newTestExecutor(NewGate(1), fetcher, policy, rec)

	result := exec.Execute(context.Background(), WorkItem{ID: "file-1"})

	assert.Equal(t, StatusExhaustedRetries, result.Status)
	assert.Equal(t, 2, result.Attempts)
	assert.ErrorIs(t, result.Err, ErrFetchTimeout)
	assert.Equal(t, 2, rec.Count(events.KindAttemptTimedOut))
	assert.Equal(t, 0, rec.Count(events.KindAttemptFailed))
}

func TestExecutor_TimeoutReleasesSlotImmediately(t *testing.T) {
	policy := fastPolicy()
	policy.AttemptTimeout = 20 * time.Millisecond
	policy.MaxRetries = 1

	// The fetch ignores its context and only returns once released
	release := make(chan struct{})
	defer close(release)
	stuck := newMockFetcher(func(ctx context.Context, itemID string, call int) error {
		<-release
		return nil
	})

	gate := NewGate(1)
	exec := newTestExecutor(gate, stuck, policy, nil)

	start := time.Now()
	result := exec.Execute(context.Background(), WorkItem{ID: "stuck"})

	assert.Equal(t, StatusExhaustedRetries, result.Status)
	assert.ErrorIs(t, result.Err, ErrFetchTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, 0, gate.Active(), "slot must be released once the deadline elapses")

	// The only slot is available to the next attempt while the stale fetch still runs
	acquireCtx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, gate.Acquire(acquireCtx))
	gate.Release()
}

func TestExecutor_StaleResultIsIgnored(t *testing.T) {
	policy := fastPolicy()
	policy.AttemptTimeout = 10 * time.Millisecond
	policy.InitialBackoff = time.Millisecond

	// The first attempt outlives its deadline and then reports success;
	// every later attempt fails fast.
	lateSuccess := make(chan struct{})
	fetcher := newMockFetcher(func(ctx context.Context, itemID string, call int) error {
		if call == 1 {
			time.Sleep(80 * time.Millisecond)
			close(lateSuccess)
			return nil
		}
		return errBoom
	})
	gate := NewGate(1)
	rec := events.NewRecorder()
	exec := newTestExecutor(gate, fetcher, policy, rec)

	result := exec.Execute(context.Background(), WorkItem{ID: "file-1"})

	assert.Equal(t, StatusExhaustedRetries, result.Status)
	assert.Equal(t, policy.MaxRetries, result.Attempts)

	<-lateSuccess
	assert.Equal(t, 0, gate.Active())
	assert.Equal(t, 0, rec.Count(events.KindAttemptSucceeded))
	assert.Equal(t, 1, rec.Count(events.KindAttemptTimedOut))
}

func TestExecutor_PanicIsFailure(t *testing.T) {
	policy := fastPolicy()
	fetcher := newMockFetcher(func(ctx context.Context, itemID string, call int) error {
		if call == 1 {
			panic("test panic")
		}
		return nil
	})
	gate := NewGate(1)
	exec := newTestExecutor(gate, fetcher, policy, nil)

	result := exec.Execute(context.Background(), WorkItem{ID: "file-1"})

	assert.Equal(t, StatusSucceeded, result.Status)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, 0, gate.Active())
}

func TestExecutor_CanceledDuringBackoff(t *testing.T) {
	policy := fastPolicy()
	policy.InitialBackoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	fetcher := newMockFetcher(func(_ context.Context, itemID string, call int) error {
		return errBoom
	})
	rec := events.NewRecorder()
	exec := newTestExecutor(NewGate(1), fetcher, policy, rec)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	result := exec.Execute(ctx, WorkItem{ID: "file-1"})

	assert.Equal(t, StatusCanceled, result.Status)
	assert.Equal(t, 1, result.Attempts)
	assert.ErrorIs(t, result.Err, context.Canceled)
	assert.Equal(t, 1, rec.Count(events.KindItemCanceled))
}

func TestExecutor_CanceledWaitingForGate(t *testing.T) {
	gate := NewGate(1)
	require.NoError(t, gate.Acquire(context.Background()))
	defer gate.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	fetcher := newMockFetcher(nil)
	exec := newTestExecutor(gate, fetcher, fastPolicy(), nil)

	result := exec.Execute(ctx, WorkItem{ID: "file-1"})

	assert.Equal(t, StatusCanceled, result.Status)
	assert.Equal(t, 0, result.Attempts, "a fetch that never started is not an attempt")
	assert.Equal(t, 0, fetcher.Calls("file-1"))
}

func TestAttemptError(t *testing.T) {
	timeout := &AttemptError{ItemID: "a", Attempt: 2, Outcome: OutcomeTimedOut}
	assert.ErrorIs(t, timeout, ErrFetchTimeout)
	assert.NotErrorIs(t, timeout, ErrFetchFailure)
	assert.Contains(t, timeout.Error(), `item "a" attempt 2`)

	failure := &AttemptError{ItemID: "a", Attempt: 1, Outcome: OutcomeFailed, Cause: errBoom}
	assert.ErrorIs(t, failure, ErrFetchFailure)
	assert.ErrorIs(t, failure, errBoom)
	assert.Contains(t, failure.Error(), "boom")
}

// failingEmitter rejects every event.
type failingEmitter struct{}

func (failingEmitter) EmitEvent(context.Context, events.Event) error {
	return errors.New("handler unavailable")
}

func TestExecutor_EmitFailureIsLogged(t *testing.T) {
	log, logBuf := logger.GetTestLogger(t)
	exec := NewExecutor(NewGate(1), newMockFetcher(nil), fastPolicy(), uuid.New(), log, failingEmitter{})

	result := exec.Execute(context.Background(), WorkItem{ID: "file-1"})

	assert.Equal(t, StatusSucceeded, result.Status)
	entries, err := logBuf.EntriesWithMessage("event emit failed")
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "item_succeeded", entries[len(entries)-1]["kind"])
	assert.Equal(t, "handler unavailable", entries[len(entries)-1]["error"])
}
