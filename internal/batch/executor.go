package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/batchload/internal/events"
)

// Executor drives the attempts of one work item at a time: it acquires a
// gate slot for every attempt, bounds the attempt with the policy timeout,
// and backs off exponentially between failed attempts without holding a slot.
//
// An Executor is safe for concurrent use; each Execute call keeps its own state.
type Executor struct {
	gate    *Gate
	fetcher Fetcher
	policy  Policy
	batchID uuid.UUID
	logger  *slog.Logger
	emitter events.EventEmitter
}

// NewExecutor creates an Executor that admits attempts through gate.
func NewExecutor(
	gate *Gate,
	fetcher Fetcher,
	policy Policy,
	batchID uuid.UUID,
	logger *slog.Logger,
	emitter events.EventEmitter,
) *Executor {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	return &Executor{
		gate:    gate,
		fetcher: fetcher,
		policy:  policy,
		batchID: batchID,
		logger:  logger,
		emitter: emitter,
	}
}

// Execute runs the retry state machine for item and returns its terminal
// result. Attempt failures never escape as errors; they become state
// transitions, log lines and events.
func (e *Executor) Execute(ctx context.Context, item WorkItem) ItemResult {
	logger := e.logger.With("item_id", item.ID)
	schedule := newBackoffSchedule(e.policy.InitialBackoff)

	attempts := 0
	for {
		rec, started := e.attempt(ctx, logger, item, attempts+1)
		if started {
			attempts++
		}

		switch rec.Outcome {
		case OutcomeSuccess:
			e.emitItem(ctx, events.KindItemSucceeded, item.ID, attempts, nil)
			return ItemResult{ItemID: item.ID, Status: StatusSucceeded, Attempts: attempts}
		case OutcomeCanceled:
			return e.canceled(ctx, logger, item, attempts)
		}

		if attempts >= e.policy.MaxRetries {
			err := exhaustedError(item.ID, attempts, rec.Err)
			logger.Error("item exhausted retries",
				"attempts", attempts,
				"error", rec.Err)
			e.emitItem(ctx, events.KindItemExhausted, item.ID, attempts, err)
			return ItemResult{
				ItemID:   item.ID,
				Status:   StatusExhaustedRetries,
				Attempts: attempts,
				Err:      err,
			}
		}

		delay := schedule.NextBackOff()
		logger.Info("retry scheduled",
			"attempt", attempts,
			"next_attempt", attempts+1,
			"backoff_ms", delay.Milliseconds())
		ev := events.NewEvent(e.batchID, events.KindRetryScheduled)
		ev.ItemID = item.ID
		ev.Attempt = attempts
		ev.Delay = delay
		e.emit(ctx, ev)

		if err := sleep(ctx, delay); err != nil {
			return e.canceled(ctx, logger, item, attempts)
		}
	}
}

// attempt performs a single gated fetch. The returned flag reports whether
// the fetch was started, which is false only when the gate wait was canceled.
func (e *Executor) attempt(
	ctx context.Context,
	logger *slog.Logger,
	item WorkItem,
	n int,
) (AttemptRecord, bool) {
	rec := AttemptRecord{ItemID: item.ID, Attempt: n, Outcome: OutcomeInFlight}

	if err := e.gate.Acquire(ctx); err != nil {
		rec.Outcome = OutcomeCanceled
		rec.Err = err
		return rec, false
	}

	start := time.Now()
	active := e.gate.Active()
	logger.Info("attempt started", "attempt", n, "active", active)
	ev := events.NewEvent(e.batchID, events.KindAttemptStarted)
	ev.ItemID = item.ID
	ev.Attempt = n
	ev.Active = active
	e.emit(ctx, ev)

	attemptCtx, cancel := context.WithTimeout(ctx, e.policy.AttemptTimeout)

	// Buffered so an abandoned fetch can still deliver its result and exit;
	// nothing reads it after this attempt is decided.
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("fetch panicked: %v", r)
			}
		}()
		done <- e.fetcher.Fetch(attemptCtx, item.ID)
	}()

	var fetchErr error
	select {
	case fetchErr = <-done:
		switch {
		case fetchErr == nil:
			rec.Outcome = OutcomeSuccess
		case ctx.Err() != nil:
			rec.Outcome = OutcomeCanceled
		case errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
			rec.Outcome = OutcomeTimedOut
		default:
			rec.Outcome = OutcomeFailed
		}
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			rec.Outcome = OutcomeCanceled
		} else {
			rec.Outcome = OutcomeTimedOut
		}
	}
	cancel()
	e.gate.Release()
	rec.Elapsed = time.Since(start)

	attrs := []any{"attempt", n, "elapsed_ms", rec.Elapsed.Milliseconds()}
	switch rec.Outcome {
	case OutcomeSuccess:
		logger.Info("attempt succeeded", attrs...)
		e.emitAttempt(ctx, events.KindAttemptSucceeded, rec)
	case OutcomeTimedOut:
		rec.Err = &AttemptError{ItemID: item.ID, Attempt: n, Outcome: OutcomeTimedOut}
		logger.Warn("attempt timed out",
			append(attrs, "timeout_ms", e.policy.AttemptTimeout.Milliseconds())...)
		e.emitAttempt(ctx, events.KindAttemptTimedOut, rec)
	case OutcomeFailed:
		rec.Err = &AttemptError{ItemID: item.ID, Attempt: n, Outcome: OutcomeFailed, Cause: fetchErr}
		logger.Warn("attempt failed", append(attrs, "error", fetchErr)...)
		e.emitAttempt(ctx, events.KindAttemptFailed, rec)
	case OutcomeCanceled:
		rec.Err = ctx.Err()
		e.emitAttempt(ctx, events.KindAttemptCanceled, rec)
	}

	return rec, true
}

func (e *Executor) canceled(ctx context.Context, logger *slog.Logger, item WorkItem, attempts int) ItemResult {
	logger.Warn("item canceled", "attempts", attempts, "error", ctx.Err())
	e.emitItem(ctx, events.KindItemCanceled, item.ID, attempts, ctx.Err())
	return ItemResult{ItemID: item.ID, Status: StatusCanceled, Attempts: attempts, Err: ctx.Err()}
}

// emit publishes ev. Handler failures never change an item's outcome.
func (e *Executor) emit(ctx context.Context, ev events.Event) {
	if err := e.emitter.EmitEvent(ctx, ev); err != nil {
		e.logger.Debug("event emit failed", "kind", ev.Kind, "item_id", ev.ItemID, "error", err)
	}
}

func (e *Executor) emitAttempt(ctx context.Context, kind events.Kind, rec AttemptRecord) {
	ev := events.NewEvent(e.batchID, kind)
	ev.ItemID = rec.ItemID
	ev.Attempt = rec.Attempt
	ev.Elapsed = rec.Elapsed
	ev.Err = rec.Err
	e.emit(ctx, ev)
}

func (e *Executor) emitItem(ctx context.Context, kind events.Kind, itemID string, attempts int, err error) {
	ev := events.NewEvent(e.batchID, kind)
	ev.ItemID = itemID
	ev.Attempt = attempts
	ev.Err = err
	e.emit(ctx, ev)
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
