package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind identifies what an Event describes.
type Kind string

// Event kinds, in the order they normally occur within a batch
const (
	KindBatchStarted     Kind = "batch_started"
	KindConfigLoaded     Kind = "config_loaded"
	KindConfigLoadFailed Kind = "config_load_failed"
	KindAttemptStarted   Kind = "attempt_started"
	KindAttemptSucceeded Kind = "attempt_succeeded"
	KindAttemptTimedOut  Kind = "attempt_timed_out"
	KindAttemptFailed    Kind = "attempt_failed"
	KindAttemptCanceled  Kind = "attempt_canceled"
	KindRetryScheduled   Kind = "retry_scheduled"
	KindItemSucceeded    Kind = "item_succeeded"
	KindItemExhausted    Kind = "item_exhausted"
	KindItemCanceled     Kind = "item_canceled"
	KindInitStarted      Kind = "init_started"
	KindInitSucceeded    Kind = "init_succeeded"
	KindInitFailed       Kind = "init_failed"
	KindBatchCompleted   Kind = "batch_completed"
)

// Event is one entry of a batch timeline. Fields that do not apply to the
// Kind are left at their zero value.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID

	// BatchID identifies the batch run that produced the event
	BatchID uuid.UUID

	Kind Kind

	// ItemID and Attempt are set for attempt and item events
	ItemID  string
	Attempt int

	// Elapsed is the attempt duration, or the batch duration for KindBatchCompleted
	Elapsed time.Duration

	// Delay is the backoff sleep announced by KindRetryScheduled
	Delay time.Duration

	// Active is the number of gate slots held right after an attempt started
	Active int

	// Err carries the failure for failed, timed out and exhausted events
	Err error

	// Totals for KindConfigLoaded and KindBatchCompleted
	Total     int
	Succeeded int
	Exhausted int
	Canceled  int

	// Initialized reports whether the Initializer succeeded (KindBatchCompleted)
	Initialized bool

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time
}

// NewEvent creates an Event of the given kind for a batch.
func NewEvent(batchID uuid.UUID, kind Kind) Event {
	return Event{
		ID:        uuid.New(),
		BatchID:   batchID,
		Kind:      kind,
		CreatedAt: time.Now(),
	}
}

// EventHandler defines an interface for components that can handle events.
// Handlers are called concurrently from every running item and must be safe
// for concurrent use.
type EventHandler interface {
	HandleEvent(ctx context.Context, event Event) error
}

// EventHandlerFunc adapts a function to the EventHandler interface.
type EventHandlerFunc func(ctx context.Context, event Event) error

// HandleEvent calls f(ctx, event).
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event Event) error
}

// NopEmitter discards every event.
type NopEmitter struct{}

// EmitEvent implements EventEmitter.
func (NopEmitter) EmitEvent(context.Context, Event) error { return nil }
