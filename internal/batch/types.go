package batch

import (
	"time"

	"github.com/google/uuid"
)

// WorkItem is one unit of fetchable work. It is immutable once the item
// list has been produced.
type WorkItem struct {
	ID string
}

// AttemptOutcome is the result of a single fetch attempt.
type AttemptOutcome string

// Possible attempt outcomes
const (
	OutcomeInFlight AttemptOutcome = "in_flight"
	OutcomeSuccess  AttemptOutcome = "success"
	OutcomeTimedOut AttemptOutcome = "timed_out"
	OutcomeFailed   AttemptOutcome = "failed"
	OutcomeCanceled AttemptOutcome = "canceled"
)

// AttemptRecord describes one attempt. Records are only used for logging
// and events; they are not retained in the ItemResult.
type AttemptRecord struct {
	ItemID  string
	Attempt int
	Outcome AttemptOutcome
	Err     error
	Elapsed time.Duration
}

// ItemStatus is the terminal status of a work item.
type ItemStatus string

// Possible item statuses
const (
	StatusSucceeded        ItemStatus = "succeeded"
	StatusExhaustedRetries ItemStatus = "exhausted_retries"
	// StatusCanceled is only produced when the whole batch is canceled
	// before the item reached one of the other terminal states.
	StatusCanceled ItemStatus = "canceled"
)

// ItemResult is produced exactly once per WorkItem.
type ItemResult struct {
	ItemID   string
	Status   ItemStatus
	Attempts int
	// Err is nil for succeeded items. For exhausted items it wraps
	// ErrItemExhausted and the last AttemptError.
	Err error
}

// BatchOutcome aggregates the item results of a batch.
type BatchOutcome struct {
	Total     int
	Succeeded int
	Exhausted int
	Canceled  int
}

// Aggregate folds item results into a BatchOutcome.
func Aggregate(results []ItemResult) BatchOutcome {
	out := BatchOutcome{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusSucceeded:
			out.Succeeded++
		case StatusExhaustedRetries:
			out.Exhausted++
		case StatusCanceled:
			out.Canceled++
		}
	}
	return out
}

// Report is the final record of a batch run.
type Report struct {
	BatchID uuid.UUID
	// Items holds one result per work item, in item-list order.
	Items       []ItemResult
	Outcome     BatchOutcome
	Initialized bool
	InitErr     error
	Duration    time.Duration
}

// Result returns the result for the given item id.
func (r *Report) Result(itemID string) (ItemResult, bool) {
	for _, res := range r.Items {
		if res.ItemID == itemID {
			return res, true
		}
	}
	return ItemResult{}, false
}
