package batch

import (
	"errors"
	"fmt"
)

// Batch-level and attempt-level errors.
var (
	// ErrConfigLoad is returned when the item list could not be obtained.
	// No executor runs and the Initializer is never called.
	ErrConfigLoad = errors.New("config load failed")

	// ErrInvalidItemList is wrapped together with ErrConfigLoad when the
	// loader returned a list that cannot be processed.
	ErrInvalidItemList = errors.New("invalid item list")

	// ErrFetchTimeout marks an attempt whose deadline elapsed before the
	// fetch completed.
	ErrFetchTimeout = errors.New("fetch timed out")

	// ErrFetchFailure marks an attempt whose fetch returned an error.
	ErrFetchFailure = errors.New("fetch failed")

	// ErrItemExhausted is recorded on an item whose every attempt failed.
	ErrItemExhausted = errors.New("item exhausted retries")

	// ErrInit is returned when the Initializer failed after the batch settled.
	ErrInit = errors.New("initialization failed")

	// ErrInvalidPolicy is returned when a Policy fails validation.
	ErrInvalidPolicy = errors.New("invalid batch policy")
)

// AttemptError describes why a single fetch attempt did not succeed.
type AttemptError struct {
	ItemID  string
	Attempt int
	Outcome AttemptOutcome
	Cause   error
}

// Error implements the error interface.
func (e *AttemptError) Error() string {
	if e.Outcome == OutcomeTimedOut {
		return fmt.Sprintf("item %q attempt %d: %v", e.ItemID, e.Attempt, ErrFetchTimeout)
	}
	return fmt.Sprintf("item %q attempt %d: %v: %v", e.ItemID, e.Attempt, ErrFetchFailure, e.Cause)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *AttemptError) Unwrap() []error {
	kind := ErrFetchFailure
	if e.Outcome == OutcomeTimedOut {
		kind = ErrFetchTimeout
	}
	if e.Cause == nil {
		return []error{kind}
	}
	return []error{kind, e.Cause}
}

// exhaustedError wraps the last attempt error of an item that ran out of attempts.
func exhaustedError(itemID string, attempts int, last error) error {
	return fmt.Errorf("%w: item %q after %d attempts: %w", ErrItemExhausted, itemID, attempts, last)
}
