package batch

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// BackoffMultiplier is the growth factor between consecutive backoff delays.
const BackoffMultiplier = 2

// Policy holds the concurrency, timeout and retry settings of a batch.
type Policy struct {
	// MaxConcurrency bounds how many fetch attempts may be in flight at once
	MaxConcurrency int `validate:"gte=1"`

	// AttemptTimeout is the deadline applied to every single fetch attempt
	AttemptTimeout time.Duration `validate:"gt=0"`

	// MaxRetries is the total number of attempts allowed per item
	MaxRetries int `validate:"gte=1"`

	// InitialBackoff is the delay before the second attempt; later delays double
	InitialBackoff time.Duration `validate:"gt=0"`
}

// DefaultPolicy returns three concurrent attempts, a 3s attempt timeout,
// three attempts per item and a 500ms initial backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxConcurrency: 3,
		AttemptTimeout: 3 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
	}
}

var policyValidator = validator.New()

// Validate checks that every field is within its allowed range.
func (p Policy) Validate() error {
	if err := policyValidator.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	return nil
}
