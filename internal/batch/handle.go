package batch

import (
	"context"

	"github.com/google/uuid"
)

// Handle is an owned reference to a batch started with Coordinator.Start.
type Handle struct {
	id     uuid.UUID
	cancel context.CancelFunc
	done   chan struct{}

	// written once by the batch goroutine before done is closed
	report *Report
	err    error
}

// ID returns the batch identifier, also attached to every log line and event.
func (h *Handle) ID() uuid.UUID {
	return h.id
}

// Done returns a channel that is closed when the batch has finished.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the batch has finished and returns its report and
// error, with the same meaning as Coordinator.Run. It may be called any
// number of times.
func (h *Handle) Wait() (*Report, error) {
	<-h.done
	return h.report, h.err
}

// Cancel aborts the batch. Items that have not settled are recorded as
// canceled and the Initializer is not called.
func (h *Handle) Cancel() {
	h.cancel()
}
