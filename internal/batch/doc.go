// Package batch runs a list of independent work items through a bounded
// number of concurrent fetch attempts. Each item is retried with exponential
// backoff until it succeeds or exhausts its attempt budget, and only after
// every item has settled does the batch call its finalization step.
//
// The main pieces are:
//   - Gate: a counting admission gate limiting simultaneous fetch attempts
//   - Executor: the per-item retry state machine (timeout, backoff, attempt cap)
//   - Coordinator: loads the item list, fans out executors, joins them and
//     calls the Initializer exactly once
//   - Handle: an owned, cancellable, awaitable reference to a running batch
package batch
