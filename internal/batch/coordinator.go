package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/batchload/internal/events"
)

// Coordinator runs whole batches: it loads the item list, starts one
// Executor per item behind a shared Gate, waits for every item to settle
// and then calls the Initializer exactly once.
type Coordinator struct {
	loader      ConfigLoader
	fetcher     Fetcher
	initializer Initializer
	policy      Policy
	logger      *slog.Logger
	emitter     events.EventEmitter
}

// Option configures optional Coordinator collaborators.
type Option func(*Coordinator)

// WithEventEmitter publishes batch events to emitter.
func WithEventEmitter(emitter events.EventEmitter) Option {
	return func(c *Coordinator) {
		if emitter != nil {
			c.emitter = emitter
		}
	}
}

// NewCoordinator creates a Coordinator after validating the policy and
// checking that every collaborator is present.
func NewCoordinator(
	loader ConfigLoader,
	fetcher Fetcher,
	initializer Initializer,
	policy Policy,
	logger *slog.Logger,
	opts ...Option,
) (*Coordinator, error) {
	if loader == nil || fetcher == nil || initializer == nil {
		return nil, errors.New("loader, fetcher and initializer are required")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Coordinator{
		loader:      loader,
		fetcher:     fetcher,
		initializer: initializer,
		policy:      policy,
		logger:      logger.With("component", "batch_coordinator"),
		emitter:     events.NopEmitter{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Policy returns the policy the coordinator was created with.
func (c *Coordinator) Policy() Policy {
	return c.policy
}

// Start launches a batch in the background and returns its handle.
// Canceling ctx or calling Handle.Cancel aborts the batch.
func (c *Coordinator) Start(ctx context.Context) *Handle {
	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		id:     uuid.New(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		defer cancel()
		h.report, h.err = c.run(runCtx, h.id)
	}()

	return h
}

// Run executes a batch and blocks until it has finished.
//
// The returned error wraps ErrConfigLoad when the item list could not be
// obtained (the report is nil), ErrInit when the Initializer failed, or is
// the context error when the batch was canceled. Individual item failures
// are never returned as errors; they are recorded in the report.
func (c *Coordinator) Run(ctx context.Context) (*Report, error) {
	return c.Start(ctx).Wait()
}

func (c *Coordinator) run(ctx context.Context, batchID uuid.UUID) (*Report, error) {
	start := time.Now()
	logger := c.logger.With("batch_id", batchID)

	logger.Info("batch started",
		"max_concurrency", c.policy.MaxConcurrency,
		"attempt_timeout_ms", c.policy.AttemptTimeout.Milliseconds(),
		"max_retries", c.policy.MaxRetries,
		"initial_backoff_ms", c.policy.InitialBackoff.Milliseconds())
	c.emit(ctx, events.NewEvent(batchID, events.KindBatchStarted))

	items, err := c.loadItems(ctx)
	if err != nil {
		logger.Error("config load failed", "error", err)
		ev := events.NewEvent(batchID, events.KindConfigLoadFailed)
		ev.Err = err
		c.emit(ctx, ev)
		return nil, err
	}

	logger.Info("config loaded", "total", len(items))
	loaded := events.NewEvent(batchID, events.KindConfigLoaded)
	loaded.Total = len(items)
	c.emit(ctx, loaded)

	results := c.executeAll(ctx, batchID, logger, items)

	report := &Report{
		BatchID: batchID,
		Items:   results,
		Outcome: Aggregate(results),
	}

	var runErr error
	if ctxErr := ctx.Err(); ctxErr != nil {
		runErr = ctxErr
	} else {
		report.InitErr = c.initialize(ctx, batchID, logger)
		report.Initialized = report.InitErr == nil
		runErr = report.InitErr
	}
	report.Duration = time.Since(start)

	c.summarize(ctx, logger, report)
	return report, runErr
}

// loadItems calls the loader and validates the list it returns.
func (c *Coordinator) loadItems(ctx context.Context) ([]WorkItem, error) {
	ids, err := c.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigLoad, err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %w: no items", ErrConfigLoad, ErrInvalidItemList)
	}

	seen := make(map[string]struct{}, len(ids))
	items := make([]WorkItem, 0, len(ids))
	for i, id := range ids {
		if id == "" {
			return nil, fmt.Errorf("%w: %w: empty id at position %d", ErrConfigLoad, ErrInvalidItemList, i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %w: duplicate id %q", ErrConfigLoad, ErrInvalidItemList, id)
		}
		seen[id] = struct{}{}
		items = append(items, WorkItem{ID: id})
	}
	return items, nil
}

// executeAll starts one executor per item and joins them. Every goroutine
// returns nil so a failed item can never abort its siblings.
func (c *Coordinator) executeAll(
	ctx context.Context,
	batchID uuid.UUID,
	logger *slog.Logger,
	items []WorkItem,
) []ItemResult {
	gate := NewGate(c.policy.MaxConcurrency)
	executor := NewExecutor(gate, c.fetcher, c.policy, batchID, logger, c.emitter)
	results := make([]ItemResult, len(items))

	var g errgroup.Group
	for i, item := range items {
		g.Go(func() error {
			results[i] = executor.Execute(ctx, item)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// initialize calls the Initializer once and converts a failure or panic
// into an ErrInit-wrapped error.
func (c *Coordinator) initialize(ctx context.Context, batchID uuid.UUID, logger *slog.Logger) (err error) {
	logger.Info("initializer started")
	c.emit(ctx, events.NewEvent(batchID, events.KindInitStarted))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: initializer panicked: %v", ErrInit, r)
		}
		if err != nil {
			logger.Error("initializer failed", "error", err)
			ev := events.NewEvent(batchID, events.KindInitFailed)
			ev.Err = err
			c.emit(ctx, ev)
			return
		}
		logger.Info("initializer succeeded")
		c.emit(ctx, events.NewEvent(batchID, events.KindInitSucceeded))
	}()

	if initErr := c.initializer.Init(ctx); initErr != nil {
		return fmt.Errorf("%w: %w", ErrInit, initErr)
	}
	return nil
}

func (c *Coordinator) summarize(ctx context.Context, logger *slog.Logger, report *Report) {
	out := report.Outcome
	level := slog.LevelInfo
	if out.Exhausted > 0 || out.Canceled > 0 || !report.Initialized {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "batch summary",
		"total", out.Total,
		"succeeded", out.Succeeded,
		"exhausted", out.Exhausted,
		"canceled", out.Canceled,
		"initialized", report.Initialized,
		"duration_ms", report.Duration.Milliseconds())

	ev := events.NewEvent(report.BatchID, events.KindBatchCompleted)
	ev.Total = out.Total
	ev.Succeeded = out.Succeeded
	ev.Exhausted = out.Exhausted
	ev.Canceled = out.Canceled
	ev.Initialized = report.Initialized
	ev.Elapsed = report.Duration
	ev.Err = report.InitErr
	c.emit(ctx, ev)
}

func (c *Coordinator) emit(ctx context.Context, ev events.Event) {
	if err := c.emitter.EmitEvent(ctx, ev); err != nil {
		c.logger.Debug("event emit failed", "kind", ev.Kind, "batch_id", ev.BatchID, "error", err)
	}
}
