package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/phrazzld/batchload/internal/batch"
	"github.com/phrazzld/batchload/internal/events"
)

// BatchMetricsMeterName is the name used for the batch metrics meter
const BatchMetricsMeterName = "github.com/phrazzld/batchload/batch"

// Metric names
const (
	MetricAttemptsTotal  = "batchload_attempts_total"
	MetricItemsTotal     = "batchload_items_total"
	MetricBackoff        = "batchload_backoff_seconds"
	MetricBatchDuration  = "batchload_batch_duration_seconds"
	MetricActiveAttempts = "batchload_active_attempts"
)

// BatchMetrics records batch events as OpenTelemetry instruments. It is an
// events.EventHandler; register it with the coordinator's emitter.
type BatchMetrics struct {
	attempts      metric.Int64Counter
	items         metric.Int64Counter
	backoff       metric.Float64Histogram
	batchDuration metric.Float64Histogram
	active        metric.Int64UpDownCounter
}

// NewBatchMetrics creates the instruments on provider.
// If provider is nil, it returns nil (no-op metrics).
func NewBatchMetrics(provider metric.MeterProvider) (*BatchMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(BatchMetricsMeterName)

	attempts, err := meter.Int64Counter(
		MetricAttemptsTotal,
		metric.WithDescription("Number of completed fetch attempts by outcome"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	items, err := meter.Int64Counter(
		MetricItemsTotal,
		metric.WithDescription("Number of settled work items by final status"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}

	backoff, err := meter.Float64Histogram(
		MetricBackoff,
		metric.WithDescription("Backoff delay scheduled before a retry"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1, 2, 4, 8, 16),
	)
	if err != nil {
		return nil, err
	}

	batchDuration, err := meter.Float64Histogram(
		MetricBatchDuration,
		metric.WithDescription("Duration of a batch run in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600),
	)
	if err != nil {
		return nil, err
	}

	active, err := meter.Int64UpDownCounter(
		MetricActiveAttempts,
		metric.WithDescription("Number of fetch attempts currently holding a concurrency slot"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	return &BatchMetrics{
		attempts:      attempts,
		items:         items,
		backoff:       backoff,
		batchDuration: batchDuration,
		active:        active,
	}, nil
}

// HandleEvent implements events.EventHandler.
func (m *BatchMetrics) HandleEvent(ctx context.Context, ev events.Event) error {
	if m == nil {
		return nil
	}
	// Instruments must still record after the batch context is canceled
	ctx = context.WithoutCancel(ctx)

	switch ev.Kind {
	case events.KindAttemptStarted:
		m.active.Add(ctx, 1)
	case events.KindAttemptSucceeded:
		m.attemptDone(ctx, batch.OutcomeSuccess)
	case events.KindAttemptTimedOut:
		m.attemptDone(ctx, batch.OutcomeTimedOut)
	case events.KindAttemptFailed:
		m.attemptDone(ctx, batch.OutcomeFailed)
	case events.KindAttemptCanceled:
		m.attemptDone(ctx, batch.OutcomeCanceled)
	case events.KindRetryScheduled:
		m.backoff.Record(ctx, ev.Delay.Seconds())
	case events.KindItemSucceeded:
		m.itemDone(ctx, batch.StatusSucceeded)
	case events.KindItemExhausted:
		m.itemDone(ctx, batch.StatusExhaustedRetries)
	case events.KindItemCanceled:
		m.itemDone(ctx, batch.StatusCanceled)
	case events.KindBatchCompleted:
		m.batchDuration.Record(ctx, ev.Elapsed.Seconds(),
			metric.WithAttributes(attribute.Bool("initialized", ev.Initialized)))
	}
	return nil
}

func (m *BatchMetrics) attemptDone(ctx context.Context, outcome batch.AttemptOutcome) {
	m.active.Add(ctx, -1)
	m.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
}

func (m *BatchMetrics) itemDone(ctx context.Context, status batch.ItemStatus) {
	m.items.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))
}
