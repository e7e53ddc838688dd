package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/phrazzld/batchload/internal/events"
)

func newTestMetrics(t *testing.T) (*BatchMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	metrics, err := NewBatchMetrics(mp)
	require.NoError(t, err)
	require.NotNil(t, metrics)
	return metrics, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		if scope.Scope.Name != BatchMetricsMeterName {
			continue
		}
		for _, m := range scope.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumByAttr(t *testing.T, m metricdata.Metrics, key string) map[string]int64 {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum for %s", m.Name)

	out := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key(key))
		out[v.AsString()] += dp.Value
	}
	return out
}

func TestNewBatchMetrics(t *testing.T) {
	t.Parallel()

	t.Run("returns nil when provider is nil", func(t *testing.T) {
		t.Parallel()

		metrics, err := NewBatchMetrics(nil)
		require.NoError(t, err)
		assert.Nil(t, metrics)
	})

	t.Run("nil metrics ignore events", func(t *testing.T) {
		t.Parallel()

		var metrics *BatchMetrics
		assert.NoError(t, metrics.HandleEvent(context.Background(), events.Event{Kind: events.KindAttemptStarted}))
	})
}

func TestBatchMetrics_HandleEvent(t *testing.T) {
	t.Parallel()

	metrics, reader := newTestMetrics(t)
	batchID := uuid.New()
	ctx := context.Background()

	emit := func(kind events.Kind, mutate func(*events.Event)) {
		ev := events.NewEvent(batchID, kind)
		if mutate != nil {
			mutate(&ev)
		}
		require.NoError(t, metrics.HandleEvent(ctx, ev))
	}

	// file-0: timeout, retry, success
	emit(events.KindAttemptStarted, nil)
	emit(events.KindAttemptTimedOut, nil)
	emit(events.KindRetryScheduled, func(ev *events.Event) { ev.Delay = 500 * time.Millisecond })
	emit(events.KindAttemptStarted, nil)
	emit(events.KindAttemptSucceeded, nil)
	emit(events.KindItemSucceeded, nil)

	// file-1: failure, then exhausted
	emit(events.KindAttemptStarted, nil)
	emit(events.KindAttemptFailed, func(ev *events.Event) { ev.Err = errors.New("boom") })
	emit(events.KindItemExhausted, nil)

	// file-2: canceled mid attempt
	emit(events.KindAttemptStarted, nil)
	emit(events.KindAttemptCanceled, nil)
	emit(events.KindItemCanceled, nil)

	emit(events.KindBatchCompleted, func(ev *events.Event) {
		ev.Elapsed = 2 * time.Second
		ev.Initialized = true
	})

	got := collect(t, reader)

	assert.Equal(t, map[string]int64{
		"success":   1,
		"timed_out": 1,
		"failed":    1,
		"canceled":  1,
	}, sumByAttr(t, got[MetricAttemptsTotal], "outcome"))

	assert.Equal(t, map[string]int64{
		"succeeded":         1,
		"exhausted_retries": 1,
		"canceled":          1,
	}, sumByAttr(t, got[MetricItemsTotal], "status"))

	active, ok := got[MetricActiveAttempts].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, active.DataPoints, 1)
	assert.Equal(t, int64(0), active.DataPoints[0].Value, "every started attempt must be settled")

	backoff, ok := got[MetricBackoff].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, backoff.DataPoints, 1)
	assert.Equal(t, uint64(1), backoff.DataPoints[0].Count)
	assert.InDelta(t, 0.5, backoff.DataPoints[0].Sum, 1e-9)

	duration, ok := got[MetricBatchDuration].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, duration.DataPoints, 1)
	assert.InDelta(t, 2.0, duration.DataPoints[0].Sum, 1e-9)
	initialized, _ := duration.DataPoints[0].Attributes.Value("initialized")
	assert.True(t, initialized.AsBool())
}

func TestBatchMetrics_RecordsAfterCancel(t *testing.T) {
	t.Parallel()

	metrics, reader := newTestMetrics(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, metrics.HandleEvent(ctx, events.Event{Kind: events.KindItemCanceled}))

	got := collect(t, reader)
	assert.Equal(t, map[string]int64{"canceled": 1}, sumByAttr(t, got[MetricItemsTotal], "status"))
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	t.Parallel()

	mp, shutdown, err := NewMeterProvider(context.Background(), WithMetricsEnabled(false))
	require.NoError(t, err)
	require.NotNil(t, mp)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))

	metrics, err := NewBatchMetrics(mp)
	require.NoError(t, err)
	assert.NoError(t, metrics.HandleEvent(context.Background(), events.Event{Kind: events.KindAttemptStarted}))
}

func TestNewMeterProvider_Enabled(t *testing.T) {
	// Not parallel: sets the global meter provider
	mp, shutdown, err := NewMeterProvider(context.Background(),
		WithMetricsEnabled(true),
		WithMeterEndpoint("127.0.0.1:1"),
		WithMeterInsecure(true),
		WithMeterServiceVersion("test"),
	)
	require.NoError(t, err)
	require.NotNil(t, mp)

	_, isSDK := mp.(*sdkmetric.MeterProvider)
	assert.True(t, isSDK)

	// Nothing listens on the endpoint; only the call itself is checked
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = shutdown(ctx)
}
