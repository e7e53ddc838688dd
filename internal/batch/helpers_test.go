package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/batchload/internal/events"
)

var errBoom = errors.New("boom")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// fastPolicy keeps test batches in the millisecond range.
func fastPolicy() Policy {
	return Policy{
		MaxConcurrency: 3,
		AttemptTimeout: 200 * time.Millisecond,
		MaxRetries:     3,
		InitialBackoff: 5 * time.Millisecond,
	}
}

func itemIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("file-%d", i)
	}
	return ids
}

func staticLoader(ids ...string) ConfigLoader {
	return ConfigLoaderFunc(func(ctx context.Context) ([]string, error) {
		return ids, nil
	})
}

// mockFetcher counts calls per item and tracks how many fetches overlap.
type mockFetcher struct {
	// FetchFn decides the outcome of the n-th (1-based) call for an item
	FetchFn func(ctx context.Context, itemID string, call int) error

	mu        sync.Mutex
	calls     map[string]int
	starts    map[string][]time.Time
	active    atomic.Int64
	maxActive atomic.Int64
	total     atomic.Int64
}

func newMockFetcher(fn func(ctx context.Context, itemID string, call int) error) *mockFetcher {
	return &mockFetcher{
		FetchFn: fn,
		calls:   make(map[string]int),
		starts:  make(map[string][]time.Time),
	}
}

func (f *mockFetcher) Fetch(ctx context.Context, itemID string) error {
	f.mu.Lock()
	f.calls[itemID]++
	call := f.calls[itemID]
	f.starts[itemID] = append(f.starts[itemID], time.Now())
	f.mu.Unlock()

	f.total.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	if f.FetchFn == nil {
		return nil
	}
	return f.FetchFn(ctx, itemID, call)
}

func (f *mockFetcher) Calls(itemID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[itemID]
}

func (f *mockFetcher) Starts(itemID string) []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.starts[itemID]...)
}

// mockInitializer counts Init calls.
type mockInitializer struct {
	InitFn func(ctx context.Context) error
	calls  atomic.Int64
}

func (i *mockInitializer) Init(ctx context.Context) error {
	i.calls.Add(1)
	if i.InitFn == nil {
		return nil
	}
	return i.InitFn(ctx)
}

func (i *mockInitializer) Calls() int {
	return int(i.calls.Load())
}

// sleepCtx sleeps for d unless ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newTestExecutor(gate *Gate, fetcher Fetcher, policy Policy, rec *events.Recorder) *Executor {
	return NewExecutor(gate, fetcher, policy, uuid.New(), discardLogger(), recordingEmitter(rec))
}

// recordingEmitter returns an emitter feeding rec, or a no-op emitter when rec is nil.
func recordingEmitter(rec *events.Recorder) events.EventEmitter {
	if rec == nil {
		return events.NopEmitter{}
	}
	emitter := events.NewInMemoryEventEmitter(discardLogger())
	emitter.RegisterHandler(rec)
	return emitter
}
