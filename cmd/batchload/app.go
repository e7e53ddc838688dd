package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/phrazzld/batchload/internal/batch"
	"github.com/phrazzld/batchload/internal/bootstrap"
	"github.com/phrazzld/batchload/internal/config"
	"github.com/phrazzld/batchload/internal/events"
	"github.com/phrazzld/batchload/internal/fetch"
	"github.com/phrazzld/batchload/internal/loader"
	"github.com/phrazzld/batchload/internal/platform/postgres"
	"github.com/phrazzld/batchload/internal/redact"
	"github.com/phrazzld/batchload/internal/telemetry"
)

// shutdownTimeout bounds the final metrics flush.
const shutdownTimeout = 5 * time.Second

// runBatch wires the collaborators selected by cfg into a coordinator and
// runs one batch.
func runBatch(ctx context.Context, cfg *config.Config, log *slog.Logger) (*batch.Report, error) {
	mp, shutdown, err := telemetry.NewMeterProvider(ctx,
		telemetry.WithMetricsEnabled(cfg.Telemetry.MetricsEnabled),
		telemetry.WithMeterEndpoint(cfg.Telemetry.Endpoint),
		telemetry.WithMeterInsecure(cfg.Telemetry.Insecure),
		telemetry.WithMeterServiceVersion(version),
		telemetry.WithMeterLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Warn("failed to flush metrics", "error", err)
		}
	}()

	metrics, err := telemetry.NewBatchMetrics(mp)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch metrics: %w", err)
	}

	emitter := events.NewInMemoryEventEmitter(log)
	if metrics != nil {
		emitter.RegisterHandler(metrics)
	}

	itemLoader, closeLoader, err := newLoader(ctx, cfg.Loader, log)
	if err != nil {
		return nil, err
	}
	defer closeLoader()

	fetcher, err := newFetcher(cfg.Fetcher)
	if err != nil {
		return nil, err
	}

	initializer, err := newInitializer(cfg.Initializer)
	if err != nil {
		return nil, err
	}

	coordinator, err := batch.NewCoordinator(
		itemLoader, fetcher, initializer,
		cfg.BatchPolicy(), log,
		batch.WithEventEmitter(emitter),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create coordinator: %w", err)
	}

	return coordinator.Run(ctx)
}

// newLoader builds the configured item source. The returned func releases
// any resources the loader holds.
func newLoader(ctx context.Context, cfg config.LoaderConfig, log *slog.Logger) (batch.ConfigLoader, func(), error) {
	noop := func() {}

	switch cfg.Type {
	case config.TypeStatic:
		return loader.NewStatic(cfg.Items), noop, nil
	case config.TypeFile:
		return loader.NewFile(cfg.Path), noop, nil
	case config.TypePostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: failed to connect to %s: %s",
				batch.ErrConfigLoad, redact.URL(cfg.DatabaseURL), redact.Error(err))
		}
		closeDB := func() {
			if err := db.Close(); err != nil {
				log.Warn("failed to close database", "error", err)
			}
		}
		return loader.NewPostgres(db, cfg.Query, log), closeDB, nil
	case config.TypeSimulated:
		return loader.NewSimulated(loader.SimulatedConfig{
			Count:       cfg.Simulated.Count,
			Prefix:      cfg.Simulated.Prefix,
			Delay:       cfg.Simulated.Delay,
			FailureRate: cfg.Simulated.FailureRate,
		}, nil), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown loader type %q", cfg.Type)
	}
}

func newFetcher(cfg config.FetcherConfig) (batch.Fetcher, error) {
	switch cfg.Type {
	case config.TypeHTTP:
		return fetch.NewHTTP(cfg.BaseURL, nil)
	case config.TypeSimulated:
		return fetch.NewSimulated(fetch.SimulatedConfig{
			MinLatency:  cfg.Simulated.MinLatency,
			MaxLatency:  cfg.Simulated.MaxLatency,
			FailureRate: cfg.Simulated.FailureRate,
		}, fetch.NewSeededRand(cfg.Simulated.Seed)), nil
	default:
		return nil, fmt.Errorf("unknown fetcher type %q", cfg.Type)
	}
}

func newInitializer(cfg config.InitializerConfig) (batch.Initializer, error) {
	switch cfg.Type {
	case config.TypeHTTP:
		return bootstrap.NewHTTP(cfg.URL, nil)
	case config.TypeNoop:
		return bootstrap.Noop{}, nil
	case config.TypeSimulated:
		return bootstrap.NewSimulated(bootstrap.SimulatedConfig{
			Delay:       cfg.Simulated.Delay,
			FailureRate: cfg.Simulated.FailureRate,
		}, nil), nil
	default:
		return nil, fmt.Errorf("unknown initializer type %q", cfg.Type)
	}
}

// runMigrate applies a goose command to the postgres loader's database.
func runMigrate(ctx context.Context, cfg *config.Config, command string, log *slog.Logger) error {
	if cfg.Loader.DatabaseURL == "" {
		return errors.New("loader.database_url is required (set BATCHLOAD_LOADER_DATABASE_URL)")
	}

	log.Info("running migrations", "command", command, "url", redact.URL(cfg.Loader.DatabaseURL))

	db, err := postgres.Open(ctx, cfg.Loader.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %s", redact.URL(cfg.Loader.DatabaseURL), redact.Error(err))
	}
	defer func() { _ = db.Close() }()

	return postgres.Migrate(ctx, db, command, log)
}

type itemReport struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

type batchReport struct {
	BatchID     string       `json:"batch_id"`
	Total       int          `json:"total"`
	Succeeded   int          `json:"succeeded"`
	Exhausted   int          `json:"exhausted"`
	Canceled    int          `json:"canceled"`
	Initialized bool         `json:"initialized"`
	InitError   string       `json:"init_error,omitempty"`
	DurationMS  int64        `json:"duration_ms"`
	Items       []itemReport `json:"items"`
}

// writeReport prints report as indented JSON.
func writeReport(w io.Writer, report *batch.Report) error {
	out := batchReport{
		BatchID:     report.BatchID.String(),
		Total:       report.Outcome.Total,
		Succeeded:   report.Outcome.Succeeded,
		Exhausted:   report.Outcome.Exhausted,
		Canceled:    report.Outcome.Canceled,
		Initialized: report.Initialized,
		DurationMS:  report.Duration.Milliseconds(),
		Items:       make([]itemReport, 0, len(report.Items)),
	}
	if report.InitErr != nil {
		out.InitError = redact.Error(report.InitErr)
	}
	for _, item := range report.Items {
		ir := itemReport{ID: item.ItemID, Status: string(item.Status), Attempts: item.Attempts}
		if item.Err != nil {
			ir.Error = redact.Error(item.Err)
		}
		out.Items = append(out.Items, ir)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
