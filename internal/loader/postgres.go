package loader

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/batchload/internal/platform/postgres"
)

// ItemLister is the store operation used by Postgres.
type ItemLister interface {
	ListItemIDs(ctx context.Context) ([]string, error)
}

// Postgres loads item IDs from a database query.
type Postgres struct {
	store  ItemLister
	logger *slog.Logger
}

// NewPostgres creates a loader reading from db with query. An empty query
// selects every row of work_items in position order.
func NewPostgres(db postgres.DBTX, query string, logger *slog.Logger) *Postgres {
	return NewPostgresFromStore(postgres.NewItemStore(db, query), logger)
}

// NewPostgresFromStore creates a loader around an existing store.
func NewPostgresFromStore(store ItemLister, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{store: store, logger: logger.With("component", "postgres_loader")}
}

// Load runs the query.
func (p *Postgres) Load(ctx context.Context) ([]string, error) {
	ids, err := p.store.ListItemIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load items from database: %w", err)
	}
	p.logger.DebugContext(ctx, "items queried", "count", len(ids))
	return ids, nil
}
