package postgres

import (
	"context"
	"fmt"
)

// DefaultItemQuery selects every work item in load order.
const DefaultItemQuery = "SELECT id FROM work_items ORDER BY position"

// ItemStore reads and writes the work_items table.
type ItemStore struct {
	db    DBTX
	query string
}

// NewItemStore creates an ItemStore. An empty query uses DefaultItemQuery;
// a custom query must return a single text column.
func NewItemStore(db DBTX, query string) *ItemStore {
	if query == "" {
		query = DefaultItemQuery
	}
	return &ItemStore{db: db, query: query}
}

// ListItemIDs returns the IDs produced by the store's query, in row order.
func (s *ItemStore) ListItemIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("failed to query work items: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan work item: %w", MapError(err))
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate work items: %w", MapError(err))
	}

	return ids, nil
}

// InsertItems appends ids after the current last position.
func (s *ItemStore) InsertItems(ctx context.Context, ids []string) error {
	var next int
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(position), -1) + 1 FROM work_items").Scan(&next)
	if err != nil {
		return fmt.Errorf("failed to read last position: %w", MapError(err))
	}

	for i, id := range ids {
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO work_items (id, position) VALUES ($1, $2)", id, next+i)
		if err != nil {
			return fmt.Errorf("failed to insert work item %q: %w", id, MapError(err))
		}
	}
	return nil
}
