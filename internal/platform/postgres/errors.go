package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes
const (
	// undefinedTableCode is returned when the work_items table has not been migrated
	undefinedTableCode = "42P01"

	// undefinedColumnCode is returned when a custom query names a missing column
	undefinedColumnCode = "42703"

	// invalidPasswordCode is returned on authentication failure
	invalidPasswordCode = "28P01"
)

// Errors returned by MapError.
var (
	ErrUndefinedTable = errors.New("table does not exist")
	ErrInvalidQuery   = errors.New("invalid query")
	ErrAuthentication = errors.New("database authentication failed")
	ErrTimeout        = errors.New("database operation timed out")
)

// MapError maps a database error to one of the package errors.
// It wraps the original error to preserve context and provide better debugging information.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	// database/sql returns the bare context error when the query context ends.
	if pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case undefinedTableCode:
			return fmt.Errorf("%w (run migrations): %v", ErrUndefinedTable, err)
		case undefinedColumnCode:
			return fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		case invalidPasswordCode:
			return fmt.Errorf("%w: %v", ErrAuthentication, err)
		}
	}

	// Return the original error for errors that don't have specific mappings
	return err
}
