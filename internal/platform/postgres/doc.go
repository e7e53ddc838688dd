// Package postgres provides the PostgreSQL access used by the postgres item
// loader: connection setup through the pgx stdlib driver, embedded goose
// migrations for the work_items table, and the queries that read item IDs.
package postgres
