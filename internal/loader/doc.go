// Package loader provides the batch.ConfigLoader implementations that produce
// the list of work item IDs: a fixed list, a YAML or JSON file, a PostgreSQL
// query, and a simulated source with configurable delay and failure rate.
package loader
