package batch

import "context"

// ConfigLoader produces the ordered list of work item identifiers for a batch.
// A returned error aborts the batch before any fetch starts.
type ConfigLoader interface {
	Load(ctx context.Context) ([]string, error)
}

// Fetcher performs the fetch of a single item. Implementations must be safe
// to call concurrently and safe to retry. The context carries the attempt
// deadline; implementations that ignore it are abandoned when it expires.
type Fetcher interface {
	Fetch(ctx context.Context, itemID string) error
}

// Initializer runs once after every item of the batch has settled.
type Initializer interface {
	Init(ctx context.Context) error
}

// ConfigLoaderFunc adapts a function to the ConfigLoader interface.
type ConfigLoaderFunc func(ctx context.Context) ([]string, error)

// Load calls f(ctx).
func (f ConfigLoaderFunc) Load(ctx context.Context) ([]string, error) {
	return f(ctx)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, itemID string) error

// Fetch calls f(ctx, itemID).
func (f FetcherFunc) Fetch(ctx context.Context, itemID string) error {
	return f(ctx, itemID)
}

// InitializerFunc adapts a function to the Initializer interface.
type InitializerFunc func(ctx context.Context) error

// Init calls f(ctx).
func (f InitializerFunc) Init(ctx context.Context) error {
	return f(ctx)
}
