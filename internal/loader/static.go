package loader

import (
	"context"
	"slices"
)

// Static returns a fixed list of item IDs.
type Static struct {
	items []string
}

// NewStatic creates a loader that always returns items.
func NewStatic(items []string) *Static {
	return &Static{items: slices.Clone(items)}
}

// Load returns a copy of the configured items.
func (s *Static) Load(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(s.items), nil
}
