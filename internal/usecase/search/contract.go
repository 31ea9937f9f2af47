package search

import (
	"context"

	"github.com/quarry-dev/quarry/internal/domain"
	domsearch "github.com/quarry-dev/quarry/internal/domain/search"
	"github.com/quarry-dev/quarry/internal/domain/search/filter"
)

// Retriever is the read contract this service consumes from the registry.
type Retriever interface {
	Exists(ctx context.Context, name string) (bool, error)
	Search(ctx context.Context, collection string, vector []float32, f filter.Expression, limit int) ([]domsearch.Result, error)
	SupportsLexical() bool
	SearchLexical(ctx context.Context, collection, query string, f filter.Expression, limit int) ([]domsearch.Result, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	domain.Embedder
}
