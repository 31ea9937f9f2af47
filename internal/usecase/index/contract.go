package index

import (
	"context"

	"github.com/quarry-dev/quarry/internal/domain"
	"github.com/quarry-dev/quarry/internal/domain/search"
	"github.com/quarry-dev/quarry/internal/domain/search/filter"
)

// Registrar is the collection and document write contract this service
// consumes from the registry.
type Registrar interface {
	Ensure(ctx context.Context, name string, dimension int) error
	Drop(ctx context.Context, name string) error
	List(ctx context.Context) ([]domain.Collection, error)
	Insert(ctx context.Context, collection string, docs []domain.Document) error
	Delete(ctx context.Context, collection string, ids []string) (int, error)
	Query(ctx context.Context, collection string, f filter.Expression, offset, limit int) ([]search.Result, error)
	Count(ctx context.Context, collection string, f filter.Expression) (int, error)
}

// Embedder vectorizes fragment batches and reports the vector dimension.
type Embedder interface {
	domain.BatchEmbedder
	domain.DimensionReporter
}
