// Package store defines the backend-neutral vector store contract.
// Adapters (redis, sqlite, postgres) implement it; the registry is the
// only consumer, so collection readiness checks live above this layer.
package store

import (
	"context"

	"github.com/quarry-dev/quarry/internal/domain"
	"github.com/quarry-dev/quarry/internal/domain/search"
	"github.com/quarry-dev/quarry/internal/domain/search/filter"
)

// Store is the full adapter facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	CollectionManager
	DocumentWriter
	DenseSearcher
	LexicalSearcher
	MetadataQuerier
	Close() error
}

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CollectionManager provides collection lifecycle operations.
// CreateCollection is idempotent when the dimension matches and returns a
// domain.DimensionMismatchError (wrapping domain.ErrDimensionMismatch) when
// it conflicts. DropCollection of a missing collection is a no-op.
type CollectionManager interface {
	CreateCollection(ctx context.Context, col domain.Collection) error
	DropCollection(ctx context.Context, name string) error
	CollectionDimension(ctx context.Context, name string) (int, error)
	ListCollections(ctx context.Context) ([]domain.Collection, error)
}

// DocumentWriter persists documents with upsert semantics.
// Insert must validate every vector against the collection dimension before
// writing anything; a mismatch aborts the whole batch.
type DocumentWriter interface {
	Insert(ctx context.Context, collection string, docs []domain.Document) error
	Delete(ctx context.Context, collection string, ids []string) (int, error)
}

// DenseSearcher runs KNN similarity search. Scores are normalized to [0,1]
// with 1 meaning identical direction, before any fusion happens.
type DenseSearcher interface {
	Search(ctx context.Context, collection string, vector []float32, f filter.Expression, limit int) ([]search.Result, error)
}

// LexicalSearcher runs keyword relevance search over document content.
// SupportsLexical reports the capability without a round trip; Search on an
// incapable backend fails with domain.ErrLexicalSearchNotSupported.
type LexicalSearcher interface {
	SupportsLexical() bool
	SearchLexical(ctx context.Context, collection, query string, f filter.Expression, limit int) ([]search.Result, error)
}

// MetadataQuerier provides filter-only listing and counting.
type MetadataQuerier interface {
	Query(ctx context.Context, collection string, f filter.Expression, offset, limit int) ([]search.Result, error)
	Count(ctx context.Context, collection string, f filter.Expression) (int, error)
}
