// Package registry tracks collection state above the store adapters: which
// collections exist, their dimensions, and concurrent-safe creation. All
// adapter calls go through it so readiness is checked exactly once per
// operation instead of per backend.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/quarry-dev/quarry/internal/domain"
	"github.com/quarry-dev/quarry/internal/domain/search"
	"github.com/quarry-dev/quarry/internal/domain/search/filter"
	"github.com/quarry-dev/quarry/internal/store"
)

// Registry mediates access to one store backend.
type Registry struct {
	store  store.Store
	logger *zap.Logger

	mu   sync.RWMutex
	dims map[string]int // ready collections and their dimensions

	sf singleflight.Group
}

// New creates a registry over the given store.
func New(st store.Store, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:  st,
		logger: logger,
		dims:   make(map[string]int),
	}
}

// Ensure makes the collection exist with the given dimension. Concurrent
// calls for the same collection collapse into one backend round-trip.
// An existing collection with a different dimension fails.
func (r *Registry) Ensure(ctx context.Context, name string, dimension int) error {
	col, err := domain.NewCollection(name, dimension)
	if err != nil {
		return err
	}

	r.mu.RLock()
	known, ok := r.dims[name]
	r.mu.RUnlock()
	if ok {
		if known != dimension {
			return domain.NewDimensionMismatch(name, known, dimension)
		}
		return nil
	}

	_, err, _ = r.sf.Do(name, func() (any, error) {
		if err := r.store.CreateCollection(ctx, col); err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.dims[name] = dimension
		r.mu.Unlock()
		r.logger.Info("collection ready",
			zap.String("collection", name),
			zap.Int("dimension", dimension))
		return nil, nil
	})
	if err != nil {
		return err
	}

	// A joined flight may have created the collection at another caller's
	// dimension; success only counts if the resulting dimension matches.
	r.mu.RLock()
	known, ok = r.dims[name]
	r.mu.RUnlock()
	if ok && known != dimension {
		return domain.NewDimensionMismatch(name, known, dimension)
	}
	return nil
}

// Drop removes the collection and forgets its cached state. Dropping a
// missing collection is a no-op.
func (r *Registry) Drop(ctx context.Context, name string) error {
	if err := r.store.DropCollection(ctx, name); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.dims, name)
	r.mu.Unlock()
	r.logger.Info("collection dropped", zap.String("collection", name))
	return nil
}

// Dimension returns the collection's dimension, consulting the backend on
// a cache miss so externally created collections are picked up.
func (r *Registry) Dimension(ctx context.Context, name string) (int, error) {
	r.mu.RLock()
	dim, ok := r.dims[name]
	r.mu.RUnlock()
	if ok {
		return dim, nil
	}

	dim, err := r.store.CollectionDimension(ctx, name)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	r.dims[name] = dim
	r.mu.Unlock()
	return dim, nil
}

// Exists reports whether the collection is present.
func (r *Registry) Exists(ctx context.Context, name string) (bool, error) {
	_, err := r.Dimension(ctx, name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, domain.ErrCollectionNotFound) {
		return false, nil
	}
	return false, err
}

// List returns all collections from the backend.
func (r *Registry) List(ctx context.Context) ([]domain.Collection, error) {
	return r.store.ListCollections(ctx)
}

// Insert validates the whole batch against the collection dimension and
// writes it. Documents and vectors must be paired upstream.
func (r *Registry) Insert(ctx context.Context, collection string, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}
	dim, err := r.Dimension(ctx, collection)
	if err != nil {
		return err
	}
	for i := range docs {
		if got := len(docs[i].Vector()); got != dim {
			return fmt.Errorf("document %q: %w",
				docs[i].ID(), domain.NewDimensionMismatch(collection, dim, got))
		}
	}
	return r.store.Insert(ctx, collection, docs)
}

// Delete removes documents by id, returning how many existed.
func (r *Registry) Delete(ctx context.Context, collection string, ids []string) (int, error) {
	if _, err := r.Dimension(ctx, collection); err != nil {
		return 0, err
	}
	return r.store.Delete(ctx, collection, ids)
}

// Search runs dense KNN retrieval.
func (r *Registry) Search(
	ctx context.Context, collection string, vector []float32, f filter.Expression, limit int,
) ([]search.Result, error) {
	dim, err := r.Dimension(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(vector) != dim {
		return nil, domain.NewDimensionMismatch(collection, dim, len(vector))
	}
	return r.store.Search(ctx, collection, vector, f, limit)
}

// SupportsLexical reports the backend's lexical capability.
func (r *Registry) SupportsLexical() bool {
	return r.store.SupportsLexical()
}

// SearchLexical runs keyword retrieval.
func (r *Registry) SearchLexical(
	ctx context.Context, collection, query string, f filter.Expression, limit int,
) ([]search.Result, error) {
	if _, err := r.Dimension(ctx, collection); err != nil {
		return nil, err
	}
	return r.store.SearchLexical(ctx, collection, query, f, limit)
}

// Query lists documents by metadata filter with pagination.
func (r *Registry) Query(
	ctx context.Context, collection string, f filter.Expression, offset, limit int,
) ([]search.Result, error) {
	if _, err := r.Dimension(ctx, collection); err != nil {
		return nil, err
	}
	return r.store.Query(ctx, collection, f, offset, limit)
}

// Count returns the number of documents matching the filter.
func (r *Registry) Count(ctx context.Context, collection string, f filter.Expression) (int, error) {
	if _, err := r.Dimension(ctx, collection); err != nil {
		return 0, err
	}
	return r.store.Count(ctx, collection, f)
}

// Ping checks backend connectivity.
func (r *Registry) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// Close shuts down the backend.
func (r *Registry) Close() error {
	return r.store.Close()
}
