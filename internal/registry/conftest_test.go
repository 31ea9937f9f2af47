package registry

import (
	"context"

	"github.com/quarry-dev/quarry/internal/domain"
	"github.com/quarry-dev/quarry/internal/domain/search"
	"github.com/quarry-dev/quarry/internal/domain/search/filter"
)

// mockStore implements store.Store for tests.
type mockStore struct {
	pingFn                func(ctx context.Context) error
	createCollectionFn    func(ctx context.Context, col domain.Collection) error
	dropCollectionFn      func(ctx context.Context, name string) error
	collectionDimensionFn func(ctx context.Context, name string) (int, error)
	listCollectionsFn     func(ctx context.Context) ([]domain.Collection, error)
	insertFn              func(ctx context.Context, collection string, docs []domain.Document) error
	deleteFn              func(ctx context.Context, collection string, ids []string) (int, error)
	searchFn              func(ctx context.Context, collection string, vector []float32, f filter.Expression, limit int) ([]search.Result, error)
	supportsLexical       bool
	searchLexicalFn       func(ctx context.Context, collection, query string, f filter.Expression, limit int) ([]search.Result, error)
	queryFn               func(ctx context.Context, collection string, f filter.Expression, offset, limit int) ([]search.Result, error)
	countFn               func(ctx context.Context, collection string, f filter.Expression) (int, error)
}

func (m *mockStore) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

func (m *mockStore) CreateCollection(ctx context.Context, col domain.Collection) error {
	if m.createCollectionFn != nil {
		return m.createCollectionFn(ctx, col)
	}
	return nil
}

func (m *mockStore) DropCollection(ctx context.Context, name string) error {
	if m.dropCollectionFn != nil {
		return m.dropCollectionFn(ctx, name)
	}
	return nil
}

func (m *mockStore) CollectionDimension(ctx context.Context, name string) (int, error) {
	if m.collectionDimensionFn != nil {
		return m.collectionDimensionFn(ctx, name)
	}
	return 0, domain.ErrCollectionNotFound
}

func (m *mockStore) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	if m.listCollectionsFn != nil {
		return m.listCollectionsFn(ctx)
	}
	return nil, nil
}

func (m *mockStore) Insert(ctx context.Context, collection string, docs []domain.Document) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, collection, docs)
	}
	return nil
}

func (m *mockStore) Delete(ctx context.Context, collection string, ids []string) (int, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, collection, ids)
	}
	return 0, nil
}

func (m *mockStore) Search(
	ctx context.Context, collection string, vector []float32, f filter.Expression, limit int,
) ([]search.Result, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, collection, vector, f, limit)
	}
	return nil, nil
}

func (m *mockStore) SupportsLexical() bool { return m.supportsLexical }

func (m *mockStore) SearchLexical(
	ctx context.Context, collection, query string, f filter.Expression, limit int,
) ([]search.Result, error) {
	if m.searchLexicalFn != nil {
		return m.searchLexicalFn(ctx, collection, query, f, limit)
	}
	return nil, nil
}

func (m *mockStore) Query(
	ctx context.Context, collection string, f filter.Expression, offset, limit int,
) ([]search.Result, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, collection, f, offset, limit)
	}
	return nil, nil
}

func (m *mockStore) Count(ctx context.Context, collection string, f filter.Expression) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, collection, f)
	}
	return 0, nil
}

func (m *mockStore) Close() error { return nil }
