package index

import (
	"context"

	"github.com/quarry-dev/quarry/internal/domain"
	"github.com/quarry-dev/quarry/internal/domain/search"
	"github.com/quarry-dev/quarry/internal/domain/search/filter"
)

// mockRegistrar implements Registrar for tests.
type mockRegistrar struct {
	ensureFn func(ctx context.Context, name string, dimension int) error
	dropFn   func(ctx context.Context, name string) error
	listFn   func(ctx context.Context) ([]domain.Collection, error)
	insertFn func(ctx context.Context, collection string, docs []domain.Document) error
	deleteFn func(ctx context.Context, collection string, ids []string) (int, error)
	queryFn  func(ctx context.Context, collection string, f filter.Expression, offset, limit int) ([]search.Result, error)
	countFn  func(ctx context.Context, collection string, f filter.Expression) (int, error)
}

func (m *mockRegistrar) Ensure(ctx context.Context, name string, dimension int) error {
	if m.ensureFn != nil {
		return m.ensureFn(ctx, name, dimension)
	}
	return nil
}

func (m *mockRegistrar) Drop(ctx context.Context, name string) error {
	if m.dropFn != nil {
		return m.dropFn(ctx, name)
	}
	return nil
}

func (m *mockRegistrar) List(ctx context.Context) ([]domain.Collection, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockRegistrar) Insert(ctx context.Context, collection string, docs []domain.Document) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, collection, docs)
	}
	return nil
}

func (m *mockRegistrar) Delete(ctx context.Context, collection string, ids []string) (int, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, collection, ids)
	}
	return 0, nil
}

func (m *mockRegistrar) Query(
	ctx context.Context, collection string, f filter.Expression, offset, limit int,
) ([]search.Result, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, collection, f, offset, limit)
	}
	return nil, nil
}

func (m *mockRegistrar) Count(ctx context.Context, collection string, f filter.Expression) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, collection, f)
	}
	return 0, nil
}

// mockEmbedder implements Embedder for tests. Each vector is filled with
// a constant so tests can tell batches apart.
type mockEmbedder struct {
	dim          int
	batches      [][]string
	embedBatchFn func(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batches = append(m.batches, texts)
	if m.embedBatchFn != nil {
		return m.embedBatchFn(ctx, texts)
	}
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = make([]float32, m.dim)
	}
	return domain.BatchEmbeddingResult{Vectors: vectors, TotalTokens: len(texts) * 5}, nil
}

func (m *mockEmbedder) Dimension() int { return m.dim }

func (m *mockEmbedder) DetectDimension(context.Context) (int, error) { return m.dim, nil }
