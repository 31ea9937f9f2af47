package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarry-dev/quarry/internal/domain"
	"github.com/quarry-dev/quarry/internal/domain/search/filter"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustCollection(t *testing.T, name string, dim int) domain.Collection {
	t.Helper()
	col, err := domain.NewCollection(name, dim)
	require.NoError(t, err)
	return col
}

func mustDoc(t *testing.T, id, content string, meta domain.Metadata, vector []float32) domain.Document {
	t.Helper()
	doc, err := domain.NewDocument(id, content, meta, domain.Provenance{Path: id}, vector)
	require.NoError(t, err)
	return doc
}

func mustFilter(t *testing.T, m map[string]any) filter.Expression {
	t.Helper()
	f, err := filter.FromMap(m)
	require.NoError(t, err)
	return f
}

func TestCreateCollection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateCollection(ctx, mustCollection(t, "repo", 3)))
	// Idempotent at the same dimension.
	require.NoError(t, s.CreateCollection(ctx, mustCollection(t, "repo", 3)))

	dim, err := s.CollectionDimension(ctx, "repo")
	require.NoError(t, err)
	assert.Equal(t, 3, dim)

	// A different dimension conflicts.
	err = s.CreateCollection(ctx, mustCollection(t, "repo", 4))
	require.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestCollectionDimension_Missing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CollectionDimension(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrCollectionNotFound)
}

func TestListCollections(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateCollection(ctx, mustCollection(t, "beta", 2)))
	require.NoError(t, s.CreateCollection(ctx, mustCollection(t, "alpha", 3)))

	cols, err := s.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "alpha", cols[0].Name())
	assert.Equal(t, "beta", cols[1].Name())
}

func TestInsert_UpsertRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, mustCollection(t, "repo", 2)))

	meta := domain.Metadata{"lang": domain.String("go"), "archived": domain.Bool(false)}
	require.NoError(t, s.Insert(ctx, "repo", []domain.Document{
		mustDoc(t, "a.go:1", "package main", meta, []float32{1, 0}),
	}))

	docs, err := s.Query(ctx, "repo", filter.Expression{}, 0, 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "package main", docs[0].Content())
	assert.True(t, docs[0].Metadata()["lang"].Equal(domain.String("go")))
	assert.Equal(t, "a.go:1", docs[0].Prov().Path)

	// Upsert replaces content in place.
	require.NoError(t, s.Insert(ctx, "repo", []domain.Document{
		mustDoc(t, "a.go:1", "package updated", meta, []float32{0, 1}),
	}))
	docs, err = s.Query(ctx, "repo", filter.Expression{}, 0, 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "package updated", docs[0].Content())
}

func TestInsert_DimensionMismatchAbortsBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, mustCollection(t, "repo", 2)))

	err := s.Insert(ctx, "repo", []domain.Document{
		mustDoc(t, "ok", "fits", nil, []float32{1, 0}),
		mustDoc(t, "bad", "too long", nil, []float32{1, 0, 0}),
	})
	require.ErrorIs(t, err, domain.ErrDimensionMismatch)

	count, err := s.Count(ctx, "repo", filter.Expression{})
	require.NoError(t, err)
	assert.Zero(t, count, "nothing may be written when any vector mismatches")
}

func TestInsert_MissingCollection(t *testing.T) {
	s := newTestStore(t)
	err := s.Insert(context.Background(), "nope", []domain.Document{
		mustDoc(t, "a", "text", nil, []float32{1}),
	})
	require.ErrorIs(t, err, domain.ErrCollectionNotFound)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, mustCollection(t, "repo", 1)))
	require.NoError(t, s.Insert(ctx, "repo", []domain.Document{
		mustDoc(t, "a", "one", nil, []float32{1}),
		mustDoc(t, "b", "two", nil, []float32{1}),
	}))

	// Only existing documents count.
	n, err := s.Delete(ctx, "repo", []string{"a", "missing"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := s.Count(ctx, "repo", filter.Expression{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSearch_RanksBySimilarity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, mustCollection(t, "repo", 2)))
	require.NoError(t, s.Insert(ctx, "repo", []domain.Document{
		mustDoc(t, "exact", "exact match", nil, []float32{1, 0}),
		mustDoc(t, "close", "close match", nil, []float32{0.9, 0.1}),
		mustDoc(t, "far", "unrelated", nil, []float32{0, 1}),
	}))

	results, err := s.Search(ctx, "repo", []float32{1, 0}, filter.Expression{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "exact", results[0].ID())
	assert.Equal(t, "close", results[1].ID())
	assert.Equal(t, "far", results[2].ID())
	assert.InDelta(t, 1.0, results[0].Score(), 1e-6)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score(), 0.0)
		assert.LessOrEqual(t, r.Score(), 1.0)
	}
}

func TestSearch_FilterNarrows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, mustCollection(t, "repo", 1)))
	require.NoError(t, s.Insert(ctx, "repo", []domain.Document{
		mustDoc(t, "go1", "go file", domain.Metadata{"lang": domain.String("go"), "archived": domain.Bool(false)}, []float32{1}),
		mustDoc(t, "go2", "archived go file", domain.Metadata{"lang": domain.String("go"), "archived": domain.Bool(true)}, []float32{1}),
		mustDoc(t, "py1", "python file", domain.Metadata{"lang": domain.String("py"), "archived": domain.Bool(false)}, []float32{1}),
	}))

	results, err := s.Search(ctx, "repo", []float32{1},
		mustFilter(t, map[string]any{"lang": "go", "archived": false}), 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "go1", results[0].ID())
}

func TestSearch_MissingCollection(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Search(context.Background(), "nope", []float32{1}, filter.Expression{}, 10)
	require.ErrorIs(t, err, domain.ErrCollectionNotFound)
}

func TestSearchLexical(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, mustCollection(t, "repo", 1)))
	require.NoError(t, s.Insert(ctx, "repo", []domain.Document{
		mustDoc(t, "handler", "func handleRequest parses the incoming request", nil, []float32{1}),
		mustDoc(t, "parser", "func parseConfig reads the yaml configuration", nil, []float32{1}),
		mustDoc(t, "other", "unrelated math helpers", nil, []float32{1}),
	}))

	results, err := s.SearchLexical(ctx, "repo", "parse the request", filter.Expression{}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Greater(t, r.Score(), 0.0)
		assert.LessOrEqual(t, r.Score(), 1.0)
		assert.NotEqual(t, "other", r.ID())
	}
}

func TestSearchLexical_OperatorsNeutralized(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, mustCollection(t, "repo", 1)))
	require.NoError(t, s.Insert(ctx, "repo", []domain.Document{
		mustDoc(t, "a", "content with words", nil, []float32{1}),
	}))

	// FTS5 syntax in the raw query must not produce a query error.
	_, err := s.SearchLexical(ctx, "repo", `content AND "words* NEAR(`, filter.Expression{}, 10)
	require.NoError(t, err)
}

func TestQuery_Pagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, mustCollection(t, "repo", 1)))
	require.NoError(t, s.Insert(ctx, "repo", []domain.Document{
		mustDoc(t, "a", "1", nil, []float32{1}),
		mustDoc(t, "b", "2", nil, []float32{1}),
		mustDoc(t, "c", "3", nil, []float32{1}),
	}))

	page, err := s.Query(ctx, "repo", filter.Expression{}, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].ID())

	rest, err := s.Query(ctx, "repo", filter.Expression{}, 2, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "c", rest[0].ID())
}

func TestCount_Filtered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, mustCollection(t, "repo", 1)))
	require.NoError(t, s.Insert(ctx, "repo", []domain.Document{
		mustDoc(t, "a", "1", domain.Metadata{"kind": domain.String("func")}, []float32{1}),
		mustDoc(t, "b", "2", domain.Metadata{"kind": domain.String("func")}, []float32{1}),
		mustDoc(t, "c", "3", domain.Metadata{"kind": domain.String("type")}, []float32{1}),
	}))

	count, err := s.Count(ctx, "repo", mustFilter(t, map[string]any{"kind": "func"}))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestDropCollection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, mustCollection(t, "repo", 1)))
	require.NoError(t, s.Insert(ctx, "repo", []domain.Document{
		mustDoc(t, "a", "text", nil, []float32{1}),
	}))

	require.NoError(t, s.DropCollection(ctx, "repo"))
	_, err := s.CollectionDimension(ctx, "repo")
	require.ErrorIs(t, err, domain.ErrCollectionNotFound)

	// Dropping a missing collection is a no-op.
	require.NoError(t, s.DropCollection(ctx, "repo"))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	// Opposite vectors clamp to 0 instead of going negative.
	assert.Zero(t, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}))
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Zero(t, cosineSimilarity([]float32{1}, []float32{1, 0}))
}

func TestSanitizeFTSQuery(t *testing.T) {
	assert.Equal(t, `"hello" OR "world"`, sanitizeFTSQuery("hello, world!"))
	assert.Equal(t, `"parse_config"`, sanitizeFTSQuery("parse_config"))
	assert.Equal(t, "", sanitizeFTSQuery("!!! ---"))
}
