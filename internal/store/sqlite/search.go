package sqlite

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/quarry-dev/quarry/internal/domain"
	"github.com/quarry-dev/quarry/internal/domain/search"
	"github.com/quarry-dev/quarry/internal/domain/search/filter"
	"github.com/quarry-dev/quarry/internal/store"
)

const docColumns = "id, content, metadata, path, start_line, end_line"

// Search scans candidate vectors and ranks by cosine similarity in Go.
// The pure-Go driver has no vector extension, so similarity is computed
// per candidate after the metadata filter narrows the set in SQL.
func (s *Store) Search(
	ctx context.Context, collection string, vector []float32, f filter.Expression, limit int,
) ([]search.Result, error) {
	if len(vector) == 0 {
		return nil, store.Wrap(backendName, store.OpSearch,
			fmt.Errorf("vector is required: %w", domain.ErrInvalidInput))
	}
	if limit <= 0 {
		return nil, store.Wrap(backendName, store.OpSearch,
			fmt.Errorf("limit must be positive: %w", domain.ErrInvalidInput))
	}
	if err := s.requireCollection(ctx, collection, store.OpSearch); err != nil {
		return nil, err
	}

	query := "SELECT " + docColumns + ", vector FROM documents WHERE collection = ?"
	args := []any{collection}
	query, args = applyFilter(query, args, f)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.Wrap(backendName, store.OpSearch, err)
	}
	defer func() { _ = rows.Close() }()

	var results []search.Result
	for rows.Next() {
		var id, content, metaRaw, path string
		var startLine, endLine int
		var blob []byte
		if err := rows.Scan(&id, &content, &metaRaw, &path, &startLine, &endLine, &blob); err != nil {
			return nil, store.Wrap(backendName, store.OpSearch, err)
		}
		candidate, err := store.DecodeVector(blob)
		if err != nil {
			return nil, store.Wrap(backendName, store.OpSearch, err)
		}
		score := cosineSimilarity(vector, candidate)
		prov := domain.Provenance{Path: path, StartLine: startLine, EndLine: endLine}
		results = append(results, search.NewResult(id, score, content, decodeMetadata(metaRaw), prov))
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap(backendName, store.OpSearch, err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score() != results[j].Score() {
			return results[i].Score() > results[j].Score()
		}
		return results[i].ID() < results[j].ID()
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// SupportsLexical returns true: FTS5 provides BM25 relevance.
func (s *Store) SupportsLexical() bool { return true }

// SearchLexical runs FTS5 BM25 search. BM25 scores come back negative with
// lower meaning better; they are normalized to [0,1] via 1/(1+|bm25|/50).
func (s *Store) SearchLexical(
	ctx context.Context, collection, query string, f filter.Expression, limit int,
) ([]search.Result, error) {
	if limit <= 0 {
		return nil, store.Wrap(backendName, store.OpSearchLexical,
			fmt.Errorf("limit must be positive: %w", domain.ErrInvalidInput))
	}
	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" {
		return nil, store.Wrap(backendName, store.OpSearchLexical,
			fmt.Errorf("query is required: %w", domain.ErrInvalidInput))
	}
	if err := s.requireCollection(ctx, collection, store.OpSearchLexical); err != nil {
		return nil, err
	}

	sqlQuery := `
		SELECT d.id, d.content, d.metadata, d.path, d.start_line, d.end_line,
			bm25(documents_fts) AS score
		FROM documents_fts
		INNER JOIN documents d
			ON d.collection = documents_fts.collection AND d.id = documents_fts.doc_id
		WHERE documents_fts MATCH ? AND documents_fts.collection = ?`
	args := []any{sanitized, collection}
	sqlQuery, args = applyFilterAliased(sqlQuery, args, f, "d")
	sqlQuery += " ORDER BY score LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, store.Wrap(backendName, store.OpSearchLexical, err)
	}
	defer func() { _ = rows.Close() }()

	var results []search.Result
	for rows.Next() {
		var id, content, metaRaw, path string
		var startLine, endLine int
		var bm25 float64
		if err := rows.Scan(&id, &content, &metaRaw, &path, &startLine, &endLine, &bm25); err != nil {
			return nil, store.Wrap(backendName, store.OpSearchLexical, err)
		}
		score := 1.0 / (1.0 + math.Abs(bm25)/50.0)
		prov := domain.Provenance{Path: path, StartLine: startLine, EndLine: endLine}
		results = append(results, search.NewResult(id, score, content, decodeMetadata(metaRaw), prov))
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap(backendName, store.OpSearchLexical, err)
	}
	return results, nil
}

// Query lists documents matching the filter, paginated and ordered by id.
func (s *Store) Query(
	ctx context.Context, collection string, f filter.Expression, offset, limit int,
) ([]search.Result, error) {
	if err := s.requireCollection(ctx, collection, store.OpQuery); err != nil {
		return nil, err
	}

	query := "SELECT " + docColumns + " FROM documents WHERE collection = ?"
	args := []any{collection}
	query, args = applyFilter(query, args, f)
	query += " ORDER BY id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.Wrap(backendName, store.OpQuery, err)
	}
	defer func() { _ = rows.Close() }()

	var results []search.Result
	for rows.Next() {
		var id, content, metaRaw, path string
		var startLine, endLine int
		if err := rows.Scan(&id, &content, &metaRaw, &path, &startLine, &endLine); err != nil {
			return nil, store.Wrap(backendName, store.OpQuery, err)
		}
		prov := domain.Provenance{Path: path, StartLine: startLine, EndLine: endLine}
		results = append(results, search.NewResult(id, 0, content, decodeMetadata(metaRaw), prov))
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap(backendName, store.OpQuery, err)
	}
	return results, nil
}

// Count returns the number of documents matching the filter.
func (s *Store) Count(ctx context.Context, collection string, f filter.Expression) (int, error) {
	if err := s.requireCollection(ctx, collection, store.OpCount); err != nil {
		return 0, err
	}

	query := "SELECT COUNT(*) FROM documents WHERE collection = ?"
	args := []any{collection}
	query, args = applyFilter(query, args, f)

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, store.Wrap(backendName, store.OpCount, err)
	}
	return count, nil
}

func (s *Store) requireCollection(ctx context.Context, collection, op string) error {
	_, err := s.CollectionDimension(ctx, collection)
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrCollectionNotFound) {
		return store.Wrap(backendName, op,
			fmt.Errorf("collection %q: %w", collection, domain.ErrCollectionNotFound))
	}
	return err
}

// applyFilter appends json_extract equality predicates on the metadata
// column. Booleans compare against json's 1/0 representation.
func applyFilter(query string, args []any, f filter.Expression) (string, []any) {
	return applyFilterAliased(query, args, f, "")
}

func applyFilterAliased(query string, args []any, f filter.Expression, alias string) (string, []any) {
	if f.IsEmpty() {
		return query, args
	}
	col := "metadata"
	if alias != "" {
		col = alias + ".metadata"
	}
	for _, cond := range f.Conditions() {
		query += fmt.Sprintf(" AND json_extract(%s, ?) = ?", col)
		args = append(args, "$."+cond.Field(), bindValue(cond.Value()))
	}
	return query, args
}

func bindValue(v domain.Value) any {
	switch v.Kind() {
	case domain.KindNumber:
		return v.Num()
	case domain.KindBool:
		// json_extract surfaces JSON booleans as 1/0.
		if v.B() {
			return 1
		}
		return 0
	default:
		return v.Str()
	}
}

// cosineSimilarity computes cosine similarity between two vectors,
// returning 0 for mismatched lengths or zero vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(0, math.Min(1, sim))
}

// sanitizeFTSQuery turns free text into a safe FTS5 keyword query: each
// token is double-quoted (neutralizing operators and column syntax) and
// tokens are joined with OR for recall.
func sanitizeFTSQuery(query string) string {
	tokens := strings.FieldsFunc(query, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_')
	})
	if len(tokens) == 0 {
		return ""
	}
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = `"` + t + `"`
	}
	return strings.Join(quoted, " OR ")
}
