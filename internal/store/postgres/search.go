package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/quarry-dev/quarry/internal/domain"
	"github.com/quarry-dev/quarry/internal/domain/search"
	"github.com/quarry-dev/quarry/internal/domain/search/filter"
	"github.com/quarry-dev/quarry/internal/store"
)

// Search runs cosine KNN through pgvector's <=> operator. The distance is
// converted to a [0,1] similarity score.
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
	if _, err := s.CollectionDimension(ctx, collection); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, content, metadata, path, start_line, end_line,
			1 - (embedding <=> $1) AS score
		FROM %s`, docTable(collection))
	args := []any{formatEmbedding(vector)}

	where, filterArgs, err := buildFilter(f, len(args)+1)
	if err != nil {
		return nil, store.Wrap(backendName, store.OpSearch, err)
	}
	query += where
	args = append(args, filterArgs...)

	query += " ORDER BY embedding <=> $1 LIMIT $" + strconv.Itoa(len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.Wrap(backendName, store.OpSearch, mapErr(err))
	}
	defer func() { _ = rows.Close() }()

	var results []search.Result
	for rows.Next() {
		var id, content, path string
		var metaRaw []byte
		var startLine, endLine int
		var score float64
		if err := rows.Scan(&id, &content, &metaRaw, &path, &startLine, &endLine, &score); err != nil {
			return nil, store.Wrap(backendName, store.OpSearch, mapErr(err))
		}
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		prov := domain.Provenance{Path: path, StartLine: startLine, EndLine: endLine}
		results = append(results, search.NewResult(id, score, content, decodeMetadata(metaRaw), prov))
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap(backendName, store.OpSearch, mapErr(err))
	}
	return results, nil
}

// SupportsLexical returns false: this adapter is dense-only.
func (s *Store) SupportsLexical() bool { return false }

// SearchLexical always fails: keyword relevance is not offered here.
func (s *Store) SearchLexical(
	_ context.Context, _ string, _ string, _ filter.Expression, _ int,
) ([]search.Result, error) {
	return nil, store.Wrap(backendName, store.OpSearchLexical, domain.ErrLexicalSearchNotSupported)
}

// Query lists documents matching the filter, paginated and ordered by id.
func (s *Store) Query(
	ctx context.Context, collection string, f filter.Expression, offset, limit int,
) ([]search.Result, error) {
	if _, err := s.CollectionDimension(ctx, collection); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT id, content, metadata, path, start_line, end_line FROM %s", docTable(collection))
	var args []any

	where, filterArgs, err := buildFilter(f, 1)
	if err != nil {
		return nil, store.Wrap(backendName, store.OpQuery, err)
	}
	query += where
	args = append(args, filterArgs...)

	query += fmt.Sprintf(" ORDER BY id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.Wrap(backendName, store.OpQuery, mapErr(err))
	}
	defer func() { _ = rows.Close() }()

	var results []search.Result
	for rows.Next() {
		var id, content, path string
		var metaRaw []byte
		var startLine, endLine int
		if err := rows.Scan(&id, &content, &metaRaw, &path, &startLine, &endLine); err != nil {
			return nil, store.Wrap(backendName, store.OpQuery, mapErr(err))
		}
		prov := domain.Provenance{Path: path, StartLine: startLine, EndLine: endLine}
		results = append(results, search.NewResult(id, 0, content, decodeMetadata(metaRaw), prov))
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap(backendName, store.OpQuery, mapErr(err))
	}
	return results, nil
}

// Count returns the number of documents matching the filter.
func (s *Store) Count(ctx context.Context, collection string, f filter.Expression) (int, error) {
	if _, err := s.CollectionDimension(ctx, collection); err != nil {
		return 0, err
	}

	query := "SELECT COUNT(*) FROM " + docTable(collection)
	var args []any

	where, filterArgs, err := buildFilter(f, 1)
	if err != nil {
		return 0, store.Wrap(backendName, store.OpCount, err)
	}
	query += where
	args = append(args, filterArgs...)

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, store.Wrap(backendName, store.OpCount, mapErr(err))
	}
	return count, nil
}

// buildFilter renders the equality expression as a single JSONB containment
// predicate. startIdx is the first free placeholder number. None of the base
// queries carry a WHERE clause, so the returned clause always opens one.
func buildFilter(f filter.Expression, startIdx int) (string, []any, error) {
	if f.IsEmpty() {
		return "", nil, nil
	}
	obj := make(map[string]any, len(f.Conditions()))
	for _, cond := range f.Conditions() {
		obj[cond.Field()] = cond.Value().Any()
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return "", nil, fmt.Errorf("marshal filter: %w", err)
	}
	return " WHERE metadata @> $" + strconv.Itoa(startIdx), []any{data}, nil
}
