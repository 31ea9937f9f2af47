package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/quarry-dev/quarry/internal/domain"
	"github.com/quarry-dev/quarry/internal/domain/search"
	"github.com/quarry-dev/quarry/internal/domain/search/filter"
	"github.com/quarry-dev/quarry/internal/store"
)

var returnFields = []string{
	fieldID, fieldContent, fieldMetaJSON, fieldPath, fieldStart, fieldEnd, vectorScoreField,
}

// Search runs a KNN vector similarity search via FT.SEARCH.
// Cosine distance is converted to a [0,1] similarity score.
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

	cmd := s.b().Arbitrary("FT.SEARCH").Args(knnSearchArgs(collection, f, vector, limit)...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isUnknownIndex(err) {
			return nil, store.Wrap(backendName, store.OpSearch,
				fmt.Errorf("collection %q: %w", collection, domain.ErrCollectionNotFound))
		}
		return nil, store.Wrap(backendName, store.OpSearch, mapErr(err))
	}

	results, err := parseKNNResult(raw)
	if err != nil {
		return nil, store.Wrap(backendName, store.OpSearch, err)
	}
	return results, nil
}

// knnSearchArgs builds the FT.SEARCH argument list for a KNN query. The
// explicit LIMIT window must match the KNN k: without it the server applies
// its default row window (10) and silently drops hits past it.
func knnSearchArgs(collection string, f filter.Expression, vector []float32, limit int) []string {
	knnPart := fmt.Sprintf("[KNN %d @%s $BLOB]", limit, fieldVector)
	queryStr := "*=>" + knnPart
	if fs := buildFilter(f); fs != "" {
		queryStr = "(" + fs + ")=>" + knnPart
	}

	args := []string{indexName(collection), queryStr}
	args = append(args, "RETURN", strconv.Itoa(len(returnFields)))
	args = append(args, returnFields...)
	args = append(args,
		"LIMIT", "0", strconv.Itoa(limit),
		"PARAMS", "2", "BLOB", string(store.EncodeVector(vector)),
		"DIALECT", "2",
	)
	return args
}

// SupportsLexical returns true: Redis 8+ supports TEXT fields and BM25 scoring.
func (s *Store) SupportsLexical() bool { return true }

// SearchLexical runs a BM25 text search via FT.SEARCH. Raw BM25 relevance is
// squashed into [0,1] via s/(s+1) so both legs feed fusion on the same scale.
func (s *Store) SearchLexical(
	ctx context.Context, collection, query string, f filter.Expression, limit int,
) ([]search.Result, error) {
	if query == "" {
		return nil, store.Wrap(backendName, store.OpSearchLexical,
			fmt.Errorf("query is required: %w", domain.ErrInvalidInput))
	}
	if limit <= 0 {
		return nil, store.Wrap(backendName, store.OpSearchLexical,
			fmt.Errorf("limit must be positive: %w", domain.ErrInvalidInput))
	}

	textPart := fmt.Sprintf("@%s:(%s)", fieldContent, escapeQuery(query))
	queryStr := textPart
	if fs := buildFilter(f); fs != "" {
		queryStr = fs + " " + textPart
	}

	args := []string{indexName(collection), queryStr}
	args = append(args, "RETURN", strconv.Itoa(len(returnFields)))
	args = append(args, returnFields...)
	args = append(args,
		"WITHSCORES",
		"LIMIT", "0", strconv.Itoa(limit),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isUnknownIndex(err) {
			return nil, store.Wrap(backendName, store.OpSearchLexical,
				fmt.Errorf("collection %q: %w", collection, domain.ErrCollectionNotFound))
		}
		return nil, store.Wrap(backendName, store.OpSearchLexical, mapErr(err))
	}

	results, err := parseBM25Result(raw)
	if err != nil {
		return nil, store.Wrap(backendName, store.OpSearchLexical, err)
	}
	return results, nil
}

// Query lists documents matching the filter, paginated and ordered by id.
func (s *Store) Query(
	ctx context.Context, collection string, f filter.Expression, offset, limit int,
) ([]search.Result, error) {
	queryStr := "*"
	if fs := buildFilter(f); fs != "" {
		queryStr = fs
	}

	args := []string{indexName(collection), queryStr}
	args = append(args, "RETURN", strconv.Itoa(len(returnFields)))
	args = append(args, returnFields...)
	args = append(args,
		"SORTBY", fieldID, "ASC",
		"LIMIT", strconv.Itoa(offset), strconv.Itoa(limit),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isUnknownIndex(err) {
			return nil, store.Wrap(backendName, store.OpQuery,
				fmt.Errorf("collection %q: %w", collection, domain.ErrCollectionNotFound))
		}
		return nil, store.Wrap(backendName, store.OpQuery, mapErr(err))
	}

	results, err := parseListResult(raw)
	if err != nil {
		return nil, store.Wrap(backendName, store.OpQuery, err)
	}
	return results, nil
}

// Count returns the number of documents matching the filter via LIMIT 0 0.
func (s *Store) Count(ctx context.Context, collection string, f filter.Expression) (int, error) {
	queryStr := "*"
	if fs := buildFilter(f); fs != "" {
		queryStr = fs
	}

	cmd := s.b().Arbitrary("FT.SEARCH").
		Args(indexName(collection), queryStr, "LIMIT", "0", "0", "DIALECT", "2").Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isUnknownIndex(err) {
			return 0, store.Wrap(backendName, store.OpCount,
				fmt.Errorf("collection %q: %w", collection, domain.ErrCollectionNotFound))
		}
		return 0, store.Wrap(backendName, store.OpCount, mapErr(err))
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, store.Wrap(backendName, store.OpCount,
			fmt.Errorf("parse count: %w", domain.ErrResponseFormat))
	}
	return int(total), nil
}

// --- Result parsing ---

func parseKNNResult(raw []rueidis.RedisMessage) ([]search.Result, error) {
	entries, err := parseEntries(raw, false)
	if err != nil {
		return nil, err
	}

	results := make([]search.Result, 0, len(entries))
	for _, e := range entries {
		score := 0.0
		if scoreStr, ok := e.fields[vectorScoreField]; ok {
			if d, err := strconv.ParseFloat(scoreStr, 64); err == nil {
				score = max(0, 1.0-d) // cosine distance -> similarity, clamped to [0,1]
			}
		}
		results = append(results, resultFromEntry(e, score))
	}

	// KNN hits arrive unordered without SORTBY; order by similarity here.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score() != results[j].Score() {
			return results[i].Score() > results[j].Score()
		}
		return results[i].ID() < results[j].ID()
	})
	return results, nil
}

func parseBM25Result(raw []rueidis.RedisMessage) ([]search.Result, error) {
	entries, err := parseEntries(raw, true)
	if err != nil {
		return nil, err
	}

	results := make([]search.Result, 0, len(entries))
	for _, e := range entries {
		results = append(results, resultFromEntry(e, e.score/(e.score+1)))
	}
	return results, nil
}

func parseListResult(raw []rueidis.RedisMessage) ([]search.Result, error) {
	entries, err := parseEntries(raw, false)
	if err != nil {
		return nil, err
	}

	results := make([]search.Result, 0, len(entries))
	for _, e := range entries {
		results = append(results, resultFromEntry(e, 0))
	}
	return results, nil
}

type searchEntry struct {
	id     string
	score  float64
	fields map[string]string
}

// parseEntries walks the RESP2 array reply: [total, key1, (score1,) fields1, ...].
// WITHSCORES inserts a score element between key and fields (3-stride).
func parseEntries(raw []rueidis.RedisMessage, withScores bool) ([]searchEntry, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", domain.ErrResponseFormat)
	}
	if total == 0 {
		return nil, nil
	}

	stride := 2
	if withScores {
		stride = 3
	}

	entries := make([]searchEntry, 0, total)
	for i := 1; i+stride-1 < len(raw); i += stride {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		var score float64
		fieldsIdx := i + 1
		if withScores {
			scoreStr, err := raw[i+1].ToString()
			if err != nil {
				continue
			}
			score, err = strconv.ParseFloat(scoreStr, 64)
			if err != nil {
				continue
			}
			fieldsIdx = i + 2
		}

		fieldMsgs, err := raw[fieldsIdx].ToArray()
		if err != nil {
			continue
		}

		fields := parseFieldPairs(fieldMsgs)
		id := fields[fieldID]
		if id == "" {
			// Fall back to stripping the key prefix when __id is not returned.
			// Document ids may contain ":", collection names cannot, so cut at
			// the first ":" after the doc prefix.
			rest := strings.TrimPrefix(key, docPrefix)
			if _, after, ok := strings.Cut(rest, ":"); ok {
				id = after
			} else {
				id = rest
			}
		}

		entries = append(entries, searchEntry{id: id, score: score, fields: fields})
	}
	return entries, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

func resultFromEntry(e searchEntry, score float64) search.Result {
	content, meta, prov := parseDoc(e.fields)
	return search.NewResult(e.id, score, content, meta, prov)
}
