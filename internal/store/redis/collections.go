package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/quarry-dev/quarry/internal/domain"
	"github.com/quarry-dev/quarry/internal/store"
)

// Hash field names shared between the index schema and document storage.
const (
	fieldID       = "__id"
	fieldContent  = "__content"
	fieldMeta     = "__meta"
	fieldMetaJSON = "__meta_json"
	fieldVector   = "vector"
	fieldPath     = "__path"
	fieldStart    = "__start_line"
	fieldEnd      = "__end_line"

	metaTagSeparator = ";"
	vectorScoreField = "__vector_score"
)

// CreateCollection registers the collection in the catalog and creates its
// FT index. Re-creating with the same dimension is a no-op; a different
// dimension fails with a dimension mismatch.
func (s *Store) CreateCollection(ctx context.Context, col domain.Collection) error {
	existing, err := s.catalogDimension(ctx, col.Name())
	if err != nil {
		return store.Wrap(backendName, store.OpCreateCollection, err)
	}
	if existing > 0 {
		if existing != col.Dimension() {
			return store.Wrap(backendName, store.OpCreateCollection,
				domain.NewDimensionMismatch(col.Name(), existing, col.Dimension()))
		}
		return nil
	}

	fields := map[string]string{
		"dimension":  strconv.Itoa(col.Dimension()),
		"created_at": strconv.FormatInt(col.CreatedAt(), 10),
	}
	cmd := s.b().Hset().Key(catalogKey(col.Name())).FieldValue()
	for k, v := range fields {
		cmd = cmd.FieldValue(k, v)
	}
	if err := s.do(ctx, cmd.Build()).Error(); err != nil {
		return store.Wrap(backendName, store.OpCreateCollection, mapErr(err))
	}

	args := []string{
		indexName(col.Name()),
		"ON", "HASH",
		"PREFIX", "1", docKeyPrefix(col.Name()),
		"SCHEMA",
		fieldID, "TAG", "SORTABLE",
		fieldContent, "TEXT",
		fieldMeta, "TAG", "SEPARATOR", metaTagSeparator,
		fieldVector, "VECTOR", "FLAT", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(col.Dimension()),
		"DISTANCE_METRIC", "COSINE",
	}
	createCmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, createCmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return nil
		}
		return store.Wrap(backendName, store.OpCreateCollection, mapErr(err))
	}
	return nil
}

// DropCollection removes the index, its documents, and the catalog entry.
// Dropping a missing collection is a no-op.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(indexName(name), "DD").Build()
	if err := s.do(ctx, cmd).Error(); err != nil && !isUnknownIndex(err) {
		return store.Wrap(backendName, store.OpDropCollection, mapErr(err))
	}
	del := s.b().Del().Key(catalogKey(name)).Build()
	if err := s.do(ctx, del).Error(); err != nil {
		return store.Wrap(backendName, store.OpDropCollection, mapErr(err))
	}
	return nil
}

// CollectionDimension returns the declared dimension from the catalog.
func (s *Store) CollectionDimension(ctx context.Context, name string) (int, error) {
	dim, err := s.catalogDimension(ctx, name)
	if err != nil {
		return 0, store.Wrap(backendName, store.OpDimension, err)
	}
	if dim == 0 {
		return 0, store.Wrap(backendName, store.OpDimension,
			fmt.Errorf("collection %q: %w", name, domain.ErrCollectionNotFound))
	}
	return dim, nil
}

// ListCollections scans the catalog keyspace.
func (s *Store) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	var keys []string
	var cursor uint64
	for {
		cmd := s.b().Scan().Cursor(cursor).Match(catalogPrefix + "*").Count(100).Build()
		res, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, store.Wrap(backendName, store.OpList, mapErr(err))
		}
		keys = append(keys, res.Elements...)
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}

	cols := make([]domain.Collection, 0, len(keys))
	for _, key := range keys {
		m, err := s.do(ctx, s.b().Hgetall().Key(key).Build()).AsStrMap()
		if err != nil {
			return nil, store.Wrap(backendName, store.OpList, mapErr(err))
		}
		if len(m) == 0 {
			continue
		}
		dim, _ := strconv.Atoi(m["dimension"])
		createdAt, _ := strconv.ParseInt(m["created_at"], 10, 64)
		name := strings.TrimPrefix(key, catalogPrefix)
		cols = append(cols, domain.ReconstructCollection(name, dim, createdAt))
	}
	return cols, nil
}

// catalogDimension returns 0 (no error) when the collection is absent.
func (s *Store) catalogDimension(ctx context.Context, name string) (int, error) {
	cmd := s.b().Hget().Key(catalogKey(name)).Field("dimension").Build()
	res := s.do(ctx, cmd)
	if err := res.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return 0, nil
		}
		return 0, mapErr(err)
	}
	str, err := res.ToString()
	if err != nil {
		return 0, mapErr(err)
	}
	dim, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("catalog dimension %q: %w", str, domain.ErrResponseFormat)
	}
	return dim, nil
}
