// Package postgres implements the store contract on PostgreSQL with the
// pgvector extension. Each collection maps to its own table because the
// vector column type fixes the dimension. Dense-only: no lexical search.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/quarry-dev/quarry/internal/domain"
	"github.com/quarry-dev/quarry/internal/store"
)

// Compile-time check: Store implements store.Store.
var _ store.Store = (*Store)(nil)

const backendName = "postgres"

const catalogTable = "quarry_collections"

// Store implements store.Store on PostgreSQL via pgx's database/sql driver.
type Store struct {
	db *sql.DB
}

// NewStore connects, enables pgvector, and ensures the catalog table.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required: %w", domain.ErrInvalidInput)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open postgres: %v", domain.ErrConnection, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping postgres: %v", domain.ErrConnection, err)
	}

	migrations := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS ` + catalogTable + ` (
			name       TEXT PRIMARY KEY,
			dimension  INTEGER NOT NULL,
			created_at BIGINT NOT NULL
		)`,
	}
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: migrate: %v", domain.ErrConnection, err)
		}
	}

	return &Store{db: db}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return store.Wrap(backendName, store.OpPing, fmt.Errorf("%w: %v", domain.ErrConnection, err))
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// docTable returns the quoted per-collection table name. Collection names
// are validated upstream to [a-zA-Z0-9_-], safe inside a quoted identifier.
func docTable(collection string) string {
	return fmt.Sprintf("%q", "quarry_doc_"+collection)
}

// CreateCollection registers the collection and creates its table and HNSW
// index. Re-creating with the same dimension is a no-op.
func (s *Store) CreateCollection(ctx context.Context, col domain.Collection) error {
	var existing int
	err := s.db.QueryRowContext(ctx,
		"SELECT dimension FROM "+catalogTable+" WHERE name = $1", col.Name()).Scan(&existing)
	switch {
	case err == nil:
		if existing != col.Dimension() {
			return store.Wrap(backendName, store.OpCreateCollection,
				domain.NewDimensionMismatch(col.Name(), existing, col.Dimension()))
		}
		return nil
	case errors.Is(err, sql.ErrNoRows):
		// fall through to create
	default:
		return store.Wrap(backendName, store.OpCreateCollection, mapErr(err))
	}

	table := docTable(col.Name())
	migrations := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id         TEXT PRIMARY KEY,
			content    TEXT NOT NULL,
			embedding  vector(%d) NOT NULL,
			metadata   JSONB NOT NULL DEFAULT '{}',
			path       TEXT NOT NULL DEFAULT '',
			start_line INTEGER NOT NULL DEFAULT 0,
			end_line   INTEGER NOT NULL DEFAULT 0
		)`, table, col.Dimension()),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %s USING hnsw (embedding vector_cosine_ops)`,
			"quarry_doc_"+col.Name()+"_embedding_idx", table),
	}
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return store.Wrap(backendName, store.OpCreateCollection, mapErr(err))
		}
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO "+catalogTable+" (name, dimension, created_at) VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING",
		col.Name(), col.Dimension(), col.CreatedAt())
	if err != nil {
		return store.Wrap(backendName, store.OpCreateCollection, mapErr(err))
	}
	return nil
}

// DropCollection drops the table and catalog row. Missing collection is a no-op.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+docTable(name)); err != nil {
		return store.Wrap(backendName, store.OpDropCollection, mapErr(err))
	}
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM "+catalogTable+" WHERE name = $1", name); err != nil {
		return store.Wrap(backendName, store.OpDropCollection, mapErr(err))
	}
	return nil
}

// CollectionDimension returns the declared dimension from the catalog.
func (s *Store) CollectionDimension(ctx context.Context, name string) (int, error) {
	var dim int
	err := s.db.QueryRowContext(ctx,
		"SELECT dimension FROM "+catalogTable+" WHERE name = $1", name).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.Wrap(backendName, store.OpDimension,
			fmt.Errorf("collection %q: %w", name, domain.ErrCollectionNotFound))
	}
	if err != nil {
		return 0, store.Wrap(backendName, store.OpDimension, mapErr(err))
	}
	return dim, nil
}

// ListCollections returns all registered collections ordered by name.
func (s *Store) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, dimension, created_at FROM "+catalogTable+" ORDER BY name")
	if err != nil {
		return nil, store.Wrap(backendName, store.OpList, mapErr(err))
	}
	defer func() { _ = rows.Close() }()

	var cols []domain.Collection
	for rows.Next() {
		var name string
		var dim int
		var createdAt int64
		if err := rows.Scan(&name, &dim, &createdAt); err != nil {
			return nil, store.Wrap(backendName, store.OpList, mapErr(err))
		}
		cols = append(cols, domain.ReconstructCollection(name, dim, createdAt))
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap(backendName, store.OpList, mapErr(err))
	}
	return cols, nil
}

// mapErr classifies driver/network failures as connection errors.
func mapErr(err error) error {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrConnection, err)
}
