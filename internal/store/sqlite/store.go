// Package sqlite implements the store contract on embedded SQLite via the
// pure-Go modernc driver, with Go-side cosine similarity and FTS5 BM25.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/quarry-dev/quarry/internal/domain"
	"github.com/quarry-dev/quarry/internal/store"
)

// Compile-time check: Store implements store.Store.
var _ store.Store = (*Store)(nil)

const backendName = "sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	name       TEXT PRIMARY KEY,
	dimension  INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	content    TEXT NOT NULL,
	metadata   TEXT,
	path       TEXT NOT NULL DEFAULT '',
	start_line INTEGER NOT NULL DEFAULT 0,
	end_line   INTEGER NOT NULL DEFAULT 0,
	vector     BLOB NOT NULL,
	PRIMARY KEY (collection, id),
	FOREIGN KEY (collection) REFERENCES collections(name) ON DELETE CASCADE
);

CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
	content,
	collection UNINDEXED,
	doc_id UNINDEXED
);
`

// Store implements store.Store on a single SQLite database file
// (or ":memory:" for tests).
type Store struct {
	db *sql.DB
}

// NewStore opens the database, applies pragmas, and ensures the schema.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required: %w", domain.ErrInvalidInput)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", domain.ErrConnection, err)
	}

	// WAL for readers during writes; single writer connection.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: enable WAL: %v", domain.ErrConnection, err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: enable foreign keys: %v", domain.ErrConnection, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: apply schema: %v", domain.ErrConnection, err)
	}

	return &Store{db: db}, nil
}

// Ping checks the database file is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return store.Wrap(backendName, store.OpPing, fmt.Errorf("%w: %v", domain.ErrConnection, err))
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateCollection registers a collection. Re-creating with the same
// dimension is a no-op; a different dimension fails.
func (s *Store) CreateCollection(ctx context.Context, col domain.Collection) error {
	var existing int
	err := s.db.QueryRowContext(ctx,
		"SELECT dimension FROM collections WHERE name = ?", col.Name()).Scan(&existing)
	switch {
	case err == nil:
		if existing != col.Dimension() {
			return store.Wrap(backendName, store.OpCreateCollection,
				domain.NewDimensionMismatch(col.Name(), existing, col.Dimension()))
		}
		return nil
	case errors.Is(err, sql.ErrNoRows):
		// fall through to insert
	default:
		return store.Wrap(backendName, store.OpCreateCollection, err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO collections (name, dimension, created_at) VALUES (?, ?, ?)",
		col.Name(), col.Dimension(), col.CreatedAt())
	if err != nil {
		return store.Wrap(backendName, store.OpCreateCollection, err)
	}
	return nil
}

// DropCollection removes the collection, its documents, and FTS rows.
// Dropping a missing collection is a no-op.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Wrap(backendName, store.OpDropCollection, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM documents_fts WHERE collection = ?", name); err != nil {
		return store.Wrap(backendName, store.OpDropCollection, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE collection = ?", name); err != nil {
		return store.Wrap(backendName, store.OpDropCollection, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", name); err != nil {
		return store.Wrap(backendName, store.OpDropCollection, err)
	}
	if err := tx.Commit(); err != nil {
		return store.Wrap(backendName, store.OpDropCollection, err)
	}
	return nil
}

// CollectionDimension returns the declared dimension.
func (s *Store) CollectionDimension(ctx context.Context, name string) (int, error) {
	var dim int
	err := s.db.QueryRowContext(ctx,
		"SELECT dimension FROM collections WHERE name = ?", name).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.Wrap(backendName, store.OpDimension,
			fmt.Errorf("collection %q: %w", name, domain.ErrCollectionNotFound))
	}
	if err != nil {
		return 0, store.Wrap(backendName, store.OpDimension, err)
	}
	return dim, nil
}

// ListCollections returns all registered collections ordered by name.
func (s *Store) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, dimension, created_at FROM collections ORDER BY name")
	if err != nil {
		return nil, store.Wrap(backendName, store.OpList, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []domain.Collection
	for rows.Next() {
		var name string
		var dim int
		var createdAt int64
		if err := rows.Scan(&name, &dim, &createdAt); err != nil {
			return nil, store.Wrap(backendName, store.OpList, err)
		}
		cols = append(cols, domain.ReconstructCollection(name, dim, createdAt))
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap(backendName, store.OpList, err)
	}
	return cols, nil
}
