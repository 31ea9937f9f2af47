package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quarry-dev/quarry/internal/domain"
	"github.com/quarry-dev/quarry/internal/store"
)

// Insert upserts documents in one transaction, keeping the FTS index in
// sync. Every vector is validated against the collection dimension before
// any write; a mismatch aborts the whole batch.
func (s *Store) Insert(ctx context.Context, collection string, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	dim, err := s.CollectionDimension(ctx, collection)
	if err != nil {
		return err
	}
	for i := range docs {
		if got := len(docs[i].Vector()); got != dim {
			return store.Wrap(backendName, store.OpInsert,
				domain.NewDimensionMismatch(collection, dim, got))
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Wrap(backendName, store.OpInsert, err)
	}
	defer func() { _ = tx.Rollback() }()

	upsert, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (collection, id, content, metadata, path, start_line, end_line, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			content = excluded.content,
			metadata = excluded.metadata,
			path = excluded.path,
			start_line = excluded.start_line,
			end_line = excluded.end_line,
			vector = excluded.vector`)
	if err != nil {
		return store.Wrap(backendName, store.OpInsert, err)
	}
	defer func() { _ = upsert.Close() }()

	ftsDelete, err := tx.PrepareContext(ctx,
		"DELETE FROM documents_fts WHERE collection = ? AND doc_id = ?")
	if err != nil {
		return store.Wrap(backendName, store.OpInsert, err)
	}
	defer func() { _ = ftsDelete.Close() }()

	ftsInsert, err := tx.PrepareContext(ctx,
		"INSERT INTO documents_fts (content, collection, doc_id) VALUES (?, ?, ?)")
	if err != nil {
		return store.Wrap(backendName, store.OpInsert, err)
	}
	defer func() { _ = ftsInsert.Close() }()

	for i := range docs {
		doc := &docs[i]
		metaJSON, err := encodeMetadata(doc.Metadata())
		if err != nil {
			return store.Wrap(backendName, store.OpInsert,
				fmt.Errorf("document %q: %w", doc.ID(), err))
		}
		prov := doc.Prov()
		if _, err := upsert.ExecContext(ctx,
			collection, doc.ID(), doc.Content(), metaJSON,
			prov.Path, prov.StartLine, prov.EndLine,
			store.EncodeVector(doc.Vector())); err != nil {
			return store.Wrap(backendName, store.OpInsert,
				fmt.Errorf("document %q: %w", doc.ID(), err))
		}
		if _, err := ftsDelete.ExecContext(ctx, collection, doc.ID()); err != nil {
			return store.Wrap(backendName, store.OpInsert, err)
		}
		if _, err := ftsInsert.ExecContext(ctx, doc.Content(), collection, doc.ID()); err != nil {
			return store.Wrap(backendName, store.OpInsert, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return store.Wrap(backendName, store.OpInsert, err)
	}
	return nil
}

// Delete removes documents by id, returning how many existed.
func (s *Store) Delete(ctx context.Context, collection string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, store.Wrap(backendName, store.OpDelete, err)
	}
	defer func() { _ = tx.Rollback() }()

	deleted := 0
	for _, id := range ids {
		res, err := tx.ExecContext(ctx,
			"DELETE FROM documents WHERE collection = ? AND id = ?", collection, id)
		if err != nil {
			return 0, store.Wrap(backendName, store.OpDelete, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, store.Wrap(backendName, store.OpDelete, err)
		}
		deleted += int(n)

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM documents_fts WHERE collection = ? AND doc_id = ?", collection, id); err != nil {
			return 0, store.Wrap(backendName, store.OpDelete, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, store.Wrap(backendName, store.OpDelete, err)
	}
	return deleted, nil
}

// encodeMetadata always yields valid JSON; json_extract errors on
// malformed input, so empty metadata is stored as "{}".
func encodeMetadata(meta domain.Metadata) (string, error) {
	if len(meta) == 0 {
		return "{}", nil
	}
	raw := make(map[string]any, len(meta))
	for k, v := range meta {
		raw[k] = v.Any()
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(data), nil
}

func decodeMetadata(raw string) domain.Metadata {
	if raw == "" || raw == "{}" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	meta, _ := domain.MetadataFromAny(m)
	return meta
}
