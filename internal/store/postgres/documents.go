package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/quarry-dev/quarry/internal/domain"
	"github.com/quarry-dev/quarry/internal/store"
)

// Insert upserts documents in one transaction. Every vector is validated
// against the collection dimension before any write.
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
		return store.Wrap(backendName, store.OpInsert, mapErr(err))
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`
		INSERT INTO %s (id, content, embedding, metadata, path, start_line, end_line)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata,
			path = EXCLUDED.path,
			start_line = EXCLUDED.start_line,
			end_line = EXCLUDED.end_line`, docTable(collection))

	for i := range docs {
		doc := &docs[i]
		metaJSON, err := encodeMetadata(doc.Metadata())
		if err != nil {
			return store.Wrap(backendName, store.OpInsert,
				fmt.Errorf("document %q: %w", doc.ID(), err))
		}
		prov := doc.Prov()
		if _, err := tx.ExecContext(ctx, query,
			doc.ID(), doc.Content(), formatEmbedding(doc.Vector()), metaJSON,
			prov.Path, prov.StartLine, prov.EndLine); err != nil {
			return store.Wrap(backendName, store.OpInsert,
				fmt.Errorf("document %q: %w", doc.ID(), mapErr(err)))
		}
	}

	if err := tx.Commit(); err != nil {
		return store.Wrap(backendName, store.OpInsert, mapErr(err))
	}
	return nil
}

// Delete removes documents by id, returning how many existed.
func (s *Store) Delete(ctx context.Context, collection string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = id
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id IN (%s)",
		docTable(collection), strings.Join(placeholders, ","))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, store.Wrap(backendName, store.OpDelete, mapErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, store.Wrap(backendName, store.OpDelete, mapErr(err))
	}
	return int(n), nil
}

func encodeMetadata(meta domain.Metadata) ([]byte, error) {
	raw := make(map[string]any, len(meta))
	for k, v := range meta {
		raw[k] = v.Any()
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return data, nil
}

func decodeMetadata(raw []byte) domain.Metadata {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	meta, _ := domain.MetadataFromAny(m)
	return meta
}

// formatEmbedding renders a vector in pgvector's text syntax: "[0.1,0.2]".
func formatEmbedding(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
