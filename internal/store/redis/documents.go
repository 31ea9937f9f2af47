package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/quarry-dev/quarry/internal/domain"
	"github.com/quarry-dev/quarry/internal/store"
)

// Insert upserts documents as hashes in a single DoMulti round-trip.
// Every vector is validated against the collection dimension first; a
// mismatch aborts the whole batch before any write.
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

	cmds := make([]rueidis.Completed, len(docs))
	for i := range docs {
		fields, err := docFields(&docs[i])
		if err != nil {
			return store.Wrap(backendName, store.OpInsert, err)
		}
		cmd := s.b().Hset().Key(docKey(collection, docs[i].ID())).FieldValue()
		for k, v := range fields {
			cmd = cmd.FieldValue(k, v)
		}
		cmds[i] = cmd.Build()
	}

	results := s.client.DoMulti(ctx, cmds...)
	var failed []string
	var cause error
	for i, res := range results {
		if err := res.Error(); err != nil {
			failed = append(failed, docs[i].ID())
			if cause == nil {
				cause = mapErr(err)
			}
		}
	}
	if len(failed) > 0 {
		return store.Wrap(backendName, store.OpInsert,
			&domain.BatchError{FailedIDs: failed, Cause: cause})
	}
	return nil
}

// Delete removes documents by id, returning how many existed.
// Missing ids are skipped without error.
func (s *Store) Delete(ctx context.Context, collection string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	cmds := make([]rueidis.Completed, len(ids))
	for i, id := range ids {
		cmds[i] = s.b().Del().Key(docKey(collection, id)).Build()
	}

	results := s.client.DoMulti(ctx, cmds...)
	deleted := 0
	for _, res := range results {
		n, err := res.AsInt64()
		if err != nil {
			return deleted, store.Wrap(backendName, store.OpDelete, mapErr(err))
		}
		deleted += int(n)
	}
	return deleted, nil
}

// docFields maps a document onto its hash representation. Metadata is stored
// twice: as an escaped TAG string for filtering and as JSON for faithful
// reconstruction.
func docFields(doc *domain.Document) (map[string]string, error) {
	fields := map[string]string{
		fieldID:      doc.ID(),
		fieldContent: doc.Content(),
		fieldVector:  string(store.EncodeVector(doc.Vector())),
	}

	if meta := doc.Metadata(); len(meta) > 0 {
		fields[fieldMeta] = metaTags(meta)
		raw := make(map[string]any, len(meta))
		for k, v := range meta {
			raw[k] = v.Any()
		}
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		fields[fieldMetaJSON] = string(data)
	}

	prov := doc.Prov()
	if prov.Path != "" {
		fields[fieldPath] = prov.Path
		fields[fieldStart] = strconv.Itoa(prov.StartLine)
		fields[fieldEnd] = strconv.Itoa(prov.EndLine)
	}

	return fields, nil
}

// metaTags renders metadata as "key=value" tags joined by the index
// separator, sorted for determinism. Filtering matches against these tags.
func metaTags(meta domain.Metadata) string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tags := make([]string, 0, len(keys))
	for _, k := range keys {
		tags = append(tags, k+"="+meta[k].Encode())
	}
	return strings.Join(tags, metaTagSeparator)
}

// parseDoc reconstructs a search result from hash fields.
func parseDoc(fields map[string]string) (string, domain.Metadata, domain.Provenance) {
	content := fields[fieldContent]

	var meta domain.Metadata
	if raw, ok := fields[fieldMetaJSON]; ok && raw != "" {
		var m map[string]any
		if err := json.Unmarshal([]byte(raw), &m); err == nil {
			meta, _ = domain.MetadataFromAny(m)
		}
	}

	var prov domain.Provenance
	if path, ok := fields[fieldPath]; ok {
		prov.Path = path
		prov.StartLine, _ = strconv.Atoi(fields[fieldStart])
		prov.EndLine, _ = strconv.Atoi(fields[fieldEnd])
	}

	return content, meta, prov
}
