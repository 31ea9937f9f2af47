// Package index implements the write-side orchestration: fragment
// validation, batch vectorization, collection provisioning, and upserts.
package index

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarry-dev/quarry/internal/domain"
	"github.com/quarry-dev/quarry/internal/domain/search"
	"github.com/quarry-dev/quarry/internal/domain/search/filter"
	"github.com/quarry-dev/quarry/internal/metrics"
)

// DefaultBatchSize is the number of texts sent per embedding API call.
const DefaultBatchSize = 50

// Stats summarizes one indexing run.
type Stats struct {
	Indexed     int
	TotalTokens int
	Duration    time.Duration
}

// Service handles indexing, deletion, and collection lifecycle.
type Service struct {
	registry  Registrar
	embedder  Embedder
	backend   string
	batchSize int
	logger    *zap.Logger
}

// New creates an index service. batchSize <= 0 selects the default.
func New(registry Registrar, embedder Embedder, backend string, batchSize int, logger *zap.Logger) *Service {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		registry:  registry,
		embedder:  embedder,
		backend:   backend,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Index validates fragments, embeds them in batches, ensures the collection
// exists at the provider's dimension, and upserts the documents. Fragments
// without an id get a generated one. Nothing is written unless the whole
// batch validates.
func (s *Service) Index(ctx context.Context, collection string, fragments []domain.Fragment) (Stats, error) {
	start := time.Now()
	if len(fragments) == 0 {
		return Stats{}, nil
	}

	docs := make([]domain.Document, 0, len(fragments))
	for i, frag := range fragments {
		id := frag.ID
		if id == "" {
			id = uuid.NewString()
		}
		doc, err := domain.NewDocument(id, frag.Content, frag.Metadata, frag.Prov, nil)
		if err != nil {
			return Stats{}, fmt.Errorf("fragment %d: %w", i, err)
		}
		docs = append(docs, doc)
	}

	dim, err := s.dimension(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("resolve dimension: %w", err)
	}
	if err := s.registry.Ensure(ctx, collection, dim); err != nil {
		return Stats{}, fmt.Errorf("ensure collection: %w", err)
	}

	totalTokens := 0
	for begin := 0; begin < len(docs); begin += s.batchSize {
		end := min(begin+s.batchSize, len(docs))
		texts := make([]string, end-begin)
		for i := begin; i < end; i++ {
			texts[i-begin] = docs[i].Content()
		}

		res, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			metrics.DocumentsIndexedTotal.WithLabelValues(s.backend, "error").Add(float64(end - begin))
			return Stats{}, fmt.Errorf("embed batch [%d:%d]: %w", begin, end, err)
		}
		if len(res.Vectors) != len(texts) {
			return Stats{}, fmt.Errorf("embed batch [%d:%d]: %d vectors for %d texts: %w",
				begin, end, len(res.Vectors), len(texts), domain.ErrResponseFormat)
		}
		for i := begin; i < end; i++ {
			docs[i].SetVector(res.Vectors[i-begin])
		}
		totalTokens += res.TotalTokens
	}

	if err := s.registry.Insert(ctx, collection, docs); err != nil {
		metrics.DocumentsIndexedTotal.WithLabelValues(s.backend, "error").Add(float64(len(docs)))
		return Stats{}, fmt.Errorf("insert documents: %w", err)
	}

	metrics.DocumentsIndexedTotal.WithLabelValues(s.backend, "success").Add(float64(len(docs)))
	stats := Stats{Indexed: len(docs), TotalTokens: totalTokens, Duration: time.Since(start)}
	s.logger.Info("indexed documents",
		zap.String("collection", collection),
		zap.Int("count", stats.Indexed),
		zap.Int("total_tokens", stats.TotalTokens),
		zap.Duration("duration", stats.Duration))
	return stats, nil
}

// dimension resolves the provider's vector dimension, probing the API when
// the model is not statically known.
func (s *Service) dimension(ctx context.Context) (int, error) {
	if dim := s.embedder.Dimension(); dim > 0 {
		return dim, nil
	}
	return s.embedder.DetectDimension(ctx)
}

// Delete removes documents by id, returning how many existed.
func (s *Service) Delete(ctx context.Context, collection string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	deleted, err := s.registry.Delete(ctx, collection, ids)
	if err != nil {
		return 0, fmt.Errorf("delete documents: %w", err)
	}
	s.logger.Info("deleted documents",
		zap.String("collection", collection),
		zap.Int("requested", len(ids)),
		zap.Int("deleted", deleted))
	return deleted, nil
}

// Reset drops the whole collection. Resetting a missing collection is a no-op.
func (s *Service) Reset(ctx context.Context, collection string) error {
	if err := s.registry.Drop(ctx, collection); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	return nil
}

// Collections lists all known collections.
func (s *Service) Collections(ctx context.Context) ([]domain.Collection, error) {
	return s.registry.List(ctx)
}

// Documents lists stored documents by metadata filter with pagination.
func (s *Service) Documents(
	ctx context.Context, collection string, f filter.Expression, offset, limit int,
) ([]search.Result, error) {
	if offset < 0 {
		return nil, fmt.Errorf("offset must be non-negative: %w", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = search.DefaultLimit
	}
	if limit > search.MaxLimit {
		return nil, fmt.Errorf("limit must be 1-%d: %w", search.MaxLimit, domain.ErrInvalidInput)
	}
	return s.registry.Query(ctx, collection, f, offset, limit)
}

// Count returns the number of documents matching the filter.
func (s *Service) Count(ctx context.Context, collection string, f filter.Expression) (int, error) {
	return s.registry.Count(ctx, collection, f)
}
