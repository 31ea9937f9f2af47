// Package search implements the retrieval orchestrator: query embedding,
// dense and hybrid execution, fusion, and post-filtering.
package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quarry-dev/quarry/internal/domain"
	domsearch "github.com/quarry-dev/quarry/internal/domain/search"
	"github.com/quarry-dev/quarry/internal/fusion"
	"github.com/quarry-dev/quarry/internal/metrics"
)

// Service executes retrieval requests.
type Service struct {
	retriever Retriever
	embedder  Embedder
	backend   string
	logger    *zap.Logger
}

// New creates a search service.
func New(retriever Retriever, embedder Embedder, backend string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{retriever: retriever, embedder: embedder, backend: backend, logger: logger}
}

// Search executes a validated retrieval request. Searching a collection
// that does not exist returns empty results, not an error: an empty index
// is a valid state for a fresh checkout.
func (s *Service) Search(ctx context.Context, req domsearch.Request) ([]domsearch.Result, error) {
	start := time.Now()
	mode := string(req.Mode())

	results, err := s.search(ctx, req)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(mode, s.backend, "error").Inc()
		return nil, err
	}

	metrics.SearchRequestsTotal.WithLabelValues(mode, s.backend, "success").Inc()
	metrics.SearchDuration.WithLabelValues(mode, s.backend).Observe(time.Since(start).Seconds())
	s.logger.Debug("search completed",
		zap.String("collection", req.Collection()),
		zap.String("mode", mode),
		zap.Int("results", len(results)),
		zap.Duration("duration", time.Since(start)))
	return results, nil
}

func (s *Service) search(ctx context.Context, req domsearch.Request) ([]domsearch.Result, error) {
	exists, err := s.retriever.Exists(ctx, req.Collection())
	if err != nil {
		return nil, fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		return []domsearch.Result{}, nil
	}

	var results []domsearch.Result
	switch req.Mode() {
	case domsearch.ModeDense:
		results, err = s.searchDense(ctx, req)
		if err != nil {
			return nil, err
		}
	case domsearch.ModeHybrid:
		var rankFused bool
		results, rankFused, err = s.searchHybrid(ctx, req)
		if err != nil {
			return nil, err
		}
		if rankFused {
			// Reciprocal-rank scores top out near 2/61; the score floor
			// is defined on the [0,1] similarity scale and does not apply.
			return results, nil
		}
	default:
		return nil, fmt.Errorf("unsupported search mode %q: %w", req.Mode(), domain.ErrInvalidInput)
	}

	return applyMinScore(results, req.MinScore()), nil
}

// searchDense embeds the query and runs the vector leg only.
func (s *Service) searchDense(ctx context.Context, req domsearch.Request) ([]domsearch.Result, error) {
	emb, err := s.embedder.Embed(ctx, req.Query())
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	results, err := s.retriever.Search(ctx, req.Collection(), emb.Vector, req.Filter(), req.Limit())
	if err != nil {
		return nil, fmt.Errorf("dense search: %w", err)
	}
	return fusion.Rank(results, req.Limit()), nil
}

// legFetchFactor widens each hybrid leg beyond the final limit. Fusion can
// promote a document ranked past the limit in both legs; a leg cut at the
// final limit would hide it before fusion ever sees it.
const legFetchFactor = 3

// searchHybrid runs both legs concurrently and fuses them. The same filter
// applies to both legs so fusion never surfaces a filtered-out document.
// The returned flag reports whether fusion fell back to rank-based scoring.
func (s *Service) searchHybrid(ctx context.Context, req domsearch.Request) ([]domsearch.Result, bool, error) {
	if !s.retriever.SupportsLexical() {
		return nil, false, fmt.Errorf("hybrid search on %s: %w", s.backend, domain.ErrLexicalSearchNotSupported)
	}

	emb, err := s.embedder.Embed(ctx, req.Query())
	if err != nil {
		return nil, false, fmt.Errorf("vectorize query: %w", err)
	}

	legLimit := req.Limit() * legFetchFactor

	var dense, lexical []domsearch.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dense, err = s.retriever.Search(gctx, req.Collection(), emb.Vector, req.Filter(), legLimit)
		if err != nil {
			return fmt.Errorf("dense search: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		lexical, err = s.retriever.SearchLexical(gctx, req.Collection(), req.Query(), req.Filter(), legLimit)
		if err != nil {
			return fmt.Errorf("lexical search: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	fused, usedRRF := fusion.Fuse(dense, lexical,
		req.DenseWeight(), req.LexicalWeight(), req.Limit(), req.ForceRRF())
	return fused, usedRRF, nil
}

// applyMinScore drops results below the score floor, reassigning contiguous
// ranks to the survivors.
func applyMinScore(results []domsearch.Result, minScore float64) []domsearch.Result {
	if minScore <= 0 {
		return results
	}
	filtered := make([]domsearch.Result, 0, len(results))
	for _, r := range results {
		if r.Score() >= minScore {
			filtered = append(filtered, r.WithScoreRank(r.Score(), len(filtered)+1))
		}
	}
	return filtered
}
