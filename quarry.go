// Package quarry is the SDK entry point for the retrieval engine: embedding
// providers and vector store backends behind one facade, with dense and
// hybrid search over indexed code fragments.
package quarry

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/quarry-dev/quarry/internal/domain"
	domsearch "github.com/quarry-dev/quarry/internal/domain/search"
	"github.com/quarry-dev/quarry/internal/domain/search/filter"
	"github.com/quarry-dev/quarry/internal/provider"
	"github.com/quarry-dev/quarry/internal/registry"
	"github.com/quarry-dev/quarry/internal/store"
	storePostgres "github.com/quarry-dev/quarry/internal/store/postgres"
	storeRedis "github.com/quarry-dev/quarry/internal/store/redis"
	storeSQLite "github.com/quarry-dev/quarry/internal/store/sqlite"
	healthuc "github.com/quarry-dev/quarry/internal/usecase/health"
	indexuc "github.com/quarry-dev/quarry/internal/usecase/index"
	searchuc "github.com/quarry-dev/quarry/internal/usecase/search"
)

// Client is the quarry SDK entry point.
type Client struct {
	registry  *registry.Registry
	embedder  provider.Provider
	indexSvc  *indexuc.Service
	searchSvc *searchuc.Service
	healthSvc *healthuc.Service
	backend   string
}

// New creates a Client from options. A backend and a provider must be
// selected (or injected) or New fails.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	st, backend, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	embedder := cfg.embedder
	if embedder == nil {
		embedder, err = provider.New(provider.FactoryConfig{
			Provider:  cfg.providerName,
			Model:     cfg.model,
			APIKey:    cfg.apiKey,
			BaseURL:   cfg.baseURL,
			MaxTokens: cfg.maxTokens,
			CacheSize: cfg.cacheSize,
			Logger:    cfg.logger,
		})
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("quarry: create provider: %w", err)
		}
	}

	reg := registry.New(st, cfg.logger)
	return &Client{
		registry:  reg,
		embedder:  embedder,
		indexSvc:  indexuc.New(reg, embedder, backend, cfg.batchSize, cfg.logger),
		searchSvc: searchuc.New(reg, embedder, backend, cfg.logger),
		healthSvc: healthuc.New(reg, embedder),
		backend:   backend,
	}, nil
}

func createStore(cfg *clientConfig) (store.Store, string, error) {
	if cfg.store != nil {
		return cfg.store, "custom", nil
	}
	switch cfg.driver {
	case "redis":
		s, err := storeRedis.NewStore(storeRedis.Config{
			Addrs:    []string{cfg.redisAddr},
			Username: cfg.redisUsername,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		if err != nil {
			return nil, "", fmt.Errorf("quarry: create redis store: %w", err)
		}
		return s, "redis", nil
	case "sqlite":
		s, err := storeSQLite.NewStore(cfg.sqlitePath)
		if err != nil {
			return nil, "", fmt.Errorf("quarry: create sqlite store: %w", err)
		}
		return s, "sqlite", nil
	case "postgres":
		s, err := storePostgres.NewStore(context.Background(), cfg.postgresDSN)
		if err != nil {
			return nil, "", fmt.Errorf("quarry: create postgres store: %w", err)
		}
		return s, "postgres", nil
	case "":
		return nil, "", errors.New("quarry: backend required (use WithRedis, WithSQLite, or WithPostgres)")
	default:
		return nil, "", fmt.Errorf("quarry: unknown driver %q", cfg.driver)
	}
}

// Fragment is one piece of text to index, produced by an external chunker.
type Fragment struct {
	ID        string
	Content   string
	Metadata  map[string]any
	Path      string
	StartLine int
	EndLine   int
}

// IndexStats summarizes one indexing run.
type IndexStats struct {
	Indexed     int
	TotalTokens int
}

// Result is one scored retrieval hit.
type Result struct {
	ID        string
	Score     float64
	Rank      int
	Content   string
	Metadata  map[string]any
	Path      string
	StartLine int
	EndLine   int
}

// QueryOptions configures a retrieval request. Zero values select defaults:
// hybrid mode, limit 10, equal fusion weights.
type QueryOptions struct {
	Mode          string // "dense" or "hybrid"
	Filter        map[string]any
	Limit         int
	DenseWeight   *float64
	LexicalWeight *float64
	MinScore      float64
	ForceRRF      bool
}

// Index embeds and upserts fragments into the collection, creating it at
// the provider's dimension on first use.
func (c *Client) Index(ctx context.Context, collection string, fragments []Fragment) (IndexStats, error) {
	domFrags := make([]domain.Fragment, len(fragments))
	for i, f := range fragments {
		meta, err := domain.MetadataFromAny(f.Metadata)
		if err != nil {
			return IndexStats{}, fmt.Errorf("quarry: fragment %d: %w", i, err)
		}
		domFrags[i] = domain.Fragment{
			ID:       f.ID,
			Content:  f.Content,
			Metadata: meta,
			Prov: domain.Provenance{
				Path:      f.Path,
				StartLine: f.StartLine,
				EndLine:   f.EndLine,
			},
		}
	}

	stats, err := c.indexSvc.Index(ctx, collection, domFrags)
	if err != nil {
		return IndexStats{}, fmt.Errorf("quarry: index: %w", err)
	}
	return IndexStats{Indexed: stats.Indexed, TotalTokens: stats.TotalTokens}, nil
}

// Query searches the collection. A missing collection yields empty results.
func (c *Client) Query(ctx context.Context, collection, query string, opts *QueryOptions) ([]Result, error) {
	if opts == nil {
		opts = &QueryOptions{}
	}

	f, err := filter.FromMap(opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("quarry: query: %w", err)
	}

	req, err := domsearch.NewRequest(domsearch.RequestParams{
		Collection:    collection,
		Query:         query,
		Mode:          domsearch.Mode(opts.Mode),
		Filter:        f,
		Limit:         opts.Limit,
		DenseWeight:   opts.DenseWeight,
		LexicalWeight: opts.LexicalWeight,
		MinScore:      opts.MinScore,
		ForceRRF:      opts.ForceRRF,
	})
	if err != nil {
		return nil, fmt.Errorf("quarry: query: %w", err)
	}

	results, err := c.searchSvc.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("quarry: query: %w", err)
	}
	return fromResults(results), nil
}

// Delete removes documents by id, returning how many existed.
func (c *Client) Delete(ctx context.Context, collection string, ids []string) (int, error) {
	n, err := c.indexSvc.Delete(ctx, collection, ids)
	if err != nil {
		return 0, fmt.Errorf("quarry: delete: %w", err)
	}
	return n, nil
}

// Reset drops the whole collection. Resetting a missing collection is a no-op.
func (c *Client) Reset(ctx context.Context, collection string) error {
	if err := c.indexSvc.Reset(ctx, collection); err != nil {
		return fmt.Errorf("quarry: reset: %w", err)
	}
	return nil
}

// CollectionInfo describes one collection.
type CollectionInfo struct {
	Name      string
	Dimension int
	CreatedAt int64
}

// Collections lists all known collections.
func (c *Client) Collections(ctx context.Context) ([]CollectionInfo, error) {
	cols, err := c.indexSvc.Collections(ctx)
	if err != nil {
		return nil, fmt.Errorf("quarry: collections: %w", err)
	}
	infos := make([]CollectionInfo, len(cols))
	for i, col := range cols {
		infos[i] = CollectionInfo{Name: col.Name(), Dimension: col.Dimension(), CreatedAt: col.CreatedAt()}
	}
	return infos, nil
}

// Documents lists stored documents by metadata filter with pagination.
func (c *Client) Documents(
	ctx context.Context, collection string, filterMap map[string]any, offset, limit int,
) ([]Result, error) {
	f, err := filter.FromMap(filterMap)
	if err != nil {
		return nil, fmt.Errorf("quarry: documents: %w", err)
	}
	results, err := c.indexSvc.Documents(ctx, collection, f, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("quarry: documents: %w", err)
	}
	return fromResults(results), nil
}

// Count returns the number of documents matching the filter.
func (c *Client) Count(ctx context.Context, collection string, filterMap map[string]any) (int, error) {
	f, err := filter.FromMap(filterMap)
	if err != nil {
		return 0, fmt.Errorf("quarry: count: %w", err)
	}
	n, err := c.indexSvc.Count(ctx, collection, f)
	if err != nil {
		return 0, fmt.Errorf("quarry: count: %w", err)
	}
	return n, nil
}

// Health probes the store backend and the embedding provider.
func (c *Client) Health(ctx context.Context) healthuc.Report {
	return c.healthSvc.Check(ctx)
}

// Ping checks store connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.registry.Ping(ctx); err != nil {
		return fmt.Errorf("quarry: ping: %w", err)
	}
	return nil
}

// Backend returns the active store backend name.
func (c *Client) Backend() string { return c.backend }

// Close releases all resources.
func (c *Client) Close() error {
	return c.registry.Close()
}

func fromResults(results []domsearch.Result) []Result {
	out := make([]Result, len(results))
	for i, r := range results {
		var meta map[string]any
		if m := r.Metadata(); len(m) > 0 {
			meta = make(map[string]any, len(m))
			for k, v := range m {
				meta[k] = v.Any()
			}
		}
		prov := r.Prov()
		out[i] = Result{
			ID:        r.ID(),
			Score:     r.Score(),
			Rank:      r.Rank(),
			Content:   r.Content(),
			Metadata:  meta,
			Path:      prov.Path,
			StartLine: prov.StartLine,
			EndLine:   prov.EndLine,
		}
	}
	return out
}
