package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quarry-dev/quarry/internal/domain"
	"github.com/quarry-dev/quarry/internal/metrics"
)

// DefaultCacheSize is the default number of cached embeddings.
const DefaultCacheSize = 10000

// Cached decorates a provider with an in-memory LRU cache keyed by
// model and content hash. Cached hits report zero token usage.
type Cached struct {
	next  Provider
	cache *lru.Cache[string, []float32]
}

// WithCache wraps a provider in LRU caching.
func WithCache(next Provider, size int) *Cached {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		cache, _ = lru.New[string, []float32](DefaultCacheSize)
	}
	return &Cached{next: next, cache: cache}
}

func (c *Cached) key(text string) string {
	h := sha256.Sum256([]byte(c.next.Model() + "\x00" + text))
	return hex.EncodeToString(h[:])
}

func (c *Cached) get(text string) ([]float32, bool) {
	vec, ok := c.cache.Get(c.key(text))
	if !ok {
		metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, true
}

func (c *Cached) put(text string, vec []float32) {
	stored := make([]float32, len(vec))
	copy(stored, vec)
	c.cache.Add(c.key(text), stored)
}

// Embed implements domain.Embedder with cache lookup.
func (c *Cached) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if vec, ok := c.get(text); ok {
		return domain.EmbeddingResult{Vector: vec}, nil
	}
	res, err := c.next.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	c.put(text, res.Vector)
	return res, nil
}

// EmbedBatch implements domain.BatchEmbedder. Only the texts missing from
// the cache hit the API; results keep input order.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	vectors := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if vec, ok := c.get(text); ok {
			vectors[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return domain.BatchEmbeddingResult{Vectors: vectors}, nil
	}

	res, err := c.next.EmbedBatch(ctx, missing)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	for j, vec := range res.Vectors {
		if j >= len(missingIdx) {
			break
		}
		vectors[missingIdx[j]] = vec
		c.put(missing[j], vec)
	}

	return domain.BatchEmbeddingResult{
		Vectors:      vectors,
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// Dimension implements domain.DimensionReporter.
func (c *Cached) Dimension() int { return c.next.Dimension() }

// DetectDimension implements domain.DimensionReporter.
func (c *Cached) DetectDimension(ctx context.Context) (int, error) {
	return c.next.DetectDimension(ctx)
}

// HealthCheck implements domain.HealthChecker.
func (c *Cached) HealthCheck(ctx context.Context) error {
	return c.next.HealthCheck(ctx)
}

// Name returns the wrapped provider name.
func (c *Cached) Name() string { return c.next.Name() }

// Model returns the wrapped model name.
func (c *Cached) Model() string { return c.next.Model() }

// Purge empties the cache.
func (c *Cached) Purge() { c.cache.Purge() }
