package provider

import (
	"context"

	"github.com/quarry-dev/quarry/internal/domain"
)

// Truncating decorates a provider by cutting oversized inputs down to the
// token budget before transmission. Sits innermost so cache keys and API
// payloads agree on the truncated text.
type Truncating struct {
	next      Provider
	maxTokens int
}

// WithTruncation wraps a provider in input truncation. Zero or negative
// maxTokens disables it.
func WithTruncation(next Provider, maxTokens int) *Truncating {
	return &Truncating{next: next, maxTokens: maxTokens}
}

// Embed implements domain.Embedder.
func (t *Truncating) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return t.next.Embed(ctx, Truncate(text, t.maxTokens))
}

// EmbedBatch implements domain.BatchEmbedder.
func (t *Truncating) EmbedBatch(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	truncated := make([]string, len(texts))
	for i, text := range texts {
		truncated[i] = Truncate(text, t.maxTokens)
	}
	return t.next.EmbedBatch(ctx, truncated)
}

// Dimension implements domain.DimensionReporter.
func (t *Truncating) Dimension() int { return t.next.Dimension() }

// DetectDimension implements domain.DimensionReporter.
func (t *Truncating) DetectDimension(ctx context.Context) (int, error) {
	return t.next.DetectDimension(ctx)
}

// HealthCheck implements domain.HealthChecker.
func (t *Truncating) HealthCheck(ctx context.Context) error {
	return t.next.HealthCheck(ctx)
}

// Name returns the wrapped provider name.
func (t *Truncating) Name() string { return t.next.Name() }

// Model returns the wrapped model name.
func (t *Truncating) Model() string { return t.next.Model() }
