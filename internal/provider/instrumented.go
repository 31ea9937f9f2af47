package provider

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/quarry-dev/quarry/internal/domain"
	"github.com/quarry-dev/quarry/internal/metrics"
)

// Instrumented decorates a provider with structured logging and Prometheus
// metrics at the transport boundary.
type Instrumented struct {
	next   Provider
	logger *zap.Logger
}

// WithInstrumentation wraps a provider in logging and metrics.
func WithInstrumentation(next Provider, logger *zap.Logger) *Instrumented {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Instrumented{next: next, logger: logger}
}

// Embed implements domain.Embedder.
func (p *Instrumented) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	res, err := p.next.Embed(ctx, text)
	p.observe("embed", 1, start, res.PromptTokens, res.TotalTokens, err)
	return res, err
}

// EmbedBatch implements domain.BatchEmbedder.
func (p *Instrumented) EmbedBatch(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	start := time.Now()
	res, err := p.next.EmbedBatch(ctx, texts)
	p.observe("embed_batch", len(texts), start, res.PromptTokens, res.TotalTokens, err)
	return res, err
}

func (p *Instrumented) observe(op string, count int, start time.Time, promptTokens, totalTokens int, err error) {
	provider, model := p.next.Name(), p.next.Model()
	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(provider, model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(provider, model, "api_error").Inc()
		p.logger.Warn("embedding request failed",
			zap.String("op", op),
			zap.String("provider", provider),
			zap.String("model", model),
			zap.Int("texts", count),
			zap.Duration("duration", duration),
			zap.Error(err))
		return
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(provider, model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	if totalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(provider, model, "total").Add(float64(totalTokens))
	}
	p.logger.Debug("embedding request",
		zap.String("op", op),
		zap.String("provider", provider),
		zap.String("model", model),
		zap.Int("texts", count),
		zap.Int("total_tokens", totalTokens),
		zap.Duration("duration", duration))
}

// Dimension implements domain.DimensionReporter.
func (p *Instrumented) Dimension() int { return p.next.Dimension() }

// DetectDimension implements domain.DimensionReporter.
func (p *Instrumented) DetectDimension(ctx context.Context) (int, error) {
	return p.next.DetectDimension(ctx)
}

// HealthCheck implements domain.HealthChecker.
func (p *Instrumented) HealthCheck(ctx context.Context) error {
	return p.next.HealthCheck(ctx)
}

// Name returns the wrapped provider name.
func (p *Instrumented) Name() string { return p.next.Name() }

// Model returns the wrapped model name.
func (p *Instrumented) Model() string { return p.next.Model() }
