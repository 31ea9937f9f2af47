package provider

import (
	"context"
	"errors"
	"time"

	"github.com/quarry-dev/quarry/internal/domain"
)

// Retry defaults.
const (
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

// DefaultRetryConfig returns sensible defaults for embedding API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: MaxRetries,
		BaseDelay:  InitialBackoffMs * time.Millisecond,
		MaxDelay:   MaxBackoffMs * time.Millisecond,
		Multiplier: BackoffMultiplier,
	}
}

// isRetryable reports whether the failure is transient. Authentication,
// validation, and model errors never resolve by retrying.
func isRetryable(err error) bool {
	return errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrConnection)
}

// retryWithBackoff executes fn with exponential backoff, retrying only
// transient failures. Context cancellation stops retrying immediately.
func retryWithBackoff[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var lastErr error
	var zero T
	backoff := cfg.BaseDelay

	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		if attempt < cfg.MaxRetries-1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
				backoff = time.Duration(float64(backoff) * cfg.Multiplier)
				if backoff > cfg.MaxDelay {
					backoff = cfg.MaxDelay
				}
			}
		}
	}
	return zero, lastErr
}

// Retrying decorates a provider with backoff on transient failures.
type Retrying struct {
	next Provider
	cfg  RetryConfig
}

// WithRetry wraps a provider in retry behavior.
func WithRetry(next Provider, cfg RetryConfig) *Retrying {
	return &Retrying{next: next, cfg: cfg}
}

// Embed implements domain.Embedder.
func (r *Retrying) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return retryWithBackoff(ctx, r.cfg, func() (domain.EmbeddingResult, error) {
		return r.next.Embed(ctx, text)
	})
}

// EmbedBatch implements domain.BatchEmbedder.
func (r *Retrying) EmbedBatch(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	return retryWithBackoff(ctx, r.cfg, func() (domain.BatchEmbeddingResult, error) {
		return r.next.EmbedBatch(ctx, texts)
	})
}

// Dimension implements domain.DimensionReporter.
func (r *Retrying) Dimension() int { return r.next.Dimension() }

// DetectDimension implements domain.DimensionReporter.
func (r *Retrying) DetectDimension(ctx context.Context) (int, error) {
	return retryWithBackoff(ctx, r.cfg, func() (int, error) {
		return r.next.DetectDimension(ctx)
	})
}

// HealthCheck implements domain.HealthChecker.
func (r *Retrying) HealthCheck(ctx context.Context) error {
	return r.next.HealthCheck(ctx)
}

// Name returns the wrapped provider name.
func (r *Retrying) Name() string { return r.next.Name() }

// Model returns the wrapped model name.
func (r *Retrying) Model() string { return r.next.Model() }
