package domain

import "context"

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in a single API call.
// Implementations must return one result per input, in input order.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// DimensionReporter exposes the vector length a provider produces.
// Dimension returns 0 when it cannot be known without a probe call.
type DimensionReporter interface {
	Dimension() int
	DetectDimension(ctx context.Context) (int, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the
// decorator chain.
type EmbeddingResult struct {
	Vector       []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult carries multiple embedding vectors (input order) and
// aggregate token usage.
type BatchEmbeddingResult struct {
	Vectors      [][]float32
	PromptTokens int
	TotalTokens  int
}
