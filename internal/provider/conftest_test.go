package provider

import (
	"context"

	"github.com/quarry-dev/quarry/internal/domain"
)

// mockProvider implements Provider for tests.
type mockProvider struct {
	embedFn      func(ctx context.Context, text string) (domain.EmbeddingResult, error)
	embedBatchFn func(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
	dim          int
	model        string

	embedCalls []string
	batchCalls [][]string
}

func (m *mockProvider) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.embedCalls = append(m.embedCalls, text)
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return domain.EmbeddingResult{Vector: make([]float32, m.dim), TotalTokens: 5}, nil
}

func (m *mockProvider) EmbedBatch(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchCalls = append(m.batchCalls, texts)
	if m.embedBatchFn != nil {
		return m.embedBatchFn(ctx, texts)
	}
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = make([]float32, m.dim)
	}
	return domain.BatchEmbeddingResult{Vectors: vectors, TotalTokens: len(texts) * 5}, nil
}

func (m *mockProvider) Dimension() int { return m.dim }

func (m *mockProvider) DetectDimension(context.Context) (int, error) { return m.dim, nil }

func (m *mockProvider) HealthCheck(context.Context) error { return nil }

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Model() string {
	if m.model != "" {
		return m.model
	}
	return "mock-model"
}
