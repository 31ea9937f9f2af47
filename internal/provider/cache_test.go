package provider

import (
	"context"
	"testing"

	"github.com/quarry-dev/quarry/internal/domain"
)

func TestCached_HitSkipsTransport(t *testing.T) {
	mock := &mockProvider{
		embedFn: func(context.Context, string) (domain.EmbeddingResult, error) {
			return domain.EmbeddingResult{Vector: []float32{1, 2}, TotalTokens: 7}, nil
		},
	}
	p := WithCache(mock, 10)

	first, err := p.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if first.TotalTokens != 7 {
		t.Errorf("first TotalTokens = %d", first.TotalTokens)
	}

	second, err := p.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("Embed (cached): %v", err)
	}
	if len(mock.embedCalls) != 1 {
		t.Errorf("transport called %d times, want 1", len(mock.embedCalls))
	}
	// Cache hits cost nothing.
	if second.TotalTokens != 0 {
		t.Errorf("cached TotalTokens = %d, want 0", second.TotalTokens)
	}
	if len(second.Vector) != 2 || second.Vector[0] != 1 {
		t.Errorf("cached vector = %v", second.Vector)
	}
}

func TestCached_ReturnsCopies(t *testing.T) {
	mock := &mockProvider{
		embedFn: func(context.Context, string) (domain.EmbeddingResult, error) {
			return domain.EmbeddingResult{Vector: []float32{1, 2}}, nil
		},
	}
	p := WithCache(mock, 10)

	first, _ := p.Embed(context.Background(), "text")
	first.Vector[0] = 99

	second, _ := p.Embed(context.Background(), "text")
	if second.Vector[0] != 1 {
		t.Error("cache entries must not alias handed-out vectors")
	}
}

func TestCached_BatchPartialMiss(t *testing.T) {
	calls := 0
	mock := &mockProvider{
		embedBatchFn: func(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
			calls++
			vectors := make([][]float32, len(texts))
			for i, text := range texts {
				vectors[i] = []float32{float32(len(text))}
			}
			return domain.BatchEmbeddingResult{Vectors: vectors, TotalTokens: len(texts)}, nil
		},
	}
	p := WithCache(mock, 10)

	// Warm "aa" and "bbbb".
	if _, err := p.EmbedBatch(context.Background(), []string{"aa", "bbbb"}); err != nil {
		t.Fatalf("warm: %v", err)
	}

	// Mixed batch: only "c" should hit the transport.
	res, err := p.EmbedBatch(context.Background(), []string{"aa", "c", "bbbb"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if calls != 2 {
		t.Fatalf("transport batches = %d, want 2", calls)
	}
	if got := mock.batchCalls[1]; len(got) != 1 || got[0] != "c" {
		t.Errorf("second transport batch = %v, want [c]", got)
	}

	// Results keep input order regardless of cache hits.
	want := []float32{2, 1, 4}
	for i, vec := range res.Vectors {
		if len(vec) != 1 || vec[0] != want[i] {
			t.Errorf("vectors[%d] = %v, want [%g]", i, vec, want[i])
		}
	}
	// Token usage counts only the transport leg.
	if res.TotalTokens != 1 {
		t.Errorf("TotalTokens = %d, want 1", res.TotalTokens)
	}
}

func TestCached_Purge(t *testing.T) {
	mock := &mockProvider{dim: 1}
	p := WithCache(mock, 10)

	if _, err := p.Embed(context.Background(), "text"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	p.Purge()
	if _, err := p.Embed(context.Background(), "text"); err != nil {
		t.Fatalf("Embed after purge: %v", err)
	}
	if len(mock.embedCalls) != 2 {
		t.Errorf("transport called %d times, want 2 after purge", len(mock.embedCalls))
	}
}
