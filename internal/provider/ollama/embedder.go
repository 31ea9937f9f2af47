// Package ollama implements the embedding provider on a local Ollama
// server through its native /api/embed endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quarry-dev/quarry/internal/domain"
)

// DefaultBaseURL is the standard local Ollama address.
const DefaultBaseURL = "http://localhost:11434"

// Embedder vectorizes text through a local Ollama server.
type Embedder struct {
	baseURL   string
	model     string
	dimension int
	client    *http.Client
}

// Config holds the Ollama provider settings.
type Config struct {
	BaseURL string
	Model   string
	// Dimension is the statically known vector length, 0 if unknown.
	Dimension int
	Timeout   time.Duration
}

// NewEmbedder creates an Ollama embedding provider.
func NewEmbedder(cfg Config) (*Embedder, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required: %w", domain.ErrInvalidInput)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Embedder{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		model:     cfg.Model,
		dimension: cfg.Dimension,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

// Name returns the provider name.
func (e *Embedder) Name() string { return "ollama" }

// Model returns the configured model name.
func (e *Embedder) Model() string { return e.model }

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	batch, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	if len(batch.Vectors) == 0 {
		return domain.EmbeddingResult{}, fmt.Errorf(
			"empty embedding response: %w", domain.ErrResponseFormat)
	}
	return domain.EmbeddingResult{
		Vector:       batch.Vectors[0],
		PromptTokens: batch.PromptTokens,
		TotalTokens:  batch.TotalTokens,
	}, nil
}

// EmbedBatch implements domain.BatchEmbedder via /api/embed, which accepts
// an input array and returns embeddings in input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	reqBody, err := json.Marshal(map[string]any{
		"model": e.model,
		"input": texts,
	})
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.baseURL+"/api/embed", bytes.NewReader(reqBody))
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"ollama request failed: %w: %v", domain.ErrConnection, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.BatchEmbeddingResult{}, classifyError(resp.StatusCode, string(body))
	}

	var apiResp struct {
		Embeddings      [][]float32 `json:"embeddings"`
		PromptEvalCount int         `json:"prompt_eval_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"decode response: %w: %v", domain.ErrResponseFormat, err)
	}
	if len(apiResp.Embeddings) != len(texts) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"embedding response has %d vectors for %d inputs: %w",
			len(apiResp.Embeddings), len(texts), domain.ErrResponseFormat)
	}
	for i, vec := range apiResp.Embeddings {
		if len(vec) == 0 {
			return domain.BatchEmbeddingResult{}, fmt.Errorf(
				"embedding response missing vector for input %d: %w", i, domain.ErrResponseFormat)
		}
	}

	return domain.BatchEmbeddingResult{
		Vectors:      apiResp.Embeddings,
		PromptTokens: apiResp.PromptEvalCount,
		TotalTokens:  apiResp.PromptEvalCount,
	}, nil
}

// Dimension implements domain.DimensionReporter.
func (e *Embedder) Dimension() int { return e.dimension }

// DetectDimension probes the server with a short input and records the length.
func (e *Embedder) DetectDimension(ctx context.Context) (int, error) {
	if e.dimension > 0 {
		return e.dimension, nil
	}
	res, err := e.Embed(ctx, "dimension probe")
	if err != nil {
		return 0, err
	}
	e.dimension = len(res.Vector)
	return e.dimension, nil
}

// HealthCheck verifies the server responds on its version endpoint.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/version", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w: %v", domain.ErrConnection, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health status %d: %w", resp.StatusCode, domain.ErrConnection)
	}
	return nil
}

func classifyError(status int, body string) error {
	lower := strings.ToLower(body)
	switch {
	case status == http.StatusNotFound && strings.Contains(lower, "model"):
		return fmt.Errorf("ollama error %d: %s: %w", status, body, domain.ErrUnsupportedModel)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("ollama error %d: %s: %w", status, body, domain.ErrRateLimited)
	case status >= 500:
		return fmt.Errorf("ollama error %d: %s: %w", status, body, domain.ErrConnection)
	default:
		return fmt.Errorf("ollama error %d: %s: %w", status, body, domain.ErrResponseFormat)
	}
}
