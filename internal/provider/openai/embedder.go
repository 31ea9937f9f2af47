// Package openai implements the embedding provider on any OpenAI-compatible
// embeddings API via the go-openai client.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/quarry-dev/quarry/internal/domain"
)

// Embedder vectorizes text through the OpenAI embeddings endpoint.
type Embedder struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	dimension int
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Dimension is the statically known vector length, 0 if unknown.
	Dimension int
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required: %w", domain.ErrAuthentication)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required: %w", domain.ErrInvalidInput)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Embedder{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     openai.EmbeddingModel(cfg.Model),
		dimension: cfg.Dimension,
	}, nil
}

// Name returns the provider name.
func (e *Embedder) Name() string { return "openai" }

// Model returns the configured model name.
func (e *Embedder) Model() string { return string(e.model) }

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

// EmbedBatch implements domain.BatchEmbedder. The response is reordered by
// the per-item index so vectors always match input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return domain.BatchEmbeddingResult{}, parseAPIError(err)
	}
	if len(resp.Data) != len(texts) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"embedding response has %d vectors for %d inputs: %w",
			len(resp.Data), len(texts), domain.ErrResponseFormat)
	}

	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(vectors) {
			return domain.BatchEmbeddingResult{}, fmt.Errorf(
				"embedding response index %d out of range: %w", data.Index, domain.ErrResponseFormat)
		}
		vectors[data.Index] = data.Embedding
	}
	for i, vec := range vectors {
		if len(vec) == 0 {
			return domain.BatchEmbeddingResult{}, fmt.Errorf(
				"embedding response missing vector for input %d: %w", i, domain.ErrResponseFormat)
		}
	}

	return domain.BatchEmbeddingResult{
		Vectors:      vectors,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// Dimension implements domain.DimensionReporter.
func (e *Embedder) Dimension() int { return e.dimension }

// DetectDimension probes the API with a short input and records the length.
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

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return parseAPIError(err)
	}
	return nil
}

// parseAPIError maps API failures onto the shared error taxonomy.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("embedding API error %d: %s: %w",
			reqErr.HTTPStatusCode, detail, classifyStatus(reqErr.HTTPStatusCode, detail))
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, classifyStatus(apiErr.HTTPStatusCode, apiErr.Message))
	}

	// Transport failure before any HTTP status.
	return fmt.Errorf("embedding request failed: %w: %v", domain.ErrConnection, err)
}

func classifyStatus(status int, message string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.ErrAuthentication
	case status == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case status == http.StatusNotFound && strings.Contains(strings.ToLower(message), "model"):
		return domain.ErrUnsupportedModel
	case status == http.StatusBadRequest && strings.Contains(strings.ToLower(message), "model"):
		return domain.ErrUnsupportedModel
	case status >= 500:
		return domain.ErrConnection
	default:
		return domain.ErrResponseFormat
	}
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
