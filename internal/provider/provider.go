// Package provider assembles embedding providers behind one contract and
// decorates them with retry, caching, and instrumentation.
package provider

import (
	"unicode/utf8"

	"github.com/quarry-dev/quarry/internal/domain"
)

// Provider names.
const (
	NameOpenAI = "openai"
	NameOllama = "ollama"
)

// Provider is the full embedding provider contract: single and batch
// vectorization plus dimension reporting and health probing.
type Provider interface {
	domain.Embedder
	domain.BatchEmbedder
	domain.DimensionReporter
	domain.HealthChecker
	Name() string
	Model() string
}

// modelDimensions maps known model names to their vector lengths.
// Unknown models report 0 and require a probe call.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
	"jina-embeddings-v3":     1024,
}

// ModelDimension returns the static dimension for a known model, 0 otherwise.
func ModelDimension(model string) int {
	return modelDimensions[model]
}

// bytesPerToken is the deterministic estimate used for truncation.
// Embedding APIs tokenize server-side; ~4 bytes per token is a safe
// overcount for code and English text.
const bytesPerToken = 4

// EstimateTokens estimates the token count of a text.
func EstimateTokens(text string) int {
	return (len(text) + bytesPerToken - 1) / bytesPerToken
}

// Truncate cuts text to at most maxTokens estimated tokens, never splitting
// a UTF-8 sequence. Zero or negative maxTokens means no truncation.
func Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	maxBytes := maxTokens * bytesPerToken
	if len(text) <= maxBytes {
		return text
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
