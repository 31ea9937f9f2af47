package provider

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/quarry-dev/quarry/internal/domain"
	"github.com/quarry-dev/quarry/internal/provider/ollama"
	"github.com/quarry-dev/quarry/internal/provider/openai"
)

// FactoryConfig selects and tunes the embedding provider chain.
type FactoryConfig struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int
	CacheSize int
	Retry     RetryConfig
	Logger    *zap.Logger
}

// New builds the decorated provider chain:
// truncation -> cache -> retry -> instrumentation -> transport.
func New(cfg FactoryConfig) (Provider, error) {
	base, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}

	var p Provider = WithInstrumentation(base, cfg.Logger)
	p = WithRetry(p, retry)
	p = WithCache(p, cfg.CacheSize)
	p = WithTruncation(p, cfg.MaxTokens)
	return p, nil
}

func newTransport(cfg FactoryConfig) (Provider, error) {
	switch cfg.Provider {
	case NameOpenAI:
		return openai.NewEmbedder(openai.Config{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Dimension: ModelDimension(cfg.Model),
		})
	case NameOllama:
		return ollama.NewEmbedder(ollama.Config{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Dimension: ModelDimension(cfg.Model),
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q: %w", cfg.Provider, domain.ErrInvalidInput)
	}
}
