package quarry

import (
	"go.uber.org/zap"

	"github.com/quarry-dev/quarry/internal/provider"
	"github.com/quarry-dev/quarry/internal/store"
)

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	driver        string
	redisAddr     string
	redisUsername string
	redisPassword string
	redisDB       int
	sqlitePath    string
	postgresDSN   string

	providerName string
	model        string
	apiKey       string
	baseURL      string
	maxTokens    int
	batchSize    int
	cacheSize    int

	store    store.Store
	embedder provider.Provider
	logger   *zap.Logger
}

// WithRedis selects the Redis backend.
func WithRedis(addr, password string) Option {
	return func(c *clientConfig) {
		c.driver = "redis"
		c.redisAddr = addr
		c.redisPassword = password
	}
}

// WithRedisDB selects a Redis logical database.
func WithRedisDB(db int) Option {
	return func(c *clientConfig) {
		c.redisDB = db
	}
}

// WithSQLite selects the embedded SQLite backend. Use ":memory:" for an
// ephemeral index.
func WithSQLite(path string) Option {
	return func(c *clientConfig) {
		c.driver = "sqlite"
		c.sqlitePath = path
	}
}

// WithPostgres selects the PostgreSQL/pgvector backend (dense-only).
func WithPostgres(dsn string) Option {
	return func(c *clientConfig) {
		c.driver = "postgres"
		c.postgresDSN = dsn
	}
}

// WithOpenAI selects the OpenAI embedding provider.
func WithOpenAI(apiKey, model string) Option {
	return func(c *clientConfig) {
		c.providerName = provider.NameOpenAI
		c.apiKey = apiKey
		c.model = model
	}
}

// WithBaseURL points the OpenAI provider at a compatible endpoint.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithOllama selects a local Ollama embedding provider.
func WithOllama(baseURL, model string) Option {
	return func(c *clientConfig) {
		c.providerName = provider.NameOllama
		c.baseURL = baseURL
		c.model = model
	}
}

// WithMaxTokens caps the estimated token count per embedded text.
func WithMaxTokens(n int) Option {
	return func(c *clientConfig) {
		c.maxTokens = n
	}
}

// WithBatchSize sets the number of texts per embedding API call.
func WithBatchSize(n int) Option {
	return func(c *clientConfig) {
		c.batchSize = n
	}
}

// WithCacheSize sets the embedding LRU cache capacity.
func WithCacheSize(n int) Option {
	return func(c *clientConfig) {
		c.cacheSize = n
	}
}

// WithLogger sets the structured logger (zap.NewNop by default).
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithStore injects a pre-built store adapter, bypassing driver selection.
func WithStore(s store.Store) Option {
	return func(c *clientConfig) {
		c.store = s
	}
}

// WithEmbedder injects a pre-built embedding provider, bypassing provider
// selection.
func WithEmbedder(p provider.Provider) Option {
	return func(c *clientConfig) {
		c.embedder = p
	}
}
