// Package config loads configuration from a YAML file with ${VAR}
// expansion, then overlays environment variables so deployments can run
// without any file at all.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds the quarry service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Store     StoreConfig     `yaml:"store"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port" envconfig:"HTTP_PORT"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// StoreConfig holds vector store settings.
type StoreConfig struct {
	Driver string `yaml:"driver" envconfig:"VECTOR_DATABASE_PROVIDER"` // redis, sqlite, postgres

	Redis    RedisConfig    `yaml:"redis"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string `yaml:"host" envconfig:"REDIS_HOST"`
	Port     int    `yaml:"port" envconfig:"REDIS_PORT"`
	Username string `yaml:"username" envconfig:"REDIS_USERNAME"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
}

// Addr renders host:port for the client.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SQLiteConfig holds SQLite settings.
type SQLiteConfig struct {
	Path string `yaml:"path" envconfig:"SQLITE_PATH"`
}

// PostgresConfig holds PostgreSQL settings.
type PostgresConfig struct {
	DSN string `yaml:"dsn" envconfig:"POSTGRES_DSN"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider" envconfig:"EMBEDDING_PROVIDER"` // openai, ollama
	Model     string `yaml:"model" envconfig:"EMBEDDING_MODEL"`
	APIKey    string `yaml:"api_key" envconfig:"OPENAI_API_KEY"`
	BaseURL   string `yaml:"base_url" envconfig:"OPENAI_BASE_URL"`
	MaxTokens int    `yaml:"max_tokens" envconfig:"EMBEDDING_MAX_TOKENS"`
	BatchSize int    `yaml:"batch_size" envconfig:"EMBEDDING_BATCH_SIZE"`
	CacheSize int    `yaml:"cache_size" envconfig:"EMBEDDING_CACHE_SIZE"`

	Ollama OllamaConfig `yaml:"ollama"`
}

// OllamaConfig holds local Ollama settings.
type OllamaConfig struct {
	Host string `yaml:"host" envconfig:"OLLAMA_HOST"`
	Port int    `yaml:"port" envconfig:"OLLAMA_PORT"`
}

// BaseURL renders the Ollama server address.
func (c OllamaConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// SearchConfig holds retrieval defaults.
type SearchConfig struct {
	DefaultLimit int     `yaml:"default_limit"`
	MaxLimit     int     `yaml:"max_limit"`
	DenseWeight  float64 `yaml:"dense_weight"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level" envconfig:"LOG_LEVEL"` // debug, info, warn, error
}

// Load reads configuration from a YAML file by environment name (local,
// dev, prod), then overlays environment variables. A missing file is not an
// error: the env overlay alone can supply a full configuration.
func Load(env string) (Config, error) {
	var cfg Config

	configPath := findConfigPath(env)
	if data, err := os.ReadFile(filepath.Clean(configPath)); err == nil {
		data = expandEnvVars(data)
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", configPath, err)
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process env overrides: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.Redis.Host == "" {
		c.Store.Redis.Host = "localhost"
	}
	if c.Store.Redis.Port <= 0 {
		c.Store.Redis.Port = 6379
	}
	if c.Store.SQLite.Path == "" {
		c.Store.SQLite.Path = "quarry.db"
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.MaxTokens <= 0 {
		c.Embedding.MaxTokens = 8000
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 50
	}
	if c.Embedding.CacheSize <= 0 {
		c.Embedding.CacheSize = 10000
	}
	if c.Embedding.Ollama.Host == "" {
		c.Embedding.Ollama.Host = "localhost"
	}
	if c.Embedding.Ollama.Port <= 0 {
		c.Embedding.Ollama.Port = 11434
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = 10
	}
	if c.Search.MaxLimit <= 0 {
		c.Search.MaxLimit = 100
	}
	if c.Search.DenseWeight <= 0 {
		c.Search.DenseWeight = 0.5
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Store.Driver {
	case "redis", "sqlite", "postgres":
	default:
		return fmt.Errorf("store.driver must be redis, sqlite, or postgres, got %q", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.Postgres.DSN == "" {
		return fmt.Errorf("store.postgres.dsn is required for the postgres driver")
	}
	switch c.Embedding.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("embedding.provider must be openai or ollama, got %q", c.Embedding.Provider)
	}
	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		return fmt.Errorf("embedding.api_key is required for the openai provider")
	}
	if c.Search.DenseWeight < 0 || c.Search.DenseWeight > 1 {
		return fmt.Errorf("search.dense_weight must be in [0,1], got %g", c.Search.DenseWeight)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
