package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quarry-dev/quarry/internal/config"
	logpkg "github.com/quarry-dev/quarry/internal/logger"
	"github.com/quarry-dev/quarry/internal/metrics"
	"github.com/quarry-dev/quarry/internal/provider"
	"github.com/quarry-dev/quarry/internal/registry"
	"github.com/quarry-dev/quarry/internal/store"
	storePostgres "github.com/quarry-dev/quarry/internal/store/postgres"
	storeRedis "github.com/quarry-dev/quarry/internal/store/redis"
	storeSQLite "github.com/quarry-dev/quarry/internal/store/sqlite"
	chiTransport "github.com/quarry-dev/quarry/internal/transport/chi"
	healthuc "github.com/quarry-dev/quarry/internal/usecase/health"
	indexuc "github.com/quarry-dev/quarry/internal/usecase/index"
	searchuc "github.com/quarry-dev/quarry/internal/usecase/search"
	"github.com/quarry-dev/quarry/internal/version"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(*cobra.Command, []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting quarry API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("store_driver", cfg.Store.Driver),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("embedding_model", cfg.Embedding.Model),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	st, err := createStore(cfg)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.Ping(ctx); err != nil {
		return fmt.Errorf("store not ready: %w", err)
	}
	logger.Info("Connected to vector store")

	embedder, err := provider.New(provider.FactoryConfig{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		APIKey:    cfg.Embedding.APIKey,
		BaseURL:   providerBaseURL(cfg),
		MaxTokens: cfg.Embedding.MaxTokens,
		CacheSize: cfg.Embedding.CacheSize,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("create embedding provider: %w", err)
	}
	logger.Info("Embedder created",
		zap.String("provider", embedder.Name()),
		zap.String("model", embedder.Model()),
	)

	reg := registry.New(st, logger)
	indexSvc := indexuc.New(reg, embedder, cfg.Store.Driver, cfg.Embedding.BatchSize, logger)
	searchSvc := searchuc.New(reg, embedder, cfg.Store.Driver, logger)
	healthSvc := healthuc.New(reg, embedder)

	server := chiTransport.NewServer(indexSvc, searchSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Handle("/metrics", promhttp.Handler())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-quit:
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// redisReadyTimeout bounds startup waiting for Redis; the container may still
// be loading its search module when the server comes up.
const redisReadyTimeout = 10 * time.Second

func createStore(cfg config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "redis":
		s, err := storeRedis.NewStore(storeRedis.Config{
			Addrs:    []string{cfg.Store.Redis.Addr()},
			Username: cfg.Store.Redis.Username,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		if err := s.WaitForReady(context.Background(), redisReadyTimeout); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case "sqlite":
		return storeSQLite.NewStore(cfg.Store.SQLite.Path)
	case "postgres":
		return storePostgres.NewStore(context.Background(), cfg.Store.Postgres.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// providerBaseURL picks the endpoint override for the configured provider.
func providerBaseURL(cfg config.Config) string {
	if cfg.Embedding.BaseURL != "" {
		return cfg.Embedding.BaseURL
	}
	if cfg.Embedding.Provider == provider.NameOllama {
		return cfg.Embedding.Ollama.BaseURL()
	}
	return ""
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
