// Package chi exposes the retrieval services over a JSON HTTP API.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/quarry-dev/quarry/internal/domain"
	healthuc "github.com/quarry-dev/quarry/internal/usecase/health"
	indexuc "github.com/quarry-dev/quarry/internal/usecase/index"
	searchuc "github.com/quarry-dev/quarry/internal/usecase/search"
)

// Machine-readable error codes.
const (
	CodeBadRequest          = "bad_request"
	CodeValidationFailed    = "validation_failed"
	CodeCollectionNotFound  = "collection_not_found"
	CodeDocumentNotFound    = "document_not_found"
	CodeDimensionMismatch   = "dimension_mismatch"
	CodeUnsupportedFilter   = "unsupported_filter"
	CodeRateLimited         = "rate_limited"
	CodeProviderError       = "embedding_provider_error"
	CodeBackendUnavailable  = "backend_unavailable"
	CodeLexicalNotSupported = "lexical_search_not_supported"
	CodeInternalError       = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server wires the use case services to HTTP routes.
type Server struct {
	index         *indexuc.Service
	search        *searchuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(index *indexuc.Service, search *searchuc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		index:  index,
		search: search,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrCollectionNotFound, http.StatusNotFound, CodeCollectionNotFound),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, CodeDocumentNotFound),
		sentinelHandler(domain.ErrDimensionMismatch, http.StatusBadRequest, CodeDimensionMismatch),
		sentinelHandler(domain.ErrUnsupportedFilter, http.StatusBadRequest, CodeUnsupportedFilter),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrAuthentication, http.StatusBadGateway, CodeProviderError),
		sentinelHandler(domain.ErrUnsupportedModel, http.StatusBadGateway, CodeProviderError),
		sentinelHandler(domain.ErrResponseFormat, http.StatusBadGateway, CodeProviderError),
		sentinelHandler(domain.ErrConnection, http.StatusServiceUnavailable, CodeBackendUnavailable),
		sentinelHandler(domain.ErrLexicalSearchNotSupported, http.StatusNotImplemented, CodeLexicalNotSupported),
	}
	return s
}

// Register mounts all routes on the router. Middleware is the caller's job.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", s.Healthz)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/collections", s.ListCollections)
		r.Route("/collections/{collection}", func(r chi.Router) {
			r.Delete("/", s.ResetCollection)
			r.Post("/search", s.SearchCollection)
			r.Get("/count", s.CountDocuments)
			r.Route("/documents", func(r chi.Router) {
				r.Post("/", s.IndexDocuments)
				r.Delete("/", s.DeleteDocuments)
				r.Get("/", s.ListDocuments)
			})
		})
	})
}

// handleDomainError maps a domain error to an HTTP response.
func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("unhandled domain error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrCollectionNotFound,
		domain.ErrDocumentNotFound,
		domain.ErrDimensionMismatch,
		domain.ErrUnsupportedFilter,
		domain.ErrInvalidInput,
		domain.ErrRateLimited,
		domain.ErrAuthentication,
		domain.ErrUnsupportedModel,
		domain.ErrResponseFormat,
		domain.ErrConnection,
		domain.ErrLexicalSearchNotSupported,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}
