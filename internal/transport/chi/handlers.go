package chi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	domsearch "github.com/quarry-dev/quarry/internal/domain/search"
	"github.com/quarry-dev/quarry/internal/domain/search/filter"
)

// Healthz handles GET /healthz. Degraded dependencies yield 503 with the
// same report body.
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// ListCollections handles GET /v1/collections.
func (s *Server) ListCollections(w http.ResponseWriter, r *http.Request) {
	cols, err := s.index.Collections(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]CollectionDTO, len(cols))
	for i, c := range cols {
		items[i] = CollectionDTO{Name: c.Name(), Dimension: c.Dimension(), CreatedAt: c.CreatedAt()}
	}
	writeJSON(w, http.StatusOK, CollectionsResponse{Collections: items})
}

// ResetCollection handles DELETE /v1/collections/{collection}.
func (s *Server) ResetCollection(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	if err := s.index.Reset(r.Context(), collection); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// IndexDocuments handles POST /v1/collections/{collection}/documents.
func (s *Server) IndexDocuments(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	var req IndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Fragments) == 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "At least one fragment is required")
		return
	}

	fragments, err := fragmentsFromDTO(req.Fragments)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	stats, err := s.index.Index(r.Context(), collection, fragments)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, IndexResponse{Indexed: stats.Indexed, TotalTokens: stats.TotalTokens})
}

// DeleteDocuments handles DELETE /v1/collections/{collection}/documents.
func (s *Server) DeleteDocuments(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	var req DeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "At least one document id is required")
		return
	}

	deleted, err := s.index.Delete(r.Context(), collection, req.IDs)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: deleted})
}

// ListDocuments handles GET /v1/collections/{collection}/documents.
// Supports offset/limit pagination and an optional JSON filter parameter.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", domsearch.DefaultLimit)

	f, err := parseFilterParam(r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	docs, err := s.index.Documents(r.Context(), collection, f, offset, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentsResponse{
		Documents: resultsToDTO(docs),
		Offset:    offset,
		Limit:     limit,
	})
}

// CountDocuments handles GET /v1/collections/{collection}/count.
func (s *Server) CountDocuments(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	f, err := parseFilterParam(r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	count, err := s.index.Count(r.Context(), collection, f)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: count})
}

// SearchCollection handles POST /v1/collections/{collection}/search.
func (s *Server) SearchCollection(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	f, err := filter.FromMap(req.Filter)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	domReq, err := domsearch.NewRequest(domsearch.RequestParams{
		Collection:    collection,
		Query:         req.Query,
		Mode:          domsearch.Mode(req.Mode),
		Filter:        f,
		Limit:         req.Limit,
		DenseWeight:   req.DenseWeight,
		LexicalWeight: req.LexicalWeight,
		MinScore:      req.MinScore,
		ForceRRF:      req.ForceRRF,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	results, err := s.search.Search(r.Context(), domReq)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: resultsToDTO(results), Total: len(results)})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
