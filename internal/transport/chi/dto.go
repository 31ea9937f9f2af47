package chi

import (
	"encoding/json"
	"fmt"

	"github.com/quarry-dev/quarry/internal/domain"
	domsearch "github.com/quarry-dev/quarry/internal/domain/search"
	"github.com/quarry-dev/quarry/internal/domain/search/filter"
)

// ErrorResponse is the JSON error body returned by every failing endpoint.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FragmentDTO is one piece of text to index.
type FragmentDTO struct {
	ID        string         `json:"id,omitempty"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Path      string         `json:"path,omitempty"`
	StartLine int            `json:"start_line,omitempty"`
	EndLine   int            `json:"end_line,omitempty"`
}

// IndexRequest is the body of POST /collections/{collection}/documents.
type IndexRequest struct {
	Fragments []FragmentDTO `json:"fragments"`
}

// IndexResponse reports one indexing run.
type IndexResponse struct {
	Indexed     int `json:"indexed"`
	TotalTokens int `json:"total_tokens"`
}

// DeleteRequest is the body of DELETE /collections/{collection}/documents.
type DeleteRequest struct {
	IDs []string `json:"ids"`
}

// DeleteResponse reports how many documents were removed.
type DeleteResponse struct {
	Deleted int `json:"deleted"`
}

// SearchRequest is the body of POST /collections/{collection}/search.
type SearchRequest struct {
	Query         string         `json:"query"`
	Mode          string         `json:"mode,omitempty"`
	Filter        map[string]any `json:"filter,omitempty"`
	Limit         int            `json:"limit,omitempty"`
	DenseWeight   *float64       `json:"dense_weight,omitempty"`
	LexicalWeight *float64       `json:"lexical_weight,omitempty"`
	MinScore      float64        `json:"min_score,omitempty"`
	ForceRRF      bool           `json:"force_rrf,omitempty"`
}

// ResultDTO is one scored retrieval hit.
type ResultDTO struct {
	ID        string         `json:"id"`
	Score     float64        `json:"score"`
	Rank      int            `json:"rank"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Path      string         `json:"path,omitempty"`
	StartLine int            `json:"start_line,omitempty"`
	EndLine   int            `json:"end_line,omitempty"`
}

// SearchResponse carries scored results.
type SearchResponse struct {
	Results []ResultDTO `json:"results"`
	Total   int         `json:"total"`
}

// DocumentsResponse carries a page of stored documents.
type DocumentsResponse struct {
	Documents []ResultDTO `json:"documents"`
	Offset    int         `json:"offset"`
	Limit     int         `json:"limit"`
}

// CountResponse carries a filtered document count.
type CountResponse struct {
	Count int `json:"count"`
}

// CollectionDTO describes one collection.
type CollectionDTO struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	CreatedAt int64  `json:"created_at"`
}

// CollectionsResponse lists all known collections.
type CollectionsResponse struct {
	Collections []CollectionDTO `json:"collections"`
}

func fragmentsFromDTO(in []FragmentDTO) ([]domain.Fragment, error) {
	out := make([]domain.Fragment, len(in))
	for i, f := range in {
		meta, err := domain.MetadataFromAny(f.Metadata)
		if err != nil {
			return nil, fmt.Errorf("fragment %d: %w", i, err)
		}
		out[i] = domain.Fragment{
			ID:       f.ID,
			Content:  f.Content,
			Metadata: meta,
			Prov: domain.Provenance{
				Path:      f.Path,
				StartLine: f.StartLine,
				EndLine:   f.EndLine,
			},
		}
	}
	return out, nil
}

func resultsToDTO(in []domsearch.Result) []ResultDTO {
	out := make([]ResultDTO, len(in))
	for i, r := range in {
		var meta map[string]any
		if m := r.Metadata(); len(m) > 0 {
			meta = make(map[string]any, len(m))
			for k, v := range m {
				meta[k] = v.Any()
			}
		}
		prov := r.Prov()
		out[i] = ResultDTO{
			ID:        r.ID(),
			Score:     r.Score(),
			Rank:      r.Rank(),
			Content:   r.Content(),
			Metadata:  meta,
			Path:      prov.Path,
			StartLine: prov.StartLine,
			EndLine:   prov.EndLine,
		}
	}
	return out
}

// parseFilterParam decodes the optional ?filter= query parameter, a
// URL-encoded JSON object of field/value equality pairs.
func parseFilterParam(raw string) (filter.Expression, error) {
	if raw == "" {
		return filter.Expression{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return filter.Expression{}, fmt.Errorf("filter must be a JSON object: %w", domain.ErrInvalidInput)
	}
	return filter.FromMap(m)
}
