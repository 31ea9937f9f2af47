// Package search defines the validated retrieval request and the scored
// result value objects shared by the orchestrator and the store adapters.
package search

import (
	"fmt"

	"github.com/quarry-dev/quarry/internal/domain"
	"github.com/quarry-dev/quarry/internal/domain/search/filter"
)

// Mode selects the retrieval strategy.
type Mode string

const (
	// ModeDense is pure vector similarity search.
	ModeDense Mode = "dense"
	// ModeHybrid fuses vector similarity with lexical relevance.
	ModeHybrid Mode = "hybrid"
)

// IsValid reports whether the mode is a known strategy.
func (m Mode) IsValid() bool {
	return m == ModeDense || m == ModeHybrid
}

const (
	// DefaultLimit is the result count when the caller does not set one.
	DefaultLimit = 10
	// MaxLimit caps the result count per request.
	MaxLimit = 100
	// DefaultWeight is the per-leg fusion weight when unset.
	DefaultWeight = 0.5
)

// Request is a validated retrieval request (immutable value object).
type Request struct {
	collection    string
	query         string
	mode          Mode
	filter        filter.Expression
	limit         int
	denseWeight   float64
	lexicalWeight float64
	minScore      float64
	forceRRF      bool
}

// RequestParams carries the raw, optional request fields into NewRequest.
// Zero values mean "use the default".
type RequestParams struct {
	Collection    string
	Query         string
	Mode          Mode
	Filter        filter.Expression
	Limit         int
	DenseWeight   *float64
	LexicalWeight *float64
	MinScore      float64
	ForceRRF      bool
}

// NewRequest validates params and applies defaults: mode hybrid, limit 10
// (max 100), weights 0.5 each, minScore 0.
func NewRequest(p RequestParams) (Request, error) {
	if p.Collection == "" {
		return Request{}, fmt.Errorf("collection is required: %w", domain.ErrInvalidInput)
	}
	if p.Query == "" {
		return Request{}, fmt.Errorf("query is required: %w", domain.ErrInvalidInput)
	}
	mode := p.Mode
	if mode == "" {
		mode = ModeHybrid
	}
	if !mode.IsValid() {
		return Request{}, fmt.Errorf("unknown search mode %q: %w", p.Mode, domain.ErrInvalidInput)
	}
	limit := p.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 0 || limit > MaxLimit {
		return Request{}, fmt.Errorf("limit must be 1-%d: %w", MaxLimit, domain.ErrInvalidInput)
	}
	denseWeight := DefaultWeight
	if p.DenseWeight != nil {
		denseWeight = *p.DenseWeight
	}
	lexicalWeight := DefaultWeight
	if p.LexicalWeight != nil {
		lexicalWeight = *p.LexicalWeight
	}
	if denseWeight < 0 || lexicalWeight < 0 {
		return Request{}, fmt.Errorf("fusion weights must be non-negative: %w", domain.ErrInvalidInput)
	}
	if denseWeight == 0 && lexicalWeight == 0 {
		return Request{}, fmt.Errorf("at least one fusion weight must be positive: %w", domain.ErrInvalidInput)
	}
	if p.MinScore < 0 || p.MinScore > 1 {
		return Request{}, fmt.Errorf("minScore must be in [0,1]: %w", domain.ErrInvalidInput)
	}
	return Request{
		collection:    p.Collection,
		query:         p.Query,
		mode:          mode,
		filter:        p.Filter,
		limit:         limit,
		denseWeight:   denseWeight,
		lexicalWeight: lexicalWeight,
		minScore:      p.MinScore,
		forceRRF:      p.ForceRRF,
	}, nil
}

// Collection returns the target collection name.
func (r Request) Collection() string { return r.collection }

// Query returns the natural-language query text.
func (r Request) Query() string { return r.query }

// Mode returns the retrieval strategy.
func (r Request) Mode() Mode { return r.mode }

// Filter returns the metadata equality filter.
func (r Request) Filter() filter.Expression { return r.filter }

// Limit returns the maximum result count.
func (r Request) Limit() int { return r.limit }

// DenseWeight returns the vector leg fusion weight.
func (r Request) DenseWeight() float64 { return r.denseWeight }

// LexicalWeight returns the lexical leg fusion weight.
func (r Request) LexicalWeight() float64 { return r.lexicalWeight }

// MinScore returns the post-fusion score floor.
func (r Request) MinScore() float64 { return r.minScore }

// ForceRRF reports whether rank fusion was requested regardless of
// score comparability.
func (r Request) ForceRRF() bool { return r.forceRRF }

// Result is one scored hit. Rank is 1-based and assigned after fusion.
type Result struct {
	id       string
	score    float64
	rank     int
	content  string
	metadata domain.Metadata
	prov     domain.Provenance
}

// NewResult creates a Result. Adapters produce rank 0; the fusion layer
// assigns final ranks.
func NewResult(id string, score float64, content string, meta domain.Metadata, prov domain.Provenance) Result {
	return Result{id: id, score: score, content: content, metadata: meta, prov: prov}
}

// WithScoreRank returns a copy with the fused score and 1-based rank set.
func (r Result) WithScoreRank(score float64, rank int) Result {
	r.score = score
	r.rank = rank
	return r
}

// ID returns the document identifier.
func (r Result) ID() string { return r.id }

// Score returns the relevance score.
func (r Result) Score() float64 { return r.score }

// Rank returns the 1-based position after fusion (0 before fusion).
func (r Result) Rank() int { return r.rank }

// Content returns the document text content.
func (r Result) Content() string { return r.content }

// Metadata returns the document metadata.
func (r Result) Metadata() domain.Metadata { return r.metadata }

// Prov returns the document provenance.
func (r Result) Prov() domain.Provenance { return r.prov }
