package domain

import (
	"fmt"
	"regexp"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_./:-]+$`)

// MaxContentSize is the maximum document content size in bytes.
const MaxContentSize = 163840 // 160KB

// Provenance records where a fragment came from in the indexed source tree.
type Provenance struct {
	Path      string
	StartLine int
	EndLine   int
}

// Fragment is the raw input produced by the excluded chunking layer:
// an identified piece of text plus its metadata, before vectorization.
type Fragment struct {
	ID       string
	Content  string
	Metadata Metadata
	Prov     Provenance
}

// Document is a stored, searchable fragment (immutable value object).
// ID charset allows path-derived chunk ids like "pkg/store/redis.go:42".
type Document struct {
	id      string
	content string
	meta    Metadata
	prov    Provenance
	vector  []float32
}

// NewDocument validates and creates a Document.
// ID: 1-512 chars matching [a-zA-Z0-9_./:-]. Content: non-empty, max 160KB.
func NewDocument(id, content string, meta Metadata, prov Provenance, vector []float32) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("document ID is required: %w", ErrInvalidInput)
	}
	if len(id) > 512 {
		return Document{}, fmt.Errorf("document ID too long (max 512): %w", ErrInvalidInput)
	}
	if !idRegex.MatchString(id) {
		return Document{}, fmt.Errorf("document ID %q has invalid characters: %w", id, ErrInvalidInput)
	}
	if content == "" {
		return Document{}, fmt.Errorf("content is required: %w", ErrInvalidInput)
	}
	if len(content) > MaxContentSize {
		return Document{}, fmt.Errorf("content too large (max %d bytes): %w", MaxContentSize, ErrInvalidInput)
	}
	return Document{id: id, content: content, meta: meta.Clone(), prov: prov, vector: vector}, nil
}

// ReconstructDocument creates a Document without validation (storage hydration).
func ReconstructDocument(id, content string, meta Metadata, prov Provenance, vector []float32) Document {
	return Document{id: id, content: content, meta: meta, prov: prov, vector: vector}
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// Content returns the document text content.
func (d *Document) Content() string { return d.content }

// Metadata returns the scalar metadata mapping.
func (d *Document) Metadata() Metadata { return d.meta }

// Prov returns the source provenance.
func (d *Document) Prov() Provenance { return d.prov }

// Vector returns the embedding vector.
func (d *Document) Vector() []float32 { return d.vector }

// SetVector sets the vector in place (mutation during indexing).
func (d *Document) SetVector(v []float32) { d.vector = v }
