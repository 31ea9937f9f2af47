package domain

import (
	"fmt"
	"regexp"
	"time"
)

var collectionNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Collection is a named, dimension-fixed container of documents within one
// backend. The dimension is immutable after creation.
type Collection struct {
	name      string
	dimension int
	createdAt int64
}

// NewCollection validates and creates a Collection.
// Name: ^[a-zA-Z0-9_-]+$, 1-64 chars. Dimension: > 0.
func NewCollection(name string, dimension int) (Collection, error) {
	if name == "" {
		return Collection{}, fmt.Errorf("collection name is required: %w", ErrInvalidInput)
	}
	if len(name) > 64 {
		return Collection{}, fmt.Errorf("collection name too long (max 64): %w", ErrInvalidInput)
	}
	if !collectionNameRegex.MatchString(name) {
		return Collection{}, fmt.Errorf(
			"collection name must be alphanumeric with underscores and hyphens: %w", ErrInvalidInput)
	}
	if dimension <= 0 {
		return Collection{}, fmt.Errorf("vector dimension must be positive: %w", ErrInvalidInput)
	}
	return Collection{name: name, dimension: dimension, createdAt: time.Now().UnixMilli()}, nil
}

// ReconstructCollection creates a Collection without validation (storage hydration).
func ReconstructCollection(name string, dimension int, createdAt int64) Collection {
	return Collection{name: name, dimension: dimension, createdAt: createdAt}
}

// Name returns the collection name.
func (c Collection) Name() string { return c.name }

// Dimension returns the declared vector dimension.
func (c Collection) Dimension() int { return c.dimension }

// CreatedAt returns the creation timestamp (unix millis).
func (c Collection) CreatedAt() int64 { return c.createdAt }
