package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection signals a backend that could not be reached (retryable).
	ErrConnection = errors.New("connection failed")
	// ErrAuthentication signals rejected credentials (never retried).
	ErrAuthentication = errors.New("authentication failed")
	// ErrDimensionMismatch signals a vector whose length conflicts with the collection dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrUnsupportedFilter signals a filter the backend cannot translate.
	ErrUnsupportedFilter = errors.New("unsupported filter")
	// ErrUnsupportedModel signals a model unknown to the provider (never retried).
	ErrUnsupportedModel = errors.New("unsupported model")
	// ErrRateLimited signals a provider/backend rate limit (retryable).
	ErrRateLimited = errors.New("rate limited")
	// ErrCollectionNotFound signals a missing collection.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrPartialBatch signals that some items of a batch failed.
	ErrPartialBatch = errors.New("partial batch failure")
	// ErrResponseFormat signals a malformed backend reply (never retried).
	ErrResponseFormat = errors.New("malformed response")
	// ErrLexicalSearchNotSupported signals that the backend lacks keyword scoring.
	ErrLexicalSearchNotSupported = errors.New("lexical search not supported by backend")
	// ErrInvalidInput signals a request rejected at the boundary.
	ErrInvalidInput = errors.New("invalid input")
)

// DimensionMismatchError wraps ErrDimensionMismatch with the conflicting lengths.
type DimensionMismatchError struct {
	Collection string
	Want       int
	Got        int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: collection %q expects %d, got %d",
		ErrDimensionMismatch.Error(), e.Collection, e.Want, e.Got)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// NewDimensionMismatch creates a dimension conflict error for a collection.
func NewDimensionMismatch(collection string, want, got int) error {
	return &DimensionMismatchError{Collection: collection, Want: want, Got: got}
}

// BatchError wraps ErrPartialBatch with the ids that failed and the first cause.
type BatchError struct {
	FailedIDs []string
	Cause     error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s: %d items failed: %v",
		ErrPartialBatch.Error(), len(e.FailedIDs), e.Cause)
}

func (e *BatchError) Unwrap() error { return ErrPartialBatch }
