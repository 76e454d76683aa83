package document

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned when the declared MIME type has no extractor.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrParseFailure is returned when an extractor cannot decode the file content.
	ErrParseFailure = errors.New("failed to parse document")

	// ErrInvalidConfig is returned for chunk parameters that cannot produce chunks.
	ErrInvalidConfig = errors.New("invalid processing config")

	// ErrEmbeddingFailure is returned once embedding retries are exhausted.
	ErrEmbeddingFailure = errors.New("embedding generation failed")

	// ErrStoreUnavailable is returned when the backing store cannot be reached.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrStoreWriteFailure is returned when the backing store rejects a write.
	ErrStoreWriteFailure = errors.New("vector store write failed")

	// ErrDocumentNotFound is returned by stats lookups for unknown file names.
	ErrDocumentNotFound = errors.New("document not found")
)

// EmbeddingError reports which batch failed and why.
type EmbeddingError struct {
	BatchIndex int
	Attempts   int
	Err        error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("%s: batch %d after %d attempt(s): %v", ErrEmbeddingFailure, e.BatchIndex, e.Attempts, e.Err)
}

func (e *EmbeddingError) Unwrap() []error {
	return []error{ErrEmbeddingFailure, e.Err}
}
