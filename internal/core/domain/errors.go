package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates the provider API rate or quota limit
	// was exceeded. Embedding adapters wrap HTTP 429 with this so the
	// vectorizer can classify it as QUOTA_EXCEEDED.
	ErrRateLimited = errors.New("rate limited")

	// ErrEmbeddingUnavailable indicates the embedding provider is not
	// configured. Nothing in the pipeline works without one.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrLLMUnavailable indicates the chat model is not configured.
	// Retrieval still works; answer generation is disabled.
	ErrLLMUnavailable = errors.New("LLM service unavailable")
)

// ErrorCode classifies pipeline failures. Codes are stable and safe
// to show to callers; they drive retry policy (validation codes are
// never retried, transient codes may be).
type ErrorCode string

const (
	// CodeEmptyContent: document content is empty or whitespace-only.
	CodeEmptyContent ErrorCode = "EMPTY_CONTENT"

	// CodeDimensionMismatch: a provider-returned vector does not match
	// the configured dimension. Fatal, aborts the whole batch.
	CodeDimensionMismatch ErrorCode = "DIMENSION_MISMATCH"

	// CodeEmptyQuery: the question is empty or whitespace-only.
	CodeEmptyQuery ErrorCode = "EMPTY_QUERY"

	// CodeQueryTooLong: the question exceeds the character ceiling.
	CodeQueryTooLong ErrorCode = "QUERY_TOO_LONG"

	// CodeInvalidDimension: a query vector came back with the wrong
	// dimension.
	CodeInvalidDimension ErrorCode = "INVALID_DIMENSION"

	// CodeEmbeddingTimeout: the provider call timed out.
	CodeEmbeddingTimeout ErrorCode = "EMBEDDING_TIMEOUT"

	// CodeQuotaExceeded: the provider rejected the call for quota or
	// rate limiting.
	CodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"

	// CodeEmbeddingError: any other provider failure.
	CodeEmbeddingError ErrorCode = "EMBEDDING_ERROR"

	// CodeVectorSearchError: the similarity search itself failed.
	// Never conflated with "no matches".
	CodeVectorSearchError ErrorCode = "VECTOR_SEARCH_ERROR"

	// CodeConflict: the document is already being processed.
	CodeConflict ErrorCode = "CONFLICT"
)

// Retryable reports whether an orchestration layer may retry a
// failure with this code. Validation failures are deterministic and
// retrying them only wastes quota.
func (c ErrorCode) Retryable() bool {
	switch c {
	case CodeEmbeddingTimeout, CodeQuotaExceeded, CodeEmbeddingError, CodeVectorSearchError:
		return true
	default:
		return false
	}
}

// PipelineError is a classified pipeline failure. It wraps the
// underlying cause so errors.Is/As keep working through it.
type PipelineError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError creates a classified failure without a cause.
func NewPipelineError(code ErrorCode, message string) *PipelineError {
	return &PipelineError{Code: code, Message: message}
}

// WrapPipelineError classifies an underlying failure.
func WrapPipelineError(code ErrorCode, message string, err error) *PipelineError {
	return &PipelineError{Code: code, Message: message, Err: err}
}

// CodeOf extracts the pipeline error code from err, or "" when err is
// not a classified pipeline failure.
func CodeOf(err error) ErrorCode {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsCode reports whether err carries the given pipeline error code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
