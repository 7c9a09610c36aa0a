package driving

import (
	"context"

	"github.com/veritas-labs/docq/internal/core/domain"
)

// RetrievalService answers "which chunks are relevant to this
// question" with a ranked, scored result set.
type RetrievalService interface {
	// Retrieve vectorizes the question (cache first) and searches
	// the vector store, scoped to documentID when non-empty.
	// QueryVectorizer and VectorStore error kinds pass through
	// unchanged so callers can apply per-class handling.
	Retrieve(ctx context.Context, documentID, question string, opts domain.RetrievalOptions) (*domain.RetrievalResult, error)
}
