package driven

import (
	"context"

	"github.com/veritas-labs/docq/internal/core/domain"
)

// SearchFilter restricts a similarity search.
type SearchFilter struct {
	// OwnerID restricts results to documents owned by this user.
	OwnerID string

	// DocumentID restricts results to a single document when set.
	DocumentID string
}

// SearchQuery describes one similarity search.
type SearchQuery struct {
	// Vector is the query embedding.
	Vector []float32

	// TopK is the maximum number of hits to return.
	TopK int

	// MinScore is the similarity floor; hits below it are discarded.
	MinScore float64

	// Filter scopes the search.
	Filter SearchFilter
}

// SearchHit is one similarity match. Content is included so callers
// need no second lookup.
type SearchHit struct {
	ChunkID    string
	DocumentID string
	Index      int
	Content    string
	Score      float64
}

// VectorStore persists chunk vectors with their text and performs
// cosine similarity search over them.
//
// Search failures must surface as VECTOR_SEARCH_ERROR pipeline
// errors, never as an empty result set.
type VectorStore interface {
	// Upsert writes one record, idempotently by chunk id.
	// Concurrent upserts to the same id are last-write-wins.
	Upsert(ctx context.Context, rec domain.VectorRecord) error

	// UpsertBatch writes records in one logical operation.
	UpsertBatch(ctx context.Context, recs []domain.VectorRecord) error

	// Search returns the best hits for the query, ordered by
	// similarity descending, after over-fetching and applying the
	// MinScore threshold.
	Search(ctx context.Context, q SearchQuery) ([]SearchHit, error)

	// ChunkIDs returns all chunk ids stored for a document.
	ChunkIDs(ctx context.Context, documentID string) ([]string, error)

	// Delete removes one vector record.
	Delete(ctx context.Context, chunkID string) error

	// DeleteBatch removes vector records. Callers wrap this in
	// bounded retry during multi-store deletion.
	DeleteBatch(ctx context.Context, chunkIDs []string) error

	// Close releases resources.
	Close() error
}
