package driven

import (
	"context"

	"github.com/veritas-labs/docq/internal/core/domain"
)

// DocumentStore persists document metadata rows and per-owner usage
// counters in the relational store. Chunk rows live in the
// VectorStore side of the same database.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by id.
	// Returns domain.ErrNotFound when it does not exist.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// UpdateStatus sets the lifecycle state. procErr carries the
	// structured failure metadata when status is FAILED, nil
	// otherwise.
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, procErr *domain.ProcessingError) error

	// UpdateChunkStats records chunk count and truncation metadata
	// after chunking.
	UpdateChunkStats(ctx context.Context, id string, count int, stats domain.ChunkStats) error

	// DeleteDocument removes the metadata row and decrements the
	// owner's usage counters in a single transaction.
	// Returns domain.ErrNotFound when the document does not exist.
	DeleteDocument(ctx context.Context, id string) error

	// GetUsage returns the owner's usage counters.
	GetUsage(ctx context.Context, ownerID string) (*domain.UserUsage, error)
}
