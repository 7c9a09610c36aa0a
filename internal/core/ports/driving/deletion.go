package driving

import "context"

// DeletionReport is the per-store outcome of a document deletion.
type DeletionReport struct {
	// Vectors is true when vector records were removed (or none
	// existed).
	Vectors bool

	// Storage is true when the blob was removed. False is non-fatal:
	// an orphaned blob is recoverable by a background sweep.
	Storage bool

	// Database is true when the metadata row and usage counters were
	// removed transactionally.
	Database bool

	// Warnings lists non-fatal cleanup problems, e.g. "deleted, but
	// storage cleanup pending".
	Warnings []string
}

// DeletionService removes a document from all three stores (vectors,
// blob storage, relational metadata) keeping them consistent.
type DeletionService interface {
	// DeleteDocument runs the multi-store deletion protocol.
	// Deleting an already-deleted document returns
	// domain.ErrNotFound without corrupting state.
	DeleteDocument(ctx context.Context, documentID string) (*DeletionReport, error)
}
