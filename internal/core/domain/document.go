package domain

import "time"

// DocumentStatus tracks a document through the ingestion pipeline.
type DocumentStatus string

// Document lifecycle states. Transitions are one-directional
// (PENDING → PARSING → EMBEDDING → READY/FAILED) except that a
// reprocess may move READY or FAILED back to EMBEDDING.
const (
	StatusPending   DocumentStatus = "PENDING"
	StatusParsing   DocumentStatus = "PARSING"
	StatusEmbedding DocumentStatus = "EMBEDDING"
	StatusReady     DocumentStatus = "READY"
	StatusFailed    DocumentStatus = "FAILED"
)

// Processing reports whether a document currently holds the pipeline
// lock. A document in one of these states rejects a concurrent
// processing request with ErrConflict.
func (s DocumentStatus) Processing() bool {
	return s == StatusParsing || s == StatusEmbedding
}

// ProcessingError is the structured failure metadata recorded on a
// document when ingestion fails terminally. It is what the UI shows,
// never a stack trace.
type ProcessingError struct {
	// Type is the pipeline error code (e.g. EMPTY_CONTENT).
	Type ErrorCode

	// Message is a human-readable description.
	Message string

	// Timestamp is when the failure was recorded.
	Timestamp time.Time
}

// ChunkStats records the outcome of chunking, including the
// truncation bookkeeping when the chunk ceiling was hit.
type ChunkStats struct {
	// Truncated is true when chunks beyond the ceiling were dropped.
	Truncated bool

	// OriginalCount is the number of chunks the natural split produced.
	OriginalCount int

	// StoredCount is the number of chunks actually kept.
	StoredCount int
}

// Document represents an uploaded document and its pipeline state.
// Raw content is owned by the external parser once parsed; this core
// only reads it.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// OwnerID identifies the user the document belongs to.
	// Retrieval and deletion are always scoped by owner.
	OwnerID string

	// Title is the human-readable title.
	Title string

	// Status is the current lifecycle state.
	Status DocumentStatus

	// Content is the parsed plain text. Empty until the parser ran.
	Content string

	// StoragePath is the blob object key of the original upload.
	StoragePath string

	// ChunkCount is the number of chunks stored for this document.
	ChunkCount int

	// Chunking holds truncation metadata from the last chunking run.
	Chunking ChunkStats

	// Error holds structured failure metadata when Status is FAILED.
	Error *ProcessingError

	// CreatedAt is when the document was uploaded.
	CreatedAt time.Time

	// UpdatedAt is when the document was last updated.
	UpdatedAt time.Time
}

// UserUsage tracks per-owner resource counters, decremented when a
// document is deleted.
type UserUsage struct {
	// OwnerID identifies the user.
	OwnerID string

	// DocumentCount is the number of live documents.
	DocumentCount int

	// ChunkCount is the total number of stored chunks.
	ChunkCount int
}
