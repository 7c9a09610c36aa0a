package domain

// Chunk is a bounded slice of a document's text, the unit of
// embedding and retrieval. Indexes are 0-based and contiguous per
// document.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the owning Document.
	DocumentID string

	// Index is the ordinal position within the document.
	Index int

	// Content is the text content of this chunk.
	Content string

	// Length is the content length in Unicode code points.
	Length int

	// Metadata contains optional page/section key-value pairs.
	Metadata map[string]any
}

// VectorRecord pairs a chunk with its embedding for storage.
// The embedding length must equal the active provider's dimension;
// a mismatch is rejected before anything is written.
type VectorRecord struct {
	// ChunkID identifies the chunk (1:1).
	ChunkID string

	// DocumentID is carried for document-scoped filtering and delete.
	DocumentID string

	// Index is the chunk's ordinal position.
	Index int

	// Content is the chunk text, stored alongside the vector so
	// search results need no extra lookup.
	Content string

	// Embedding is the fixed-length vector.
	Embedding []float32

	// Metadata contains optional chunk metadata.
	Metadata map[string]any
}
