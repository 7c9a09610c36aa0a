package domain

import "time"

// RetrievalOptions tunes a retrieval request.
type RetrievalOptions struct {
	// TopK is the maximum number of chunks returned (default 5).
	TopK int

	// MinScore is the similarity floor below which results are
	// discarded (default 0.7).
	MinScore float64

	// OwnerID scopes the search to one user's documents.
	OwnerID string

	// Rerank requests a reranking pass over the candidates.
	// Currently a no-op placeholder, unused by default.
	Rerank bool
}

// ScoredChunk is one retrieved chunk with its similarity score.
type ScoredChunk struct {
	// ChunkID identifies the chunk.
	ChunkID string

	// DocumentID identifies the owning document.
	DocumentID string

	// Index is the chunk position within the document.
	Index int

	// Content is the chunk text.
	Content string

	// Score is the cosine similarity (1 - cosine distance), 0-1.
	Score float64
}

// RetrievalResult is the ranked context for one question. Ephemeral,
// never persisted.
type RetrievalResult struct {
	// Query is the original question text.
	Query string

	// DocumentID is the document the search was scoped to, if any.
	DocumentID string

	// Chunks are the matches, ordered by similarity descending.
	Chunks []ScoredChunk

	// CacheHit is true when the query vector came from the cache.
	CacheHit bool

	// Elapsed is the end-to-end retrieval time.
	Elapsed time.Duration
}

// ChatMessage is a single turn of answer-generation history.
type ChatMessage struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	// Content is the message text.
	Content string
}
