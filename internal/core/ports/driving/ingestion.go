package driving

import (
	"context"

	"github.com/veritas-labs/docq/internal/core/domain"
)

// IngestionService turns parsed document text into stored vector
// chunks.
type IngestionService interface {
	// ChunkDocument splits the document's parsed content into
	// ordered chunks. Fails with EMPTY_CONTENT (terminal, document
	// marked FAILED) on blank content and with CONFLICT when the
	// document is already being processed.
	ChunkDocument(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// EmbedAndStoreChunks embeds the chunks in batches, validates
	// every vector's dimension and upserts them. On success the
	// document becomes READY; on terminal failure FAILED with
	// structured error metadata.
	EmbedAndStoreChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error

	// ProcessDocument runs ChunkDocument then EmbedAndStoreChunks.
	ProcessDocument(ctx context.Context, documentID string) error
}
