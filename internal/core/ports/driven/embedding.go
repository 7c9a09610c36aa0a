package driven

import "context"

// EmbeddingService generates vector embeddings from text.
// Exactly one provider is active per deployment, selected from
// configuration at startup; the pipeline never branches on which one
// beyond validating dimensions.
//
// Implementations:
//   - OpenAI (text-embedding-3-small, 1536 dims)
//   - DashScope (text-embedding-v3, 1024 dims)
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call.
	// The result is index-aligned with the input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g. 1024, 1536).
	// Every stored vector must have exactly this length.
	Dimensions() int

	// ModelName returns the provider/model identifier. It scopes
	// cache keys so vectors from different providers never collide.
	ModelName() string

	// Ping validates the service is reachable with a lightweight
	// request, without running inference.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
