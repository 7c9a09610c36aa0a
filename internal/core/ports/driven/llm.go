package driven

import (
	"context"

	"github.com/veritas-labs/docq/internal/core/domain"
)

// ChatOptions configures answer generation.
type ChatOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64
}

// StreamChunk is one fragment of a streamed completion. The stream
// channel is closed after the final fragment; a fragment with Err set
// is always the last one delivered.
type StreamChunk struct {
	// Content is the text delta.
	Content string

	// Err reports a mid-stream failure.
	Err error
}

// LLMService generates answers from the prompt the pipeline builds.
// The answer stream itself is consumed by callers; this core only
// hands over the prompt.
type LLMService interface {
	// Chat runs a blocking multi-turn completion.
	Chat(ctx context.Context, messages []domain.ChatMessage, opts ChatOptions) (string, error)

	// ChatStream starts a streaming completion. Fragments arrive on
	// the returned channel until it is closed. Cancelling ctx closes
	// the underlying connection and ends the stream without leaking
	// it.
	ChatStream(ctx context.Context, messages []domain.ChatMessage, opts ChatOptions) (<-chan StreamChunk, error)

	// ModelName returns the chat model identifier.
	ModelName() string

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
