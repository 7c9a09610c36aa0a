package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/veritas-labs/docq/internal/core/domain"
	"github.com/veritas-labs/docq/internal/core/ports/driven"
	"github.com/veritas-labs/docq/internal/core/ports/driving"
	"github.com/veritas-labs/docq/internal/logger"
)

// Ensure Retriever implements the interface.
var _ driving.RetrievalService = (*Retriever)(nil)

// DefaultMaxQueryLength is the question ceiling in runes.
const DefaultMaxQueryLength = 1000

// Retrieval defaults.
const (
	DefaultTopK     = 5
	DefaultMinScore = 0.7
)

// QueryVectorizer validates a question and turns it into a vector,
// consulting the embedding cache before calling the provider.
type QueryVectorizer struct {
	embedder    driven.EmbeddingService
	cache       *EmbeddingCache
	maxQueryLen int
}

// NewQueryVectorizer creates a vectorizer. cache may be nil.
func NewQueryVectorizer(embedder driven.EmbeddingService, cache *EmbeddingCache) *QueryVectorizer {
	return &QueryVectorizer{
		embedder:    embedder,
		cache:       cache,
		maxQueryLen: DefaultMaxQueryLength,
	}
}

// Vectorize returns the embedding for question and whether it came
// from the cache.
//
// Validation failures (EMPTY_QUERY, QUERY_TOO_LONG, INVALID_DIMENSION)
// are deterministic and must not be retried. Provider failures are
// classified into EMBEDDING_TIMEOUT, QUOTA_EXCEEDED or
// EMBEDDING_ERROR so callers can apply per-class backoff.
func (v *QueryVectorizer) Vectorize(ctx context.Context, question string) ([]float32, bool, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, false, domain.NewPipelineError(domain.CodeEmptyQuery, "question is empty")
	}
	if utf8.RuneCountInString(question) > v.maxQueryLen {
		return nil, false, domain.NewPipelineError(domain.CodeQueryTooLong,
			fmt.Sprintf("question exceeds %d characters", v.maxQueryLen))
	}
	if v.embedder == nil {
		return nil, false, domain.ErrEmbeddingUnavailable
	}

	if v.cache != nil {
		if vec, ok := v.cache.Get(ctx, question); ok {
			logger.Debug("query vector cache hit")
			return vec, true, nil
		}
	}

	vec, err := v.embedder.Embed(ctx, question)
	if err != nil {
		return nil, false, classifyEmbedError(err)
	}
	if len(vec) != v.embedder.Dimensions() {
		return nil, false, domain.NewPipelineError(domain.CodeInvalidDimension,
			fmt.Sprintf("provider returned %d dimensions, expected %d", len(vec), v.embedder.Dimensions()))
	}

	if v.cache != nil {
		v.cache.Set(ctx, question, vec)
	}

	return vec, false, nil
}

// classifyEmbedError maps a provider failure onto the retryable error
// taxonomy.
func classifyEmbedError(err error) error {
	var netErr net.Error

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.WrapPipelineError(domain.CodeEmbeddingTimeout, "embedding call timed out", err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return domain.WrapPipelineError(domain.CodeEmbeddingTimeout, "embedding call timed out", err)
	case errors.Is(err, domain.ErrRateLimited):
		return domain.WrapPipelineError(domain.CodeQuotaExceeded, "embedding quota exceeded", err)
	default:
		return domain.WrapPipelineError(domain.CodeEmbeddingError, "embedding call failed", err)
	}
}

// Retriever orchestrates question vectorization and similarity search
// into a ranked, scored result set.
type Retriever struct {
	vectorizer *QueryVectorizer
	vectors    driven.VectorStore
}

// NewRetriever creates a retrieval service.
func NewRetriever(vectorizer *QueryVectorizer, vectors driven.VectorStore) *Retriever {
	return &Retriever{vectorizer: vectorizer, vectors: vectors}
}

// Retrieve implements driving.RetrievalService. Vectorizer and store
// error kinds are propagated unchanged so callers can handle each
// class directly.
func (r *Retriever) Retrieve(
	ctx context.Context, documentID, question string, opts domain.RetrievalOptions,
) (*domain.RetrievalResult, error) {
	logger.Section("Retrieval")
	start := time.Now()

	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.MinScore <= 0 {
		opts.MinScore = DefaultMinScore
	}

	vec, cacheHit, err := r.vectorizer.Vectorize(ctx, question)
	if err != nil {
		return nil, err
	}

	hits, err := r.vectors.Search(ctx, driven.SearchQuery{
		Vector:   vec,
		TopK:     opts.TopK,
		MinScore: opts.MinScore,
		Filter: driven.SearchFilter{
			OwnerID:    opts.OwnerID,
			DocumentID: documentID,
		},
	})
	if err != nil {
		return nil, err
	}

	// opts.Rerank is accepted but currently a no-op; candidates are
	// already ordered by similarity.

	chunks := make([]domain.ScoredChunk, len(hits))
	for i, h := range hits {
		chunks[i] = domain.ScoredChunk{
			ChunkID:    h.ChunkID,
			DocumentID: h.DocumentID,
			Index:      h.Index,
			Content:    h.Content,
			Score:      h.Score,
		}
	}

	elapsed := time.Since(start)
	logger.Info("retrieved %d chunks in %s (cache hit: %t)", len(chunks), elapsed, cacheHit)

	return &domain.RetrievalResult{
		Query:      strings.TrimSpace(question),
		DocumentID: documentID,
		Chunks:     chunks,
		CacheHit:   cacheHit,
		Elapsed:    elapsed,
	}, nil
}
