package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/veritas-labs/docq/internal/chunker"
	"github.com/veritas-labs/docq/internal/core/domain"
	"github.com/veritas-labs/docq/internal/core/ports/driven"
	"github.com/veritas-labs/docq/internal/core/ports/driving"
	"github.com/veritas-labs/docq/internal/logger"
)

// Ensure Ingestor implements the interface.
var _ driving.IngestionService = (*Ingestor)(nil)

// DefaultEmbedBatchSize is how many chunks go into one provider call.
const DefaultEmbedBatchSize = 32

// DefaultEmbedConcurrency is how many provider batch calls run at once.
const DefaultEmbedConcurrency = 4

// Ingestor turns parsed document text into stored vector chunks. The
// document's status field acts as the pipeline lock: a document
// already PARSING or EMBEDDING rejects a concurrent request with
// CONFLICT.
type Ingestor struct {
	docs     driven.DocumentStore
	vectors  driven.VectorStore
	embedder driven.EmbeddingService
	splitter *chunker.Splitter

	limiter     *rate.Limiter
	batchSize   int
	concurrency int
}

// IngestorOption configures the ingestor.
type IngestorOption func(*Ingestor)

// WithSplitter overrides the default chunker.
func WithSplitter(s *chunker.Splitter) IngestorOption {
	return func(i *Ingestor) { i.splitter = s }
}

// WithBatchSize sets chunks per provider call.
func WithBatchSize(n int) IngestorOption {
	return func(i *Ingestor) {
		if n > 0 {
			i.batchSize = n
		}
	}
}

// WithEmbedConcurrency sets how many batch calls run concurrently.
func WithEmbedConcurrency(n int) IngestorOption {
	return func(i *Ingestor) {
		if n > 0 {
			i.concurrency = n
		}
	}
}

// WithProviderRateLimit paces provider calls to at most rps requests
// per second.
func WithProviderRateLimit(rps float64) IngestorOption {
	return func(i *Ingestor) {
		if rps > 0 {
			i.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// NewIngestor creates an ingestion service.
func NewIngestor(
	docs driven.DocumentStore,
	vectors driven.VectorStore,
	embedder driven.EmbeddingService,
	opts ...IngestorOption,
) *Ingestor {
	ing := &Ingestor{
		docs:        docs,
		vectors:     vectors,
		embedder:    embedder,
		splitter:    chunker.New(),
		batchSize:   DefaultEmbedBatchSize,
		concurrency: DefaultEmbedConcurrency,
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// ChunkDocument implements driving.IngestionService. Empty content is
// a terminal failure: the document is marked FAILED with
// EMPTY_CONTENT metadata and the error is not retryable.
func (ing *Ingestor) ChunkDocument(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	logger.Section("Chunking")

	doc, err := ing.docs.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if doc.Status.Processing() {
		return nil, domain.NewPipelineError(domain.CodeConflict,
			fmt.Sprintf("document %s is already %s", documentID, doc.Status))
	}

	res, err := ing.splitter.Split(doc.ID, doc.Content)
	if err != nil {
		ing.markFailed(ctx, documentID, err)
		return nil, err
	}

	if res.Stats.Truncated {
		logger.Warn("document %s truncated: %d of %d chunks kept",
			documentID, res.Stats.StoredCount, res.Stats.OriginalCount)
	}
	logger.Info("document %s split into %d chunks", documentID, len(res.Chunks))

	if err := ing.docs.UpdateChunkStats(ctx, documentID, res.Stats.StoredCount, res.Stats); err != nil {
		return nil, fmt.Errorf("record chunk stats: %w", err)
	}

	return res.Chunks, nil
}

// EmbedAndStoreChunks implements driving.IngestionService. Batches
// run concurrently; each batch is validated in full before anything
// from it is stored, so a DIMENSION_MISMATCH batch leaves zero rows.
func (ing *Ingestor) EmbedAndStoreChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	logger.Section("Embedding")

	if ing.embedder == nil {
		return domain.ErrEmbeddingUnavailable
	}

	doc, err := ing.docs.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc.Status.Processing() {
		return domain.NewPipelineError(domain.CodeConflict,
			fmt.Sprintf("document %s is already %s", documentID, doc.Status))
	}

	// A reprocess replaces the previous run wholesale. Stale rows
	// carry their own chunk ids, so an upsert alone would leave two
	// generations of chunks with colliding indexes.
	if err := ing.clearStoredChunks(ctx, documentID); err != nil {
		ing.markFailed(ctx, documentID, err)
		return err
	}

	if len(chunks) == 0 {
		return ing.docs.UpdateStatus(ctx, documentID, domain.StatusReady, nil)
	}

	if err := ing.docs.UpdateStatus(ctx, documentID, domain.StatusEmbedding, nil); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	if err := ing.embedBatches(ctx, chunks); err != nil {
		ing.markFailed(ctx, documentID, err)
		return err
	}

	if err := ing.docs.UpdateStatus(ctx, documentID, domain.StatusReady, nil); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	logger.Info("document %s embedded: %d chunks stored", documentID, len(chunks))
	return nil
}

// ProcessDocument implements driving.IngestionService.
func (ing *Ingestor) ProcessDocument(ctx context.Context, documentID string) error {
	chunks, err := ing.ChunkDocument(ctx, documentID)
	if err != nil {
		return err
	}
	return ing.EmbedAndStoreChunks(ctx, documentID, chunks)
}

// clearStoredChunks removes a document's existing chunk rows ahead of
// a new embedding run.
func (ing *Ingestor) clearStoredChunks(ctx context.Context, documentID string) error {
	ids, err := ing.vectors.ChunkIDs(ctx, documentID)
	if err != nil {
		return fmt.Errorf("list stored chunks: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	logger.Debug("document %s: replacing %d stored chunks", documentID, len(ids))
	if err := ing.vectors.DeleteBatch(ctx, ids); err != nil {
		return fmt.Errorf("clear stored chunks: %w", err)
	}
	return nil
}

// embedBatches fans the chunks out over concurrent provider batch
// calls. Each chunk belongs to exactly one batch, so no two batches
// ever write the same chunk id.
func (ing *Ingestor) embedBatches(ctx context.Context, chunks []domain.Chunk) error {
	dims := ing.embedder.Dimensions()

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(ing.concurrency)

	for start := 0; start < len(chunks); start += ing.batchSize {
		end := start + ing.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		eg.Go(func() error {
			if ing.limiter != nil {
				if err := ing.limiter.Wait(gctx); err != nil {
					return err
				}
			}

			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Content
			}

			vecs, err := ing.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return classifyEmbedError(err)
			}
			if len(vecs) != len(batch) {
				return domain.NewPipelineError(domain.CodeEmbeddingError,
					fmt.Sprintf("provider returned %d vectors for %d inputs", len(vecs), len(batch)))
			}

			// Validate the whole batch before storing any of it.
			for i, vec := range vecs {
				if len(vec) != dims {
					return domain.NewPipelineError(domain.CodeDimensionMismatch,
						fmt.Sprintf("chunk %d: vector has %d dimensions, expected %d", batch[i].Index, len(vec), dims))
				}
			}

			recs := make([]domain.VectorRecord, len(batch))
			for i, c := range batch {
				recs[i] = domain.VectorRecord{
					ChunkID:    c.ID,
					DocumentID: c.DocumentID,
					Index:      c.Index,
					Content:    c.Content,
					Embedding:  vecs[i],
					Metadata:   c.Metadata,
				}
			}

			if err := ing.vectors.UpsertBatch(gctx, recs); err != nil {
				return fmt.Errorf("upsert batch: %w", err)
			}
			return nil
		})
	}

	return eg.Wait()
}

// markFailed records a terminal failure with structured metadata.
// The original error, not the bookkeeping, is what callers see.
func (ing *Ingestor) markFailed(ctx context.Context, documentID string, cause error) {
	code := domain.CodeOf(cause)
	if code == "" {
		code = domain.CodeEmbeddingError
	}

	procErr := &domain.ProcessingError{
		Type:      code,
		Message:   cause.Error(),
		Timestamp: time.Now().UTC(),
	}
	if err := ing.docs.UpdateStatus(ctx, documentID, domain.StatusFailed, procErr); err != nil {
		logger.Error("mark document %s failed: %v", documentID, err)
	}
}
