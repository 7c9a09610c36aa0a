package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/veritas-labs/docq/internal/core/domain"
	"github.com/veritas-labs/docq/internal/core/ports/driven"
	"github.com/veritas-labs/docq/internal/core/ports/driving"
	"github.com/veritas-labs/docq/internal/logger"
)

// Ensure Deleter implements the interface.
var _ driving.DeletionService = (*Deleter)(nil)

// Deletion retry policy: an initial attempt plus three backed-off
// retries (1s, 2s, 4s).
const (
	deleteAttempts    = 4
	deleteBackoffBase = time.Second
)

// Deleter removes a document from vectors, blob storage and the
// relational store, in that order, keeping the three consistent.
//
// Vector deletion failure aborts everything: a deleted metadata row
// with surviving vectors would orphan them unreachably. A blob
// deletion failure is non-fatal: an orphaned blob is recoverable by a
// background sweep.
type Deleter struct {
	docs    driven.DocumentStore
	vectors driven.VectorStore
	blobs   driven.BlobStore

	attempts    int
	backoffBase time.Duration
}

// NewDeleter creates a deletion service. blobs may be nil when no
// blob storage is configured.
func NewDeleter(docs driven.DocumentStore, vectors driven.VectorStore, blobs driven.BlobStore) *Deleter {
	return &Deleter{
		docs:        docs,
		vectors:     vectors,
		blobs:       blobs,
		attempts:    deleteAttempts,
		backoffBase: deleteBackoffBase,
	}
}

// DeleteDocument implements driving.DeletionService. A second delete
// of the same document returns domain.ErrNotFound.
func (d *Deleter) DeleteDocument(ctx context.Context, documentID string) (*driving.DeletionReport, error) {
	logger.Section("Deletion")
	report := &driving.DeletionReport{}

	doc, err := d.docs.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	// Step 1: collect chunk ids while the metadata row still exists.
	ids, err := d.vectors.ChunkIDs(ctx, documentID)
	if err != nil {
		return report, fmt.Errorf("list chunk ids: %w", err)
	}

	// Step 2: vectors first. Exhausted retries abort the deletion
	// with the metadata row untouched, so a later retry can still
	// find the chunks.
	if len(ids) > 0 {
		err := d.withRetry(ctx, "delete vectors", func() error {
			return d.vectors.DeleteBatch(ctx, ids)
		})
		if err != nil {
			return report, fmt.Errorf("delete vectors for %s: %w", documentID, err)
		}
	}
	report.Vectors = true

	// Step 3: blob, non-fatal.
	report.Storage = true
	if d.blobs != nil && doc.StoragePath != "" {
		err := d.withRetry(ctx, "delete blob", func() error {
			return d.blobs.DeleteFile(ctx, doc.StoragePath)
		})
		if err != nil {
			report.Storage = false
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("document deleted, but storage cleanup pending for %s", doc.StoragePath))
			logger.Warn("blob deletion for %s failed after retries: %v", documentID, err)
		}
	}

	// Step 4: metadata row + usage counters, transactionally. If this
	// fails the vectors are already gone, but the row survives so the
	// whole deletion can be retried.
	if err := d.docs.DeleteDocument(ctx, documentID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// A concurrent delete removed the row first; the stores
			// are already clean.
			return nil, domain.ErrNotFound
		}
		return report, fmt.Errorf("delete metadata for %s: %w", documentID, err)
	}
	report.Database = true

	logger.Info("document %s deleted (storage cleaned: %t)", documentID, report.Storage)
	return report, nil
}

// withRetry runs fn up to d.attempts times with exponential backoff
// (base, 2×base, 4×base). It never blocks past ctx cancellation.
func (d *Deleter) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < d.attempts; attempt++ {
		if attempt > 0 {
			backoff := d.backoffBase << (attempt - 1)
			logger.Debug("%s: retry %d/%d after %s", op, attempt, d.attempts-1, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}
		logger.Warn("%s attempt %d failed: %v", op, attempt+1, lastErr)
	}

	return lastErr
}
