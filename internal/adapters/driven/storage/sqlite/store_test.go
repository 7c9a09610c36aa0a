package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/docq/internal/core/domain"
	"github.com/veritas-labs/docq/internal/core/ports/driven"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testDocument(id, owner string) *domain.Document {
	return &domain.Document{
		ID:      id,
		OwnerID: owner,
		Title:   "Quarterly report",
		Status:  domain.StatusPending,
		Content: "Revenue grew in the third quarter.",
	}
}

func TestSaveAndGetDocument(t *testing.T) {
	store := newTestStore(t)
	docs := store.Documents()
	ctx := context.Background()

	doc := testDocument("doc-1", "user-1")
	doc.StoragePath = "uploads/user-1/doc-1.pdf"
	require.NoError(t, docs.SaveDocument(ctx, doc))

	got, err := docs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.OwnerID)
	assert.Equal(t, "Quarterly report", got.Title)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, "uploads/user-1/doc-1.pdf", got.StoragePath)
	assert.Nil(t, got.Error)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetDocumentNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Documents().GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSaveDocumentUpsert(t *testing.T) {
	store := newTestStore(t)
	docs := store.Documents()
	ctx := context.Background()

	doc := testDocument("doc-1", "user-1")
	require.NoError(t, docs.SaveDocument(ctx, doc))

	doc.Title = "Revised title"
	doc.Status = domain.StatusReady
	require.NoError(t, docs.SaveDocument(ctx, doc))

	got, err := docs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Revised title", got.Title)
	assert.Equal(t, domain.StatusReady, got.Status)

	// Re-saving must not double-count the document.
	usage, err := docs.GetUsage(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, usage.DocumentCount)
}

func TestUpdateStatusWithError(t *testing.T) {
	store := newTestStore(t)
	docs := store.Documents()
	ctx := context.Background()

	require.NoError(t, docs.SaveDocument(ctx, testDocument("doc-1", "user-1")))

	procErr := &domain.ProcessingError{
		Type:      domain.CodeEmptyContent,
		Message:   "document content is empty",
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, docs.UpdateStatus(ctx, "doc-1", domain.StatusFailed, procErr))

	got, err := docs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, domain.CodeEmptyContent, got.Error.Type)
	assert.Equal(t, "document content is empty", got.Error.Message)
}

func TestUpdateStatusClearsError(t *testing.T) {
	store := newTestStore(t)
	docs := store.Documents()
	ctx := context.Background()

	doc := testDocument("doc-1", "user-1")
	doc.Status = domain.StatusFailed
	doc.Error = &domain.ProcessingError{Type: domain.CodeEmbeddingError, Message: "provider down", Timestamp: time.Now()}
	require.NoError(t, docs.SaveDocument(ctx, doc))

	require.NoError(t, docs.UpdateStatus(ctx, "doc-1", domain.StatusReady, nil))

	got, err := docs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, got.Status)
	assert.Nil(t, got.Error)
}

func TestUpdateStatusNotFound(t *testing.T) {
	store := newTestStore(t)

	err := store.Documents().UpdateStatus(context.Background(), "missing", domain.StatusReady, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateChunkStatsTracksUsage(t *testing.T) {
	store := newTestStore(t)
	docs := store.Documents()
	ctx := context.Background()

	require.NoError(t, docs.SaveDocument(ctx, testDocument("doc-1", "user-1")))
	require.NoError(t, docs.UpdateChunkStats(ctx, "doc-1", 12, domain.ChunkStats{
		OriginalCount: 12,
		StoredCount:   12,
	}))

	got, err := docs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 12, got.ChunkCount)
	assert.Equal(t, 12, got.Chunking.StoredCount)

	usage, err := docs.GetUsage(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 12, usage.ChunkCount)

	// Re-chunking replaces the old count instead of accumulating.
	require.NoError(t, docs.UpdateChunkStats(ctx, "doc-1", 5, domain.ChunkStats{
		OriginalCount: 5,
		StoredCount:   5,
	}))
	usage, err = docs.GetUsage(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 5, usage.ChunkCount)
}

func TestDeleteDocumentDecrementsUsage(t *testing.T) {
	store := newTestStore(t)
	docs := store.Documents()
	ctx := context.Background()

	require.NoError(t, docs.SaveDocument(ctx, testDocument("doc-1", "user-1")))
	require.NoError(t, docs.UpdateChunkStats(ctx, "doc-1", 3, domain.ChunkStats{OriginalCount: 3, StoredCount: 3}))

	require.NoError(t, docs.DeleteDocument(ctx, "doc-1"))

	_, err := docs.GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	usage, err := docs.GetUsage(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, usage.DocumentCount)
	assert.Equal(t, 0, usage.ChunkCount)

	assert.ErrorIs(t, docs.DeleteDocument(ctx, "doc-1"), domain.ErrNotFound)
}

func TestGetUsageUnknownOwner(t *testing.T) {
	store := newTestStore(t)

	usage, err := store.Documents().GetUsage(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, usage.DocumentCount)
	assert.Equal(t, 0, usage.ChunkCount)
}

func seedVectors(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()
	docs := store.Documents()
	require.NoError(t, docs.SaveDocument(ctx, testDocument("doc-1", "user-1")))
	require.NoError(t, docs.SaveDocument(ctx, testDocument("doc-2", "user-2")))

	require.NoError(t, store.Vectors().UpsertBatch(ctx, []domain.VectorRecord{
		{ChunkID: "c-1", DocumentID: "doc-1", Index: 0, Content: "alpha", Embedding: []float32{1, 0, 0}},
		{ChunkID: "c-2", DocumentID: "doc-1", Index: 1, Content: "beta", Embedding: []float32{0.9, 0.1, 0}},
		{ChunkID: "c-3", DocumentID: "doc-2", Index: 0, Content: "gamma", Embedding: []float32{0, 1, 0}},
	}))
}

func TestSearchOrdersByScore(t *testing.T) {
	store := newTestStore(t)
	seedVectors(t, store)

	hits, err := store.Vectors().Search(context.Background(), driven.SearchQuery{
		Vector: []float32{1, 0, 0},
		TopK:   10,
	})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "c-1", hits[0].ChunkID)
	assert.Equal(t, "c-2", hits[1].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestSearchAppliesThresholdAndTopK(t *testing.T) {
	store := newTestStore(t)
	seedVectors(t, store)

	hits, err := store.Vectors().Search(context.Background(), driven.SearchQuery{
		Vector:   []float32{1, 0, 0},
		TopK:     1,
		MinScore: 0.5,
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c-1", hits[0].ChunkID)
}

func TestSearchFiltersByOwnerAndDocument(t *testing.T) {
	store := newTestStore(t)
	seedVectors(t, store)
	ctx := context.Background()

	hits, err := store.Vectors().Search(ctx, driven.SearchQuery{
		Vector: []float32{1, 0, 0},
		TopK:   10,
		Filter: driven.SearchFilter{OwnerID: "user-2"},
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c-3", hits[0].ChunkID)

	hits, err = store.Vectors().Search(ctx, driven.SearchQuery{
		Vector: []float32{1, 0, 0},
		TopK:   10,
		Filter: driven.SearchFilter{DocumentID: "doc-1"},
	})
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestUpsertIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	seedVectors(t, store)
	ctx := context.Background()

	require.NoError(t, store.Vectors().Upsert(ctx, domain.VectorRecord{
		ChunkID: "c-1", DocumentID: "doc-1", Index: 0, Content: "alpha revised", Embedding: []float32{0, 0, 1},
	}))

	ids, err := store.Vectors().ChunkIDs(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	hits, err := store.Vectors().Search(ctx, driven.SearchQuery{Vector: []float32{0, 0, 1}, TopK: 1})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "alpha revised", hits[0].Content)
}

func TestChunkIDsAndDeleteBatch(t *testing.T) {
	store := newTestStore(t)
	seedVectors(t, store)
	ctx := context.Background()

	ids, err := store.Vectors().ChunkIDs(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c-1", "c-2"}, ids)

	require.NoError(t, store.Vectors().DeleteBatch(ctx, ids))

	ids, err = store.Vectors().ChunkIDs(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, ids)

	// Deleting nothing is fine.
	require.NoError(t, store.Vectors().DeleteBatch(ctx, nil))
}

func TestEmbeddingRoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 3.14159, 0}
	out := bytesToFloat32Slice(float32SliceToBytes(in))
	assert.Equal(t, in, out)
}
