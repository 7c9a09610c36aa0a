package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/docq/internal/core/domain"
)

func newTestDeleter(docs *mockDocStore, vectors *mockVectorStore, blobs *mockBlobStore) *Deleter {
	var d *Deleter
	if blobs == nil {
		d = NewDeleter(docs, vectors, nil)
	} else {
		d = NewDeleter(docs, vectors, blobs)
	}
	// Keep retries instant in tests.
	d.backoffBase = time.Millisecond
	return d
}

func seedDeletableDocument(t *testing.T, docs *mockDocStore, vectors *mockVectorStore) {
	t.Helper()

	doc := testDocument("d1", "content")
	doc.Status = domain.StatusReady
	doc.StoragePath = "uploads/u1/d1.pdf"
	require.NoError(t, docs.SaveDocument(context.Background(), doc))

	require.NoError(t, vectors.UpsertBatch(context.Background(), []domain.VectorRecord{
		{ChunkID: "c0", DocumentID: "d1", Embedding: []float32{1}},
		{ChunkID: "c1", DocumentID: "d1", Embedding: []float32{2}},
	}))
}

func TestDeleteDocumentHappyPath(t *testing.T) {
	docs := newMockDocStore()
	vectors := newMockVectorStore()
	blobs := &mockBlobStore{}
	seedDeletableDocument(t, docs, vectors)

	d := newTestDeleter(docs, vectors, blobs)
	report, err := d.DeleteDocument(context.Background(), "d1")
	require.NoError(t, err)

	assert.True(t, report.Vectors)
	assert.True(t, report.Storage)
	assert.True(t, report.Database)
	assert.Empty(t, report.Warnings)

	assert.Zero(t, vectors.count())
	assert.Equal(t, []string{"uploads/u1/d1.pdf"}, blobs.deleted)
	_, err = docs.GetDocument(context.Background(), "d1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteDocumentTwiceReportsNotFound(t *testing.T) {
	docs := newMockDocStore()
	vectors := newMockVectorStore()
	seedDeletableDocument(t, docs, vectors)

	d := newTestDeleter(docs, vectors, &mockBlobStore{})
	_, err := d.DeleteDocument(context.Background(), "d1")
	require.NoError(t, err)

	_, err = d.DeleteDocument(context.Background(), "d1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteDocumentLosesRaceToConcurrentDelete(t *testing.T) {
	docs := newMockDocStore()
	vectors := newMockVectorStore()
	seedDeletableDocument(t, docs, vectors)

	// The metadata row disappears between the initial load and the
	// final transactional delete.
	docs.deleteErr = domain.ErrNotFound

	d := newTestDeleter(docs, vectors, &mockBlobStore{})
	report, err := d.DeleteDocument(context.Background(), "d1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, report)
}

func TestDeleteDocumentVectorFailureAborts(t *testing.T) {
	docs := newMockDocStore()
	vectors := newMockVectorStore()
	blobs := &mockBlobStore{}
	seedDeletableDocument(t, docs, vectors)
	vectors.deleteErr = errors.New("pq: connection reset")

	d := newTestDeleter(docs, vectors, blobs)
	report, err := d.DeleteDocument(context.Background(), "d1")
	require.Error(t, err)

	// Initial attempt plus three retries, then abort with
	// everything intact.
	assert.Equal(t, 4, vectors.deleteCalls)
	assert.False(t, report.Vectors)
	assert.False(t, report.Database)
	assert.Zero(t, blobs.deleteCalls, "blob deletion must not run after a vector abort")

	// Metadata row untouched so the deletion can be retried.
	_, getErr := docs.GetDocument(context.Background(), "d1")
	assert.NoError(t, getErr)
}

func TestDeleteDocumentBlobFailureIsNonFatal(t *testing.T) {
	docs := newMockDocStore()
	vectors := newMockVectorStore()
	blobs := &mockBlobStore{deleteErr: errors.New("storage unreachable")}
	seedDeletableDocument(t, docs, vectors)

	d := newTestDeleter(docs, vectors, blobs)
	report, err := d.DeleteDocument(context.Background(), "d1")
	require.NoError(t, err, "orphaned blob must not fail the deletion")

	assert.True(t, report.Vectors)
	assert.False(t, report.Storage)
	assert.True(t, report.Database)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "storage cleanup pending")
	assert.Equal(t, 4, blobs.deleteCalls)

	_, getErr := docs.GetDocument(context.Background(), "d1")
	assert.ErrorIs(t, getErr, domain.ErrNotFound)
}

func TestDeleteDocumentMetadataFailureKeepsReport(t *testing.T) {
	docs := newMockDocStore()
	vectors := newMockVectorStore()
	seedDeletableDocument(t, docs, vectors)
	docs.deleteErr = errors.New("tx aborted")

	d := newTestDeleter(docs, vectors, &mockBlobStore{})
	report, err := d.DeleteDocument(context.Background(), "d1")
	require.Error(t, err)

	// Vectors are gone but the row survives, so a retry is possible.
	assert.True(t, report.Vectors)
	assert.False(t, report.Database)
	assert.Zero(t, vectors.count())
}

func TestDeleteDocumentNoChunks(t *testing.T) {
	docs := newMockDocStore()
	vectors := newMockVectorStore()
	doc := testDocument("d1", "content")
	doc.Status = domain.StatusReady
	require.NoError(t, docs.SaveDocument(context.Background(), doc))

	d := newTestDeleter(docs, vectors, nil)
	report, err := d.DeleteDocument(context.Background(), "d1")
	require.NoError(t, err)

	assert.True(t, report.Vectors)
	assert.True(t, report.Storage)
	assert.True(t, report.Database)
	assert.Zero(t, vectors.deleteCalls, "no batch delete without chunks")
}

func TestDeleteDocumentVectorRetrySucceedsMidway(t *testing.T) {
	docs := newMockDocStore()
	vectors := newMockVectorStore()
	seedDeletableDocument(t, docs, vectors)

	// Fail the first two attempts, then succeed on the third.
	vectors.deleteErr = errors.New("transient")
	vectors.deleteFailFirst = 2
	d := newTestDeleter(docs, vectors, &mockBlobStore{})

	report, err := d.DeleteDocument(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, 3, vectors.deleteCalls)
	assert.True(t, report.Vectors)
	assert.True(t, report.Database)
}
