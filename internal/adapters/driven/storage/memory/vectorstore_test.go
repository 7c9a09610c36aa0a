package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/docq/internal/core/domain"
	"github.com/veritas-labs/docq/internal/core/ports/driven"
)

func seedRecords(t *testing.T, store *VectorStore) {
	t.Helper()
	require.NoError(t, store.UpsertBatch(context.Background(), []domain.VectorRecord{
		{ChunkID: "c-1", DocumentID: "doc-1", Index: 0, Content: "alpha", Embedding: []float32{1, 0, 0}},
		{ChunkID: "c-2", DocumentID: "doc-1", Index: 1, Content: "beta", Embedding: []float32{0.8, 0.2, 0}},
		{ChunkID: "c-3", DocumentID: "doc-2", Index: 0, Content: "gamma", Embedding: []float32{0, 1, 0}},
	}))
	store.SetOwner("doc-1", "user-1")
	store.SetOwner("doc-2", "user-2")
}

func TestSearchRanksAndTrims(t *testing.T) {
	store := NewVectorStore()
	seedRecords(t, store)

	hits, err := store.Search(context.Background(), driven.SearchQuery{
		Vector:   []float32{1, 0, 0},
		TopK:     2,
		MinScore: 0.1,
	})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "c-1", hits[0].ChunkID)
	assert.Equal(t, "c-2", hits[1].ChunkID)
}

func TestSearchFilters(t *testing.T) {
	store := NewVectorStore()
	seedRecords(t, store)
	ctx := context.Background()

	hits, err := store.Search(ctx, driven.SearchQuery{
		Vector: []float32{1, 0, 0},
		TopK:   10,
		Filter: driven.SearchFilter{DocumentID: "doc-2"},
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c-3", hits[0].ChunkID)

	hits, err = store.Search(ctx, driven.SearchQuery{
		Vector: []float32{1, 0, 0},
		TopK:   10,
		Filter: driven.SearchFilter{OwnerID: "user-1"},
	})
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSearchSkipsMismatchedDimensions(t *testing.T) {
	store := NewVectorStore()
	require.NoError(t, store.Upsert(context.Background(), domain.VectorRecord{
		ChunkID: "c-1", DocumentID: "doc-1", Embedding: []float32{1, 0},
	}))

	hits, err := store.Search(context.Background(), driven.SearchQuery{
		Vector: []float32{1, 0, 0},
		TopK:   10,
	})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestChunkIDsOrderedByIndex(t *testing.T) {
	store := NewVectorStore()
	seedRecords(t, store)

	ids, err := store.ChunkIDs(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c-1", "c-2"}, ids)
}

func TestDeleteBatchIgnoresUnknown(t *testing.T) {
	store := NewVectorStore()
	seedRecords(t, store)
	ctx := context.Background()

	require.NoError(t, store.DeleteBatch(ctx, []string{"c-1", "c-2", "nope"}))
	assert.Equal(t, 1, store.Len())

	ids, err := store.ChunkIDs(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, ids)
}
