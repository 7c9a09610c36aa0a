package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/veritas-labs/docq/internal/core/domain"
	"github.com/veritas-labs/docq/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore is an in-memory implementation of driven.VectorStore
// with brute-force cosine search. Owner filtering needs a document
// store to resolve owners, so it is optional here.
type VectorStore struct {
	mu      sync.RWMutex
	records map[string]domain.VectorRecord
	owners  map[string]string // document id -> owner id
}

// NewVectorStore creates a new in-memory vector store.
func NewVectorStore() *VectorStore {
	return &VectorStore{
		records: make(map[string]domain.VectorRecord),
		owners:  make(map[string]string),
	}
}

// SetOwner registers a document's owner for filtered searches.
func (s *VectorStore) SetOwner(documentID, ownerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[documentID] = ownerID
}

// Upsert stores one record, idempotently by chunk id.
func (s *VectorStore) Upsert(_ context.Context, rec domain.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ChunkID] = rec
	return nil
}

// UpsertBatch stores all records. Last write wins per chunk id.
func (s *VectorStore) UpsertBatch(_ context.Context, recs []domain.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		s.records[rec.ChunkID] = rec
	}
	return nil
}

// Search scores every stored record against the query vector.
func (s *VectorStore) Search(_ context.Context, q driven.SearchQuery) ([]driven.SearchHit, error) {
	if q.TopK <= 0 {
		q.TopK = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []driven.SearchHit
	for _, rec := range s.records {
		if q.Filter.DocumentID != "" && rec.DocumentID != q.Filter.DocumentID {
			continue
		}
		if q.Filter.OwnerID != "" && s.owners[rec.DocumentID] != q.Filter.OwnerID {
			continue
		}
		if len(rec.Embedding) != len(q.Vector) {
			continue
		}
		score := cosineSimilarity(q.Vector, rec.Embedding)
		if score < q.MinScore {
			continue
		}
		hits = append(hits, driven.SearchHit{
			ChunkID:    rec.ChunkID,
			DocumentID: rec.DocumentID,
			Index:      rec.Index,
			Content:    rec.Content,
			Score:      score,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > q.TopK {
		hits = hits[:q.TopK]
	}
	return hits, nil
}

// ChunkIDs returns all chunk ids stored for a document, in index order.
func (s *VectorStore) ChunkIDs(_ context.Context, documentID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var recs []domain.VectorRecord
	for _, rec := range s.records {
		if rec.DocumentID == documentID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Index < recs[j].Index })

	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec.ChunkID)
	}
	return ids, nil
}

// Delete removes one record. Unknown ids are ignored.
func (s *VectorStore) Delete(_ context.Context, chunkID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, chunkID)
	return nil
}

// DeleteBatch removes records. Unknown ids are ignored.
func (s *VectorStore) DeleteBatch(_ context.Context, chunkIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range chunkIDs {
		delete(s.records, id)
	}
	return nil
}

// Close is a no-op.
func (s *VectorStore) Close() error {
	return nil
}

// Len returns the number of stored records.
func (s *VectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
