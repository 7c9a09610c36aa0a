package services

import (
	"context"
	"sync"
	"time"

	"github.com/veritas-labs/docq/internal/core/domain"
	"github.com/veritas-labs/docq/internal/core/ports/driven"
)

// --- Mock implementations shared across service tests ---

// mockEmbedder implements driven.EmbeddingService.
type mockEmbedder struct {
	mu         sync.Mutex
	dims       int
	embedErr   error
	batchErr   error
	embedCalls int
	batchCalls int

	// vectorFor overrides the produced vector per text when set.
	vectorFor map[string][]float32
	// shortFor returns a wrong-length vector for these texts.
	shortFor map[string]bool
}

func newMockEmbedder(dims int) *mockEmbedder {
	return &mockEmbedder{dims: dims}
}

func (m *mockEmbedder) vector(text string) []float32 {
	if v, ok := m.vectorFor[text]; ok {
		return v
	}
	n := m.dims
	if m.shortFor[text] {
		n = m.dims / 2
	}
	vec := make([]float32, n)
	for i := range vec {
		vec[i] = float32(len(text)%7) + float32(i)
	}
	return vec
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedCalls++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.vector(text), nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vector(t)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int              { return m.dims }
func (m *mockEmbedder) ModelName() string            { return "mock-embed" }
func (m *mockEmbedder) Ping(_ context.Context) error { return nil }
func (m *mockEmbedder) Close() error                 { return nil }

func (m *mockEmbedder) calls() (embed, batch int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedCalls, m.batchCalls
}

// mockVectorStore implements driven.VectorStore with an in-memory map.
type mockVectorStore struct {
	mu      sync.Mutex
	records map[string]domain.VectorRecord

	hits            []driven.SearchHit
	searchErr       error
	upsertErr       error
	deleteErr       error
	deleteFailFirst int
	chunkIDsErr     error

	searchCalls  int
	deleteCalls  int
	lastQuery    driven.SearchQuery
	deletedBatch []string
}

func newMockVectorStore() *mockVectorStore {
	return &mockVectorStore{records: make(map[string]domain.VectorRecord)}
}

func (m *mockVectorStore) Upsert(_ context.Context, rec domain.VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.records[rec.ChunkID] = rec
	return nil
}

func (m *mockVectorStore) UpsertBatch(_ context.Context, recs []domain.VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	for _, r := range recs {
		m.records[r.ChunkID] = r
	}
	return nil
}

func (m *mockVectorStore) Search(_ context.Context, q driven.SearchQuery) ([]driven.SearchHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls++
	m.lastQuery = q
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.hits, nil
}

func (m *mockVectorStore) ChunkIDs(_ context.Context, documentID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chunkIDsErr != nil {
		return nil, m.chunkIDsErr
	}
	var ids []string
	for id, rec := range m.records {
		if rec.DocumentID == documentID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *mockVectorStore) Delete(_ context.Context, chunkID string) error {
	return m.DeleteBatch(context.Background(), []string{chunkID})
}

func (m *mockVectorStore) DeleteBatch(_ context.Context, chunkIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	if m.deleteErr != nil && (m.deleteFailFirst == 0 || m.deleteCalls <= m.deleteFailFirst) {
		return m.deleteErr
	}
	m.deletedBatch = chunkIDs
	for _, id := range chunkIDs {
		delete(m.records, id)
	}
	return nil
}

func (m *mockVectorStore) Close() error { return nil }

func (m *mockVectorStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// indexCounts reports how many stored rows carry each chunk index for
// a document.
func (m *mockVectorStore) indexCounts(documentID string) map[int]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[int]int)
	for _, rec := range m.records {
		if rec.DocumentID == documentID {
			counts[rec.Index]++
		}
	}
	return counts
}

// mockDocStore implements driven.DocumentStore.
type mockDocStore struct {
	mu   sync.Mutex
	docs map[string]*domain.Document

	updateStatusErr error
	deleteErr       error
	deleteCalls     int
}

func newMockDocStore(docs ...*domain.Document) *mockDocStore {
	s := &mockDocStore{docs: make(map[string]*domain.Document)}
	for _, d := range docs {
		cp := *d
		s.docs[d.ID] = &cp
	}
	return s
}

func (m *mockDocStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *mockDocStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *mockDocStore) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, procErr *domain.ProcessingError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateStatusErr != nil {
		return m.updateStatusErr
	}
	doc, ok := m.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Status = status
	doc.Error = procErr
	doc.UpdatedAt = time.Now()
	return nil
}

func (m *mockDocStore) UpdateChunkStats(_ context.Context, id string, count int, stats domain.ChunkStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.ChunkCount = count
	doc.Chunking = stats
	return nil
}

func (m *mockDocStore) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.docs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *mockDocStore) GetUsage(_ context.Context, ownerID string) (*domain.UserUsage, error) {
	return &domain.UserUsage{OwnerID: ownerID}, nil
}

func (m *mockDocStore) status(id string) domain.DocumentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[id].Status
}

func (m *mockDocStore) document(id string) *domain.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.docs[id]
	if doc == nil {
		return nil
	}
	cp := *doc
	return &cp
}

// mockBlobStore implements driven.BlobStore.
type mockBlobStore struct {
	mu          sync.Mutex
	deleteErr   error
	deleteCalls int
	deleted     []string
}

func (m *mockBlobStore) DeleteFile(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, path)
	return nil
}

func (m *mockBlobStore) Ping(_ context.Context) error { return nil }
func (m *mockBlobStore) Close() error                 { return nil }

// failingCacheStore implements driven.CacheStore and fails every call.
type failingCacheStore struct {
	err      error
	getCalls int
	setCalls int
}

func (f *failingCacheStore) Get(_ context.Context, _ string) ([]float32, bool, error) {
	f.getCalls++
	return nil, false, f.err
}

func (f *failingCacheStore) Set(_ context.Context, _ string, _ []float32, _ time.Duration) error {
	f.setCalls++
	return f.err
}

func (f *failingCacheStore) DeletePrefix(_ context.Context, _ string) error { return f.err }
func (f *failingCacheStore) Close() error                                   { return nil }

// recordingCacheStore implements driven.CacheStore in memory and
// records the keys it saw.
type recordingCacheStore struct {
	mu   sync.Mutex
	data map[string][]float32
	keys []string
}

func newRecordingCacheStore() *recordingCacheStore {
	return &recordingCacheStore{data: make(map[string][]float32)}
}

func (r *recordingCacheStore) Get(_ context.Context, key string) ([]float32, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vec, ok := r.data[key]
	return vec, ok, nil
}

func (r *recordingCacheStore) Set(_ context.Context, key string, vec []float32, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[key] = vec
	r.keys = append(r.keys, key)
	return nil
}

func (r *recordingCacheStore) DeletePrefix(_ context.Context, prefix string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(r.data, k)
		}
	}
	return nil
}

func (r *recordingCacheStore) Close() error { return nil }
