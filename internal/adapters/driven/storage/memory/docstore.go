package memory

import (
	"context"
	"sync"
	"time"

	"github.com/veritas-labs/docq/internal/core/domain"
	"github.com/veritas-labs/docq/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	usage     map[string]domain.UserUsage
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		usage:     make(map[string]domain.UserUsage),
	}
}

// SaveDocument stores or updates a document. A first insert
// increments the owner's document counter.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.UpdatedAt = time.Now().UTC()

	if _, exists := s.documents[doc.ID]; !exists {
		u := s.usage[doc.OwnerID]
		u.OwnerID = doc.OwnerID
		u.DocumentCount++
		s.usage[doc.OwnerID] = u
	}
	s.documents[doc.ID] = *doc
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// UpdateStatus sets the lifecycle state and failure metadata.
func (s *DocumentStore) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, procErr *domain.ProcessingError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Status = status
	doc.Error = procErr
	doc.UpdatedAt = time.Now().UTC()
	s.documents[id] = doc
	return nil
}

// UpdateChunkStats records the chunking outcome and keeps the owner's
// chunk counter in step.
func (s *DocumentStore) UpdateChunkStats(_ context.Context, id string, count int, stats domain.ChunkStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}

	u := s.usage[doc.OwnerID]
	u.OwnerID = doc.OwnerID
	u.ChunkCount += count - doc.ChunkCount
	if u.ChunkCount < 0 {
		u.ChunkCount = 0
	}
	s.usage[doc.OwnerID] = u

	doc.ChunkCount = count
	doc.Chunking = stats
	doc.UpdatedAt = time.Now().UTC()
	s.documents[id] = doc
	return nil
}

// DeleteDocument removes the document and decrements usage counters.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}

	u := s.usage[doc.OwnerID]
	u.DocumentCount--
	if u.DocumentCount < 0 {
		u.DocumentCount = 0
	}
	u.ChunkCount -= doc.ChunkCount
	if u.ChunkCount < 0 {
		u.ChunkCount = 0
	}
	s.usage[doc.OwnerID] = u

	delete(s.documents, id)
	return nil
}

// GetUsage returns the owner's usage counters. Unknown owners get
// zeroed counters.
func (s *DocumentStore) GetUsage(_ context.Context, ownerID string) (*domain.UserUsage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.usage[ownerID]
	if !ok {
		return &domain.UserUsage{OwnerID: ownerID}, nil
	}
	return &u, nil
}
