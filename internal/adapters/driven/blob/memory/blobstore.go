// Package memory provides an in-memory blob store for tests and
// setups without object storage.
package memory

import (
	"context"
	"sync"

	"github.com/veritas-labs/docq/internal/core/ports/driven"
)

// Ensure BlobStore implements the interface.
var _ driven.BlobStore = (*BlobStore)(nil)

// BlobStore is an in-memory implementation of driven.BlobStore.
type BlobStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{files: make(map[string][]byte)}
}

// Put stores a file. Used by tests to seed state.
func (s *BlobStore) Put(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = data
}

// Exists reports whether a file is stored.
func (s *BlobStore) Exists(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[path]
	return ok
}

// DeleteFile removes a file. Removing a missing file succeeds.
func (s *BlobStore) DeleteFile(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
	return nil
}

// Ping always succeeds.
func (s *BlobStore) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (s *BlobStore) Close() error {
	return nil
}
