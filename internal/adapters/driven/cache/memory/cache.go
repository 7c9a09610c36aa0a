// Package memory provides an in-process CacheStore with TTL expiry.
// Expired entries are collected by a background janitor owned by the
// store: started on construction, stopped by Close.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/veritas-labs/docq/internal/core/ports/driven"
)

// Ensure CacheStore implements the interface.
var _ driven.CacheStore = (*CacheStore)(nil)

// DefaultSweepInterval is how often the janitor removes expired entries.
const DefaultSweepInterval = 5 * time.Minute

type entry struct {
	vec       []float32
	expiresAt time.Time
}

// CacheStore is a mutex-guarded in-memory cache. Reads never block
// behind the janitor for long: the sweep copies the expired key set
// under lock and deletes in one pass.
type CacheStore struct {
	mu      sync.RWMutex
	entries map[string]entry

	done chan struct{}
	once sync.Once
}

// NewCacheStore creates a cache store and starts its janitor.
func NewCacheStore(sweepInterval time.Duration) *CacheStore {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}

	s := &CacheStore{
		entries: make(map[string]entry),
		done:    make(chan struct{}),
	}

	go s.janitor(sweepInterval)

	return s
}

// Get returns the vector stored under key, or ok=false on a miss.
// Expired entries count as misses even before the janitor ran.
func (s *CacheStore) Get(_ context.Context, key string) ([]float32, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || time.Now().After(e.expiresAt) {
		return nil, false, nil
	}
	return e.vec, true, nil
}

// Set stores a vector under key with the given TTL.
func (s *CacheStore) Set(_ context.Context, key string, vec []float32, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	// Copy so later caller mutations don't corrupt the cache.
	stored := make([]float32, len(vec))
	copy(stored, vec)

	s.mu.Lock()
	s.entries[key] = entry{vec: stored, expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

// DeletePrefix removes all entries whose key starts with prefix.
func (s *CacheStore) DeletePrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
		}
	}
	s.mu.Unlock()
	return nil
}

// Len returns the number of entries, expired or not.
func (s *CacheStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the janitor. Safe to call more than once.
func (s *CacheStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *CacheStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *CacheStore) sweep(now time.Time) {
	s.mu.Lock()
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
		}
	}
	s.mu.Unlock()
}
