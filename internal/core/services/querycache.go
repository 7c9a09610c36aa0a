package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/veritas-labs/docq/internal/core/ports/driven"
	"github.com/veritas-labs/docq/internal/logger"
)

// DefaultCacheTTL is how long a cached query vector lives. 24h is a
// policy choice: query embeddings are deterministic per provider, so
// the TTL only bounds memory, not staleness.
const DefaultCacheTTL = 24 * time.Hour

// CacheMetrics is an aggregate hit/miss snapshot over the current
// window.
type CacheMetrics struct {
	Hits    int64
	Misses  int64
	HitRate float64
}

// EmbeddingCache caches query embeddings by normalized query text,
// scoped by provider and dimension so entries from different
// providers never collide.
//
// The cache is never authoritative: backend failures degrade to
// misses on Get and are logged and dropped on Set. Losing every entry
// costs latency, not correctness.
type EmbeddingCache struct {
	backend    driven.CacheStore
	provider   string
	dimensions int
	ttl        time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewEmbeddingCache creates a cache scoped to one provider/dimension
// pair. backend may be nil, in which case every lookup is a miss.
func NewEmbeddingCache(backend driven.CacheStore, provider string, dimensions int, ttl time.Duration) *EmbeddingCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &EmbeddingCache{
		backend:    backend,
		provider:   provider,
		dimensions: dimensions,
		ttl:        ttl,
	}
}

// NormalizeQuery canonicalizes query text so trivially different
// spellings share a cache entry: trims, collapses internal
// whitespace, lower-cases and folds full-width punctuation to
// half-width.
func NormalizeQuery(query string) string {
	folded := strings.Map(func(r rune) rune {
		switch {
		case r == '　': // ideographic space
			return ' '
		case r >= '！' && r <= '～': // full-width ASCII block
			return r - 0xFEE0
		default:
			return r
		}
	}, query)

	return strings.ToLower(strings.Join(strings.Fields(folded), " "))
}

// Get returns the cached vector for query, or found=false on a miss.
// It never fails: backend errors are absorbed and counted as misses.
func (c *EmbeddingCache) Get(ctx context.Context, query string) ([]float32, bool) {
	if c.backend == nil {
		c.misses.Add(1)
		return nil, false
	}

	vec, ok, err := c.backend.Get(ctx, c.key(query))
	if err != nil {
		logger.Warn("query cache get failed, treating as miss: %v", err)
		c.misses.Add(1)
		return nil, false
	}
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return vec, true
}

// Set stores the vector for query. Fire-and-forget: failures are
// logged, never surfaced.
func (c *EmbeddingCache) Set(ctx context.Context, query string, vec []float32) {
	if c.backend == nil {
		return
	}
	if err := c.backend.Set(ctx, c.key(query), vec, c.ttl); err != nil {
		logger.Warn("query cache set failed: %v", err)
	}
}

// InvalidateProvider drops every entry belonging to this cache's
// provider/dimension scope.
func (c *EmbeddingCache) InvalidateProvider(ctx context.Context) error {
	if c.backend == nil {
		return nil
	}
	return c.backend.DeletePrefix(ctx, c.keyPrefix())
}

// Metrics returns the hit/miss counters for the current window.
func (c *EmbeddingCache) Metrics() CacheMetrics {
	hits := c.hits.Load()
	misses := c.misses.Load()

	m := CacheMetrics{Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		m.HitRate = float64(hits) / float64(total)
	}
	return m
}

// ResetMetrics starts a new observation window.
func (c *EmbeddingCache) ResetMetrics() {
	c.hits.Store(0)
	c.misses.Store(0)
}

func (c *EmbeddingCache) keyPrefix() string {
	return fmt.Sprintf("%s:%d:", c.provider, c.dimensions)
}

func (c *EmbeddingCache) key(query string) string {
	sum := sha256.Sum256([]byte(NormalizeQuery(query)))
	return c.keyPrefix() + hex.EncodeToString(sum[:])
}
