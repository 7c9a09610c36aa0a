package driven

import (
	"context"
	"time"
)

// CacheStore is the backend for the query-embedding cache. Keys are
// opaque hashes produced by the cache layer; the backend only owns
// single-key atomicity and TTL expiry.
//
// Backend failures are absorbed by the cache layer above: a failed
// Get degrades to a miss, a failed Set is logged and dropped. The
// cache is never authoritative.
type CacheStore interface {
	// Get returns the vector stored under key, or ok=false on a miss.
	Get(ctx context.Context, key string) (vec []float32, ok bool, err error)

	// Set stores a vector under key with the given time-to-live.
	Set(ctx context.Context, key string, vec []float32, ttl time.Duration) error

	// DeletePrefix removes all entries whose key starts with prefix.
	// Used to invalidate a provider's entries wholesale.
	DeletePrefix(ctx context.Context, prefix string) error

	// Close stops background maintenance and releases resources.
	Close() error
}
