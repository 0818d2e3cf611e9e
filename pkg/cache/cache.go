// Package cache provides the byte-level storage behind the feed cache.
//
// A [Cache] maps string keys to opaque byte slices with an optional TTL.
// Three backends are provided:
//   - [FileCache]: one JSON entry per key under a directory (CLI default)
//   - [RedisCache]: a shared Redis instance, for build farms that bootstrap
//     many workspaces from the same feeds
//   - [NullCache]: stores nothing; every lookup misses
//
// [ScopedCache] namespaces keys so several logical stores can share one
// backend. Feed downloads go through [RetryWithBackoff], which retries only
// errors marked with [Retryable].
package cache

import (
	"context"
	"time"
)

// Cache is a key/value byte store.
type Cache interface {
	// Get returns the stored value. hit is false when the key is absent
	// or expired.
	Get(ctx context.Context, key string) (data []byte, hit bool, err error)

	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
