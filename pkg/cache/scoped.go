package cache

import (
	"context"
	"time"
)

// ScopedCache prefixes every key of an inner cache, so independent stores
// can share one backend without colliding:
//
//	feeds := NewScopedCache(backend, "feeds:")
//	meta := NewScopedCache(backend, "meta:")
type ScopedCache struct {
	inner  Cache
	prefix string
}

// NewScopedCache wraps inner. A nil inner behaves like [NullCache].
func NewScopedCache(inner Cache, prefix string) *ScopedCache {
	if inner == nil {
		inner = NewNullCache()
	}
	return &ScopedCache{inner: inner, prefix: prefix}
}

func (c *ScopedCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return c.inner.Get(ctx, c.prefix+key)
}

func (c *ScopedCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.inner.Set(ctx, c.prefix+key, data, ttl)
}

func (c *ScopedCache) Delete(ctx context.Context, key string) error {
	return c.inner.Delete(ctx, c.prefix+key)
}

// Close closes the inner cache.
func (c *ScopedCache) Close() error {
	return c.inner.Close()
}

var _ Cache = (*ScopedCache)(nil)
