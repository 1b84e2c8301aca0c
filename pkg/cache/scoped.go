package cache

import (
	"context"
	"time"
)

// Scoped wraps a Cache with a key prefix, so several runs (for example one
// per owner account) can share a Redis instance without colliding.
//
//	shared, _ := cache.NewRedisCache(ctx, url)
//	c := cache.NewScoped(shared, "owner:matzehuels:")
type Scoped struct {
	inner  Cache
	prefix string
}

// NewScoped creates a prefixed view of inner.
// If inner is nil, a NullCache is used.
func NewScoped(inner Cache, prefix string) Cache {
	if inner == nil {
		inner = NewNullCache()
	}
	return &Scoped{inner: inner, prefix: prefix}
}

func (s *Scoped) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *Scoped) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return s.inner.Set(ctx, s.prefix+key, data, ttl)
}

func (s *Scoped) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.prefix+key)
}

// Close closes the wrapped cache.
func (s *Scoped) Close() error { return s.inner.Close() }

var _ Cache = (*Scoped)(nil)
