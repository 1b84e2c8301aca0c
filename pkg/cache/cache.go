// Package cache provides byte-oriented response caches shared by the
// integration clients.
//
// Three backends implement [Cache]:
//   - [FileCache]: JSON entry files under ~/.cache/depglobe/ (CLI default)
//   - [RedisCache]: a shared Redis instance, for scheduled runs on ephemeral hosts
//   - [NullCache]: disables caching (--no-cache)
//
// The cache only holds raw upstream responses such as dependents pages. The
// account and geocode mappings are owned by a run and seeded from the
// persisted artifact instead.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values under string keys with an optional TTL.
// A TTL of 0 means the entry does not expire.
type Cache interface {
	// Get returns the value for key and whether it was found.
	// Expired entries are reported as misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
