// Package cache provides response caching for registry lookups.
//
// Three backends are available:
//   - FileCache: per-user cache directory, the default for CLI usage
//   - RedisCache: shared cache for CI environments converting many packages
//   - NullCache: no-op backend for tests and --no-cache
//
// All backends store opaque byte slices under string keys with an optional
// time-to-live. Keys are hashed before hitting the backend, so arbitrary
// key content (URLs, package names with constraints) is safe.
package cache

import (
	"context"
	"time"
)

// Default TTLs for cached registry data.
const (
	// TTLRelease is how long per-release metadata is cached. Released
	// versions are immutable on PyPI, so this can be generous.
	TTLRelease = 7 * 24 * time.Hour

	// TTLIndex is how long the per-package release index is cached.
	// New releases should show up within a day.
	TTLIndex = 24 * time.Hour
)

// Cache is the interface implemented by all cache backends.
type Cache interface {
	// Get retrieves a value. The second return value reports a cache hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL. A TTL of 0 means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Purge removes every entry owned by this backend and reports how many
	// were removed. Backends sharing storage (Redis) only touch their own
	// key namespace.
	Purge(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}
