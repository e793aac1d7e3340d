package cache

import (
	"context"
	"time"
)

// NullCache discards everything. It backs --no-cache runs, where every
// resolution must hit PyPI fresh.
type NullCache struct{}

// NewNullCache creates a cache that never hits.
func NewNullCache() Cache {
	return NullCache{}
}

// Get always misses.
func (NullCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

// Set discards the value.
func (NullCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return nil
}

// Delete does nothing.
func (NullCache) Delete(ctx context.Context, key string) error {
	return nil
}

// Purge has nothing to remove.
func (NullCache) Purge(ctx context.Context) (int, error) {
	return 0, nil
}

// Close does nothing.
func (NullCache) Close() error {
	return nil
}

var _ Cache = NullCache{}
