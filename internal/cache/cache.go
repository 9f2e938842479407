// Package cache provides the pagination cache for the catalog backend.
package cache

import (
	"context"
	"time"
)

// Cache is the interface for the byte-level cache backend.
type Cache interface {
	// Get retrieves a cached value by key.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
	// Delete removes a cached value.
	Delete(ctx context.Context, key string)
	// Purge removes all cached values.
	Purge(ctx context.Context)
}

// Enumerator is an optional capability: backends that can list live keys
// implement it, which lets the pagination cache actively delete stale
// generations instead of waiting for TTL expiry. Checked via type
// assertion.
type Enumerator interface {
	// Keys returns a snapshot of the currently live keys.
	Keys(ctx context.Context) []string
}
