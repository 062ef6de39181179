// Package cache defines an abstract caching interface for hot-path reads,
// and the FunctionCache that sits in front of the Invoker's single hot-path
// lookup: function metadata by func_id (spec.md §4.4 step 1). Backends may
// be in-memory maps (default), Redis, or a two-level combination; the
// byte-oriented Cache interface leaves wire encoding to the backend so
// Redis can be swapped in without touching the domain-typed layer above it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/oriys/barq/internal/domain"
)

// ErrNotFound is returned when a key does not exist in the cache.
var ErrNotFound = errors.New("cache: key not found")

// Cache abstracts a key-value cache with TTL support.
// All operations are safe for concurrent use.
type Cache interface {
	// Get retrieves the value associated with key.
	// Returns ErrNotFound if the key does not exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL. A zero TTL means the entry
	// does not expire (or uses the implementation's default expiration).
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key from the cache. It is not an error to delete
	// a key that does not exist.
	Delete(ctx context.Context, key string) error

	// Exists reports whether the key exists and has not expired.
	Exists(ctx context.Context, key string) (bool, error)

	// Ping verifies connectivity to the underlying cache backend.
	Ping(ctx context.Context) error

	// Close releases all resources held by the cache implementation.
	Close() error
}

// DefaultFunctionCacheTTL bounds how long a function record may be served
// out of FunctionCache before the next lookup falls through to the backing
// MetadataStore.
const DefaultFunctionCacheTTL = 30 * time.Second

// FunctionCache adapts a byte-oriented Cache backend to read and write
// domain.Function records directly, so callers never marshal JSON
// themselves. It is backed by a Cache (typically Redis-tiered), so entries
// can be shared across daemon instances.
type FunctionCache struct {
	backend Cache
	ttl     time.Duration
}

// NewFunctionCache wraps backend. ttl <= 0 uses DefaultFunctionCacheTTL.
func NewFunctionCache(backend Cache, ttl time.Duration) *FunctionCache {
	if ttl <= 0 {
		ttl = DefaultFunctionCacheTTL
	}
	return &FunctionCache{backend: backend, ttl: ttl}
}

// Get returns the cached function for key, or (nil, false) on a miss,
// expiry, or decode failure.
func (c *FunctionCache) Get(ctx context.Context, key string) (*domain.Function, bool) {
	raw, err := c.backend.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	var fn domain.Function
	if err := json.Unmarshal(raw, &fn); err != nil {
		return nil, false
	}
	return &fn, true
}

// Set stores fn under key with the cache's configured TTL.
func (c *FunctionCache) Set(ctx context.Context, key string, fn *domain.Function) error {
	raw, err := json.Marshal(fn)
	if err != nil {
		return err
	}
	return c.backend.Set(ctx, key, raw, c.ttl)
}

// Delete evicts key, e.g. after the underlying function record changes.
func (c *FunctionCache) Delete(ctx context.Context, key string) error {
	return c.backend.Delete(ctx, key)
}

func (c *FunctionCache) Ping(ctx context.Context) error { return c.backend.Ping(ctx) }

func (c *FunctionCache) Close() error { return c.backend.Close() }
