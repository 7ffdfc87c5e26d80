package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Cache is a typed key-value cache with per-entry TTL.
type Cache[V any] interface {
	// Get returns the value for key, or ErrNotFound if absent or expired.
	Get(ctx context.Context, key string) (V, error)

	// Set stores value under key for ttl. A non-positive ttl means no expiry.
	Set(ctx context.Context, key string, value V, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}

// Marshaler converts values to and from bytes for serializing backends.
type Marshaler[V any] interface {
	Marshal(v V) ([]byte, error)
	Unmarshal(data []byte) (V, error)
}

// JSONMarshaler is the default Marshaler.
type JSONMarshaler[V any] struct{}

func (JSONMarshaler[V]) Marshal(v V) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONMarshaler[V]) Unmarshal(data []byte) (V, error) {
	var v V
	err := json.Unmarshal(data, &v)
	return v, err
}

// GetOrSet returns the cached value for key, computing and storing it via fn
// on a miss. Errors from fn are returned without caching.
func GetOrSet[V any](ctx context.Context, c Cache[V], key string, fn func(ctx context.Context) (V, time.Duration, error)) (V, error) {
	if v, err := c.Get(ctx, key); err == nil {
		return v, nil
	}

	v, ttl, err := fn(ctx)
	if err != nil {
		var zero V
		return zero, err
	}

	// Best effort: a failed cache write must not fail the lookup.
	_ = c.Set(ctx, key, v, ttl)
	return v, nil
}
