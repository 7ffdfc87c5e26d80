package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Cache implementation backed by a Redis client. Values are
// serialized through the configured Marshaler.
type Redis[V any] struct {
	client    redis.UniversalClient
	marshaler Marshaler[V]
	prefix    string
}

// RedisOption configures a Redis cache.
type RedisOption[V any] func(*Redis[V])

// WithKeyPrefix namespaces all keys with the given prefix.
func WithKeyPrefix[V any](prefix string) RedisOption[V] {
	return func(r *Redis[V]) { r.prefix = prefix }
}

// NewRedis creates a Redis-backed cache. A nil marshaler defaults to JSON.
func NewRedis[V any](client redis.UniversalClient, m Marshaler[V], opts ...RedisOption[V]) *Redis[V] {
	if m == nil {
		m = JSONMarshaler[V]{}
	}
	r := &Redis[V]{client: client, marshaler: m}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis[V]) Get(ctx context.Context, key string) (V, error) {
	var zero V
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, ErrNotFound
		}
		return zero, err
	}
	return r.marshaler.Unmarshal(data)
}

func (r *Redis[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	data, err := r.marshaler.Marshal(value)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, r.prefix+key, data, ttl).Err()
}

func (r *Redis[V]) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

func (r *Redis[V]) Close() error {
	return r.client.Close()
}
