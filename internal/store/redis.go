package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Neuroklast/neuroklast-band-land-sub003/internal/tracing"
)

// RedisStore implements Store backed by Redis. Increment-and-expire pairs
// are pipelined so each counter update is a single round trip; the EXPIRE
// uses NX semantics so the TTL is armed only when the key is created.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore from an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisClient creates a Redis client from a URL with bounded timeouts.
// A store call that exceeds these timeouts returns an error; it never
// blocks a request indefinitely.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = 1 * time.Second
	opts.WriteTimeout = 1 * time.Second
	return redis.NewClient(opts), nil
}

// keyspace reduces a key to its namespace prefix for span naming, so
// traces never carry hashed identities or tokens.
func keyspace(key string) string {
	if i := strings.Index(key, ":"); i >= 0 {
		return key[:i+1]
	}
	return key
}

// IncrWithTTL implements Store.
func (s *RedisStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (n int64, err error) {
	ctx, endSpan := tracing.StartStoreSpan(ctx, keyspace(key), tracing.StoreOperationIncr)
	defer func() { endSpan(err) }()

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return incr.Val(), nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (val string, ok bool, err error) {
	ctx, endSpan := tracing.StartStoreSpan(ctx, keyspace(key), tracing.StoreOperationGet)
	defer func() { endSpan(err) }()

	val, err = s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return val, true, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) (err error) {
	ctx, endSpan := tracing.StartStoreSpan(ctx, keyspace(key), tracing.StoreOperationSet)
	defer func() { endSpan(err) }()

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) (err error) {
	ctx, endSpan := tracing.StartStoreSpan(ctx, keyspace(key), tracing.StoreOperationDelete)
	defer func() { endSpan(err) }()

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// Exists implements Store.
func (s *RedisStore) Exists(ctx context.Context, key string) (ok bool, err error) {
	ctx, endSpan := tracing.StartStoreSpan(ctx, keyspace(key), tracing.StoreOperationExists)
	defer func() { endSpan(err) }()

	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", key, err)
	}
	return n > 0, nil
}

// PushCapped implements Store.
func (s *RedisStore) PushCapped(ctx context.Context, key, value string, cap int64) (err error) {
	ctx, endSpan := tracing.StartStoreSpan(ctx, keyspace(key), tracing.StoreOperationPush)
	defer func() { endSpan(err) }()

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, value)
	pipe.LTrim(ctx, key, 0, cap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push %s: %w", key, err)
	}
	return nil
}

// List implements Store.
func (s *RedisStore) List(ctx context.Context, key string, start, stop int64) (vals []string, err error) {
	ctx, endSpan := tracing.StartStoreSpan(ctx, keyspace(key), tracing.StoreOperationGet)
	defer func() { endSpan(err) }()

	vals, err = s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", key, err)
	}
	return vals, nil
}

// SetAdd implements Store.
func (s *RedisStore) SetAdd(ctx context.Context, key, member string) (err error) {
	ctx, endSpan := tracing.StartStoreSpan(ctx, keyspace(key), tracing.StoreOperationSetAdd)
	defer func() { endSpan(err) }()

	if err := s.client.SAdd(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("sadd %s: %w", key, err)
	}
	return nil
}

// Ping checks connectivity to Redis. Used by the readiness endpoint.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
