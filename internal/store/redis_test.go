package store

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// newTestRedisStore connects to a local Redis instance, skipping the test
// when none is available.
func newTestRedisStore(t *testing.T) (*RedisStore, *redis.Client) {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping integration test")
	}
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client), client
}

func TestRedisStore_IncrWithTTL(t *testing.T) {
	s, client := newTestRedisStore(t)
	ctx := context.Background()

	key := "test-incr-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	defer client.Del(ctx, key)

	for i := int64(1); i <= 3; i++ {
		n, err := s.IncrWithTTL(ctx, key, time.Minute)
		if err != nil {
			t.Fatalf("IncrWithTTL: %v", err)
		}
		if n != i {
			t.Errorf("increment %d: expected %d, got %d", i, i, n)
		}
	}

	ttl, err := client.TTL(ctx, key).Result()
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("expected TTL between 0 and 60s, got %s", ttl)
	}
}

func TestRedisStore_GetSetDelete(t *testing.T) {
	s, client := newTestRedisStore(t)
	ctx := context.Background()

	key := "test-kv-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	defer client.Del(ctx, key)

	if _, ok, err := s.Get(ctx, key); err != nil || ok {
		t.Errorf("missing key: got ok=%t err=%v", ok, err)
	}

	if err := s.Set(ctx, key, "v", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	val, ok, err := s.Get(ctx, key)
	if err != nil || !ok || val != "v" {
		t.Errorf("Get = (%q, %t, %v), want (v, true, nil)", val, ok, err)
	}

	if ok, _ := s.Exists(ctx, key); !ok {
		t.Error("Exists should report stored key")
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, key); ok {
		t.Error("deleted key should not be found")
	}
}

func TestRedisStore_PushCapped(t *testing.T) {
	s, client := newTestRedisStore(t)
	ctx := context.Background()

	key := "test-list-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	defer client.Del(ctx, key)

	for i := 0; i < 7; i++ {
		if err := s.PushCapped(ctx, key, strconv.Itoa(i), 5); err != nil {
			t.Fatalf("PushCapped: %v", err)
		}
	}

	list, err := s.List(ctx, key, 0, -1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 5 {
		t.Fatalf("expected list capped at 5, got %d", len(list))
	}
	if list[0] != "6" {
		t.Errorf("expected newest entry first, got %q", list[0])
	}
}

func TestRedisStore_ErrorsWhenUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "localhost:9999", // nothing listens here
		DialTimeout: 200 * time.Millisecond,
	})
	defer client.Close()

	s := NewRedisStore(client)
	ctx := context.Background()

	if _, err := s.IncrWithTTL(ctx, "k", time.Second); err == nil {
		t.Error("IncrWithTTL should surface connection errors")
	}
	if _, _, err := s.Get(ctx, "k"); err == nil {
		t.Error("Get should surface connection errors")
	}
}
