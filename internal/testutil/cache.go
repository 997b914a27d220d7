package testutil

import (
	"context"
	"testing"

	"trivia-rewards/internal/cache"
	"trivia-rewards/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// OpenTestCache returns a cache on TEST_REDIS_ADDR (flushed first) or, when unset, on an
// in-process miniredis that lives for the test.
func OpenTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	cfg, err := config.LoadTestCache()
	if err != nil {
		t.Fatalf("load test cache config: %v", err)
	}
	addr := cfg.TestRedisAddr
	if addr == "" {
		addr = miniredis.RunT(t).Addr()
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("flush test redis: %v", err)
	}
	c := cache.NewFromClient(rdb)
	t.Cleanup(func() { _ = c.Close() })
	return c
}
