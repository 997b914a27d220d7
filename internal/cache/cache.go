package cache

import (
	"context"
	"time"

	"trivia-rewards/internal/config"

	"github.com/redis/go-redis/v9"
)

// Cache is the non-authoritative fast store: ranking structures, advisory counters and locks.
// Everything in it can be rebuilt from Postgres.
type Cache struct {
	rdb *redis.Client
}

func New(cfg config.CacheConfig) *Cache {
	return NewFromClient(redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}))
}

func NewFromClient(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func (c *Cache) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}
