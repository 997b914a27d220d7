package cache

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

var ErrLockHeld = errors.New("lock held")

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)

// Lock is an advisory lock held until Release or TTL expiry.
type Lock struct {
	c     *Cache
	key   string
	token string
}

// TryLock acquires key for ttl or returns ErrLockHeld.
func (c *Cache) TryLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	token := ulid.Make().String()
	ok, err := c.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lock{c: c, key: key, token: token}, nil
}

// Release deletes the lock only if this holder still owns it.
func (l *Lock) Release(ctx context.Context) error {
	return unlockScript.Run(ctx, l.c.rdb, []string{l.key}, l.token).Err()
}
