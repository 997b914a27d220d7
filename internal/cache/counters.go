package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var incrScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n`)

// EligibilityQuotaKey is the per-player daily grant counter.
func EligibilityQuotaKey(playerID string, day time.Time) string {
	return "quota:elig:" + playerID + ":" + day.UTC().Format("20060102")
}

// Incr bumps an advisory counter, setting its TTL when the counter is created. Counters are
// best effort: concurrent callers may briefly overshoot a limit.
func (c *Cache) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return incrScript.Run(ctx, c.rdb, []string{key}, ttl.Milliseconds()).Int64()
}

// Decr gives back a unit taken by Incr when the guarded action did not happen.
func (c *Cache) Decr(ctx context.Context, key string) error {
	return c.rdb.Decr(ctx, key).Err()
}
