package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const rankWriteAttempts = 3

// RankingKeys names the sorted set of one leaderboard and the hashes kept beside it.
// Members of Set sort lexically in rank order and all carry score 0.
type RankingKeys struct {
	Set     string
	Member  string
	Payload string
	Version string
}

func RankingKeysFor(periodID, scope string) RankingKeys {
	base := "lb:" + periodID + ":" + scope
	return RankingKeys{
		Set:     base,
		Member:  base + ":member",
		Payload: base + ":payload",
		Version: base + ":version",
	}
}

func (k RankingKeys) staging() RankingKeys {
	return RankingKeys{
		Set:     k.Set + ":rebuild",
		Member:  k.Member + ":rebuild",
		Payload: k.Payload + ":rebuild",
		Version: k.Version + ":rebuild",
	}
}

func (k RankingKeys) all() []string {
	return []string{k.Set, k.Member, k.Payload, k.Version}
}

type RankEntry struct {
	PlayerID string
	Member   string
	Payload  []byte
	Version  int64
}

// PutRankEntry replaces the player's member in the ranking unless the cache already holds the
// same or a newer version of that player's row. It reports whether anything was written.
func (c *Cache) PutRankEntry(ctx context.Context, keys RankingKeys, e RankEntry) (bool, error) {
	var err error
	for attempt := 0; attempt < rankWriteAttempts; attempt++ {
		written := false
		err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := tx.HGet(ctx, keys.Version, e.PlayerID).Int64()
			switch {
			case errors.Is(err, redis.Nil):
			case err != nil:
				return err
			case cur >= e.Version:
				return nil
			}
			old, err := tx.HGet(ctx, keys.Member, e.PlayerID).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if old != "" && old != e.Member {
					pipe.ZRem(ctx, keys.Set, old)
				}
				pipe.ZAdd(ctx, keys.Set, redis.Z{Score: 0, Member: e.Member})
				pipe.HSet(ctx, keys.Member, e.PlayerID, e.Member)
				pipe.HSet(ctx, keys.Payload, e.PlayerID, e.Payload)
				pipe.HSet(ctx, keys.Version, e.PlayerID, e.Version)
				return nil
			})
			written = err == nil
			return err
		}, keys.Version, keys.Member)
		if !errors.Is(err, redis.TxFailedErr) {
			return written, err
		}
	}
	return false, err
}

// RankRange returns members at 0-based positions [offset, offset+limit) and the ranking size.
func (c *Cache) RankRange(ctx context.Context, keys RankingKeys, offset, limit int64) ([]string, int64, error) {
	var (
		members *redis.StringSliceCmd
		total   *redis.IntCmd
	)
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		members = pipe.ZRange(ctx, keys.Set, offset, offset+limit-1)
		total = pipe.ZCard(ctx, keys.Set)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return members.Val(), total.Val(), nil
}

// Payloads returns the stored payload per player, empty where none is stored.
func (c *Cache) Payloads(ctx context.Context, keys RankingKeys, playerIDs []string) ([]string, error) {
	if len(playerIDs) == 0 {
		return nil, nil
	}
	vals, err := c.rdb.HMGet(ctx, keys.Payload, playerIDs...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(vals))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[i] = s
		}
	}
	return out, nil
}

// Rank returns the 0-based position of the player, or found=false when the player is not ranked.
func (c *Cache) Rank(ctx context.Context, keys RankingKeys, playerID string) (int64, bool, error) {
	member, err := c.rdb.HGet(ctx, keys.Member, playerID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	rank, err := c.rdb.ZRank(ctx, keys.Set, member).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rank, true, nil
}

// ReplaceRanking writes entries into staging keys and renames them over the live ones in one
// MULTI, so readers see either the old ranking or the new one.
func (c *Cache) ReplaceRanking(ctx context.Context, keys RankingKeys, entries []RankEntry) error {
	stage := keys.staging()
	if err := c.rdb.Del(ctx, stage.all()...).Err(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return c.rdb.Del(ctx, keys.all()...).Err()
	}
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			pipe.ZAdd(ctx, stage.Set, redis.Z{Score: 0, Member: e.Member})
			pipe.HSet(ctx, stage.Member, e.PlayerID, e.Member)
			pipe.HSet(ctx, stage.Payload, e.PlayerID, e.Payload)
			pipe.HSet(ctx, stage.Version, e.PlayerID, e.Version)
		}
		return nil
	})
	if err != nil {
		return err
	}
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Rename(ctx, stage.Set, keys.Set)
		pipe.Rename(ctx, stage.Member, keys.Member)
		pipe.Rename(ctx, stage.Payload, keys.Payload)
		pipe.Rename(ctx, stage.Version, keys.Version)
		return nil
	})
	return err
}
