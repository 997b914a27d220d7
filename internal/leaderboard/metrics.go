package leaderboard

import "expvar"

var (
	cacheWriteErrors   = expvar.NewInt("leaderboard_cache_write_errors")
	staleWritesSkipped = expvar.NewInt("leaderboard_stale_writes_skipped")
	rebuilds           = expvar.NewInt("leaderboard_rebuilds")
)
