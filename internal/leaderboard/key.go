package leaderboard

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"strings"

	"trivia-rewards/internal/store"
)

// Members of a ranking sorted set are the hex of a 24-byte big-endian key followed by ":" and
// the player id. All members share score 0, so Redis orders them lexically, which for
// equal-length lowercase hex is the numeric order of the key:
//
//	[0:4]   MaxUint32 - points
//	[4:6]   MaxUint16 - items claimed
//	[6:8]   MaxUint16 - perfect results
//	[8:12]  average response time in microseconds, MaxUint32 when none was measured
//	[12:16] sessions used
//	[16:24] first-achieved time, unix milliseconds
//
// Fields that rank higher when larger are stored inverted. Values beyond a field's width are
// clamped; ties on every field fall back to player id order.
const (
	keyBytes  = 24
	keyHexLen = keyBytes * 2
)

func clampU16(v int64) uint16 {
	switch {
	case v <= 0:
		return 0
	case v >= math.MaxUint16:
		return math.MaxUint16
	default:
		return uint16(v)
	}
}

func clampU32(v int64) uint32 {
	switch {
	case v <= 0:
		return 0
	case v >= math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(v)
	}
}

func sortKey(ps *store.PeriodScore) [keyBytes]byte {
	var b [keyBytes]byte
	binary.BigEndian.PutUint32(b[0:4], math.MaxUint32-clampU32(ps.Points))
	binary.BigEndian.PutUint16(b[4:6], math.MaxUint16-clampU16(int64(ps.ItemsClaimed)))
	binary.BigEndian.PutUint16(b[6:8], math.MaxUint16-clampU16(int64(ps.PerfectCount)))
	avg := uint32(math.MaxUint32)
	if ps.AvgResponseMS > 0 {
		avg = clampU32(int64(math.Round(ps.AvgResponseMS * 1000)))
	}
	binary.BigEndian.PutUint32(b[8:12], avg)
	binary.BigEndian.PutUint32(b[12:16], clampU32(int64(ps.SessionsUsed)))
	first := ps.FirstAchievedAt.UnixMilli()
	if first < 0 {
		first = 0
	}
	binary.BigEndian.PutUint64(b[16:24], uint64(first))
	return b
}

func memberFor(ps *store.PeriodScore) string {
	k := sortKey(ps)
	return hex.EncodeToString(k[:]) + ":" + ps.PlayerID
}

func playerOf(member string) string {
	if len(member) <= keyHexLen || member[keyHexLen] != ':' {
		return ""
	}
	return member[keyHexLen+1:]
}

// periodScopeValid rejects ids that would collide with the key layout.
func periodScopeValid(periodID, scope string) bool {
	return periodID != "" && scope != "" && !strings.ContainsAny(periodID, ": ")
}
