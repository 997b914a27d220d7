package mcpserver

import "trivia-rewards/internal/rewards"

const (
	defaultPageLimit    = 50
	maxLeaderboardLimit = 100
)

func clampPagination(limit, offset, maxLimit int) (int, int) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func scopeOf(categoryID string) rewards.Scope {
	if categoryID == "" {
		return rewards.GlobalScope
	}
	return rewards.CategoryScope(categoryID)
}
