package store

import (
	"context"
	"time"

	"trivia-rewards/internal/rewards"

	"github.com/jackc/pgx/v5"
)

const periodScoreColumns = `player_id, period_id, scope, points, perfect_count, avg_response_ms, sessions_used, items_claimed, first_achieved_at, version, updated_at`

// ScoreDelta is one scoring event applied to a period score row. ResponseMS is the mean response
// time over the Sessions the event covers and only counts when Sessions > 0.
type ScoreDelta struct {
	PlayerID     string
	PeriodID     string
	Scope        rewards.Scope
	Points       int64
	Perfects     int
	ResponseMS   float64
	Sessions     int
	ItemsClaimed int
	At           time.Time
}

func scanPeriodScore(row pgx.Row) (*PeriodScore, error) {
	var ps PeriodScore
	if err := row.Scan(&ps.PlayerID, &ps.PeriodID, &ps.Scope, &ps.Points, &ps.PerfectCount, &ps.AvgResponseMS,
		&ps.SessionsUsed, &ps.ItemsClaimed, &ps.FirstAchievedAt, &ps.Version, &ps.UpdatedAt); err != nil {
		return nil, mapNotFound(err)
	}
	return &ps, nil
}

// UpsertPeriodScore adds d to the row under its row lock. Counts are additive, the average
// response time is the session-weighted running mean, and first_achieved_at moves only when
// the point total changes. Every write bumps version.
func (s *Store) UpsertPeriodScore(ctx context.Context, d ScoreDelta) (*PeriodScore, error) {
	return upsertPeriodScore(ctx, s.Pool, d)
}

// UpsertPeriodScores applies every delta in one transaction and returns the rows in input order.
// Either all rows move or none do.
func (s *Store) UpsertPeriodScores(ctx context.Context, deltas []ScoreDelta) ([]*PeriodScore, error) {
	out := make([]*PeriodScore, 0, len(deltas))
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		for _, d := range deltas {
			ps, err := upsertPeriodScore(ctx, tx, d)
			if err != nil {
				return err
			}
			out = append(out, ps)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func upsertPeriodScore(ctx context.Context, q querier, d ScoreDelta) (*PeriodScore, error) {
	avg := 0.0
	if d.Sessions > 0 {
		avg = d.ResponseMS
	}
	return scanPeriodScore(q.QueryRow(ctx, `
INSERT INTO period_scores (player_id, period_id, scope, points, perfect_count, avg_response_ms, sessions_used,
  items_claimed, first_achieved_at, version, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $9)
ON CONFLICT (player_id, period_id, scope) DO UPDATE SET
  points = period_scores.points + EXCLUDED.points,
  perfect_count = period_scores.perfect_count + EXCLUDED.perfect_count,
  avg_response_ms = CASE
    WHEN EXCLUDED.sessions_used > 0 THEN
      (period_scores.avg_response_ms * period_scores.sessions_used + EXCLUDED.avg_response_ms * EXCLUDED.sessions_used)
        / (period_scores.sessions_used + EXCLUDED.sessions_used)
    ELSE period_scores.avg_response_ms
  END,
  sessions_used = period_scores.sessions_used + EXCLUDED.sessions_used,
  items_claimed = period_scores.items_claimed + EXCLUDED.items_claimed,
  first_achieved_at = CASE
    WHEN EXCLUDED.points <> 0 THEN EXCLUDED.first_achieved_at
    ELSE period_scores.first_achieved_at
  END,
  version = period_scores.version + 1,
  updated_at = EXCLUDED.updated_at
RETURNING `+periodScoreColumns,
		d.PlayerID, d.PeriodID, d.Scope, d.Points, d.Perfects, avg, d.Sessions, d.ItemsClaimed, d.At))
}

func (s *Store) GetPeriodScore(ctx context.Context, playerID, periodID string, scope rewards.Scope) (*PeriodScore, error) {
	return scanPeriodScore(s.Pool.QueryRow(ctx, `
SELECT `+periodScoreColumns+`
FROM period_scores
WHERE player_id = $1 AND period_id = $2 AND scope = $3`, playerID, periodID, scope))
}

// ListPeriodScores pages through one scope of a period in player id order, starting after afterPlayer.
func (s *Store) ListPeriodScores(ctx context.Context, periodID string, scope rewards.Scope, afterPlayer string, limit int) ([]PeriodScore, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.Pool.Query(ctx, `
SELECT `+periodScoreColumns+`
FROM period_scores
WHERE period_id = $1 AND scope = $2 AND player_id > $3
ORDER BY player_id
LIMIT $4`, periodID, scope, afterPlayer, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (PeriodScore, error) {
		ps, err := scanPeriodScore(row)
		if err != nil {
			return PeriodScore{}, err
		}
		return *ps, nil
	})
}
