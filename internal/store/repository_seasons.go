package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

const seasonColumns = `id, name, starts_at, ends_at, grace_days, created_at`

func scanSeason(row pgx.Row) (*Season, error) {
	var s Season
	if err := row.Scan(&s.ID, &s.Name, &s.StartsAt, &s.EndsAt, &s.GraceDays, &s.CreatedAt); err != nil {
		return nil, mapNotFound(err)
	}
	return &s, nil
}

func (s *Store) UpsertSeason(ctx context.Context, season Season) (*Season, error) {
	return scanSeason(s.Pool.QueryRow(ctx, `
INSERT INTO seasons (id, name, starts_at, ends_at, grace_days)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
  name = EXCLUDED.name,
  starts_at = EXCLUDED.starts_at,
  ends_at = EXCLUDED.ends_at,
  grace_days = EXCLUDED.grace_days
RETURNING `+seasonColumns, season.ID, season.Name, season.StartsAt, season.EndsAt, season.GraceDays))
}

func (s *Store) GetSeason(ctx context.Context, id string) (*Season, error) {
	return scanSeason(s.Pool.QueryRow(ctx, `SELECT `+seasonColumns+` FROM seasons WHERE id = $1`, id))
}

// ActiveSeason returns the latest-starting season whose window, grace days included, contains at.
func (s *Store) ActiveSeason(ctx context.Context, at time.Time) (*Season, error) {
	return scanSeason(s.Pool.QueryRow(ctx, `
SELECT `+seasonColumns+`
FROM seasons
WHERE starts_at <= $1 AND $1 < ends_at + make_interval(days => grace_days)
ORDER BY starts_at DESC
LIMIT 1`, at))
}
