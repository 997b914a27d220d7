package store

import (
	"context"
	"errors"
	"time"

	"trivia-rewards/internal/rewards"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const eligibilityColumns = `id, kind, category_id, season_id, player_id, session_id, status, created_at, expires_at, used_at, expired_at`

// livePendingOperation matches eligibilities whose claim is already in flight.
const livePendingOperation = `EXISTS (SELECT 1 FROM operations o WHERE o.eligibility_id = eligibilities.id AND o.status = 'pending')`

func scanEligibility(row pgx.Row) (*Eligibility, error) {
	var (
		e                 Eligibility
		seasonID          pgtype.Text
		usedAt, expiredAt pgtype.Timestamptz
	)
	if err := row.Scan(&e.ID, &e.Kind, &e.CategoryID, &seasonID, &e.PlayerID, &e.SessionID, &e.Status,
		&e.CreatedAt, &e.ExpiresAt, &usedAt, &expiredAt); err != nil {
		return nil, mapNotFound(err)
	}
	e.SeasonID = textVal(seasonID)
	e.UsedAt = timePtrVal(usedAt)
	e.ExpiredAt = timePtrVal(expiredAt)
	return &e, nil
}

func (s *Store) CreateEligibility(ctx context.Context, e Eligibility) (*Eligibility, error) {
	if e.ID == "" {
		e.ID = NewID()
	}
	row := s.Pool.QueryRow(ctx, `
INSERT INTO eligibilities (id, kind, category_id, season_id, player_id, session_id, status, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, 'active', $7, $8)
RETURNING `+eligibilityColumns,
		e.ID, e.Kind, e.CategoryID, textParam(e.SeasonID), e.PlayerID, e.SessionID, e.CreatedAt, e.ExpiresAt)
	out, err := scanEligibility(row)
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return out, nil
}

func (s *Store) GetEligibility(ctx context.Context, id string) (*Eligibility, error) {
	return scanEligibility(s.Pool.QueryRow(ctx, `SELECT `+eligibilityColumns+` FROM eligibilities WHERE id = $1`, id))
}

func (s *Store) ListEligibilitiesByPlayer(ctx context.Context, playerID string) ([]Eligibility, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT `+eligibilityColumns+`
FROM eligibilities
WHERE player_id = $1
ORDER BY created_at DESC, id DESC`, playerID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Eligibility, error) {
		e, err := scanEligibility(row)
		if err != nil {
			return Eligibility{}, err
		}
		return *e, nil
	})
}

// ExpireEligibility flips an active, past-due eligibility to expired. It reports false when the
// row was not active, not yet due, or has a claim in flight.
func (s *Store) ExpireEligibility(ctx context.Context, id string, now time.Time) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
UPDATE eligibilities
SET status = 'expired', expired_at = $2
WHERE id = $1 AND status = 'active' AND expires_at <= $2 AND NOT `+livePendingOperation,
		id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ExpireDueEligibilities expires up to limit past-due eligibilities and returns how many flipped.
func (s *Store) ExpireDueEligibilities(ctx context.Context, now time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = 500
	}
	tag, err := s.Pool.Exec(ctx, `
UPDATE eligibilities
SET status = 'expired', expired_at = $1
WHERE id IN (
  SELECT id FROM eligibilities
  WHERE status = 'active' AND expires_at <= $1 AND NOT `+livePendingOperation+`
  ORDER BY expires_at
  LIMIT $2
  FOR UPDATE SKIP LOCKED
) AND status = 'active'`, now, limit)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ConsumeEligibility transitions active to used. ErrConflict means the row was not active.
func (s *Store) ConsumeEligibility(ctx context.Context, id string, now time.Time) (*Eligibility, error) {
	return consumeEligibility(ctx, s.Pool, id, now)
}

func consumeEligibility(ctx context.Context, q querier, id string, now time.Time) (*Eligibility, error) {
	e, err := scanEligibility(q.QueryRow(ctx, `
UPDATE eligibilities
SET status = 'used', used_at = $2
WHERE id = $1 AND status = 'active'
RETURNING `+eligibilityColumns, id, now))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrConflict
	}
	return e, err
}

func lockEligibility(ctx context.Context, tx pgx.Tx, id string) (*Eligibility, error) {
	return scanEligibility(tx.QueryRow(ctx, `SELECT `+eligibilityColumns+` FROM eligibilities WHERE id = $1 FOR UPDATE`, id))
}

func eligibilityActive(e *Eligibility) bool {
	return e.Status == rewards.EligibilityActive
}
