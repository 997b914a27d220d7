package store

import (
	"context"

	"trivia-rewards/internal/rewards"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const ownershipColumns = `id, player_id, source, operation_id, catalog_item_id, category_id, tier, season_id, metadata, tx_ref, confirmed_at, burned_at, burned_by_operation_id`

// OwnershipFilter narrows the unburned ownerships a forge may draw from. Empty fields match anything.
type OwnershipFilter struct {
	Tier              rewards.Tier
	CategoryID        string
	SeasonID          string
	ExcludeCategoryID string
}

func scanOwnership(row pgx.Row) (*Ownership, error) {
	var (
		o                  Ownership
		seasonID, burnedBy pgtype.Text
		burnedAt           pgtype.Timestamptz
	)
	if err := row.Scan(&o.ID, &o.PlayerID, &o.Source, &o.OperationID, &o.CatalogItemID, &o.CategoryID, &o.Tier,
		&seasonID, &o.Metadata, &o.TxRef, &o.ConfirmedAt, &burnedAt, &burnedBy); err != nil {
		return nil, mapNotFound(err)
	}
	o.SeasonID = textVal(seasonID)
	o.BurnedAt = timePtrVal(burnedAt)
	o.BurnedByOperationID = textVal(burnedBy)
	return &o, nil
}

func collectOwnerships(rows pgx.Rows) ([]Ownership, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Ownership, error) {
		o, err := scanOwnership(row)
		if err != nil {
			return Ownership{}, err
		}
		return *o, nil
	})
}

func insertOwnership(ctx context.Context, q querier, o Ownership) (*Ownership, error) {
	if o.ID == "" {
		o.ID = NewID()
	}
	if o.Metadata == nil {
		o.Metadata = map[string]any{}
	}
	out, err := scanOwnership(q.QueryRow(ctx, `
INSERT INTO ownerships (id, player_id, source, operation_id, catalog_item_id, category_id, tier, season_id, metadata, tx_ref, confirmed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING `+ownershipColumns,
		o.ID, o.PlayerID, o.Source, o.OperationID, o.CatalogItemID, o.CategoryID, o.Tier, textParam(o.SeasonID),
		o.Metadata, o.TxRef, o.ConfirmedAt))
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return out, nil
}

// ListOwnerships returns a player's holdings, oldest first. Burned records are included only on request.
func (s *Store) ListOwnerships(ctx context.Context, playerID string, includeBurned bool) ([]Ownership, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT `+ownershipColumns+`
FROM ownerships
WHERE player_id = $1 AND ($2 OR burned_at IS NULL)
ORDER BY confirmed_at, id`, playerID, includeBurned)
	if err != nil {
		return nil, err
	}
	return collectOwnerships(rows)
}

func (s *Store) GetOwnershipByOperation(ctx context.Context, operationID string) (*Ownership, error) {
	return scanOwnership(s.Pool.QueryRow(ctx, `SELECT `+ownershipColumns+` FROM ownerships WHERE operation_id = $1`, operationID))
}

func lockForgeCandidates(ctx context.Context, tx pgx.Tx, playerID string, f OwnershipFilter) ([]Ownership, error) {
	rows, err := tx.Query(ctx, `
SELECT `+ownershipColumns+`
FROM ownerships
WHERE player_id = $1
  AND burned_at IS NULL
  AND ($2::text = '' OR tier = $2::text)
  AND ($3::text = '' OR category_id = $3::text)
  AND ($4::text = '' OR season_id = $4::text)
  AND ($5::text = '' OR category_id <> $5::text)
ORDER BY confirmed_at, id
FOR UPDATE`, playerID, f.Tier, f.CategoryID, f.SeasonID, f.ExcludeCategoryID)
	if err != nil {
		return nil, err
	}
	return collectOwnerships(rows)
}
