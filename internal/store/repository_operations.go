package store

import (
	"context"
	"errors"
	"time"

	"trivia-rewards/internal/rewards"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const operationColumns = `id, kind, forge_type, player_id, owner_address, eligibility_id, catalog_item_id, season_id, status, stage, tx_ref, error_code, error_detail, retry_of, created_at, updated_at, confirmed_at`

type StartMintParams struct {
	EligibilityID string
	PlayerID      string
	OwnerAddress  string
	CategoryID    string
	Tier          rewards.Tier
	SeasonID      string
	Now           time.Time
}

type StartForgeParams struct {
	PlayerID     string
	OwnerAddress string
	ForgeType    rewards.ForgeType
	Candidates   OwnershipFilter
	// Pick chooses the inputs among the locked candidates. Its error aborts the forge untouched.
	Pick             func(candidates []Ownership) ([]Ownership, error)
	OutputCategoryID string
	OutputTier       rewards.Tier
	SeasonID         string
	Now              time.Time
}

type FinalizeParams struct {
	OperationID string
	TxRef       string
	Metadata    map[string]any
	// SeasonID stamps the ownership when the operation itself carries none.
	SeasonID string
	Now      time.Time
}

func scanOperation(row pgx.Row) (*Operation, error) {
	var (
		op                                        Operation
		forgeType, eligibilityID, seasonID, txRef pgtype.Text
		errorCode, errorDetail, retryOf           pgtype.Text
		confirmedAt                               pgtype.Timestamptz
	)
	if err := row.Scan(&op.ID, &op.Kind, &forgeType, &op.PlayerID, &op.OwnerAddress, &eligibilityID, &op.CatalogItemID,
		&seasonID, &op.Status, &op.Stage, &txRef, &errorCode, &errorDetail, &retryOf, &op.CreatedAt, &op.UpdatedAt,
		&confirmedAt); err != nil {
		return nil, mapNotFound(err)
	}
	op.ForgeType = rewards.ForgeType(textVal(forgeType))
	op.EligibilityID = textVal(eligibilityID)
	op.SeasonID = textVal(seasonID)
	op.TxRef = textVal(txRef)
	op.ErrorCode = textVal(errorCode)
	op.ErrorDetail = textVal(errorDetail)
	op.RetryOf = textVal(retryOf)
	op.ConfirmedAt = timePtrVal(confirmedAt)
	return &op, nil
}

func insertOperation(ctx context.Context, q querier, op Operation) (*Operation, error) {
	if op.ID == "" {
		op.ID = NewID()
	}
	out, err := scanOperation(q.QueryRow(ctx, `
INSERT INTO operations (id, kind, forge_type, player_id, owner_address, eligibility_id, catalog_item_id, season_id,
  status, stage, retry_of, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', 'created', $9, $10, $10)
RETURNING `+operationColumns,
		op.ID, op.Kind, textParam(string(op.ForgeType)), op.PlayerID, op.OwnerAddress, textParam(op.EligibilityID),
		op.CatalogItemID, textParam(op.SeasonID), textParam(op.RetryOf), op.CreatedAt))
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return out, nil
}

func operationInputs(ctx context.Context, q querier, operationID string) ([]string, error) {
	rows, err := q.Query(ctx, `SELECT ownership_id FROM operation_inputs WHERE operation_id = $1 ORDER BY ownership_id`, operationID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func linkOperationInputs(ctx context.Context, q querier, operationID string, ownershipIDs []string) error {
	_, err := q.Exec(ctx, `
INSERT INTO operation_inputs (operation_id, ownership_id)
SELECT $1, unnest($2::text[])`, operationID, ownershipIDs)
	return err
}

// StartMint creates the pending mint operation for an active, unexpired eligibility together
// with its catalog item in one transaction. When an earlier attempt on the same eligibility failed, its
// already allocated item is reused instead of drawing a new one.
func (s *Store) StartMint(ctx context.Context, p StartMintParams) (*Operation, *CatalogItem, error) {
	var (
		op   *Operation
		item *CatalogItem
	)
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		e, err := lockEligibility(ctx, tx, p.EligibilityID)
		if err != nil {
			return err
		}
		if !eligibilityActive(e) || !e.ExpiresAt.After(p.Now) {
			return ErrConflict
		}

		var prevID, prevItemID string
		err = tx.QueryRow(ctx, `
SELECT o.id, o.catalog_item_id
FROM operations o
WHERE o.eligibility_id = $1 AND o.status = 'failed'
  AND NOT EXISTS (SELECT 1 FROM operations r WHERE r.retry_of = o.id)
ORDER BY o.created_at DESC, o.id DESC
LIMIT 1`, p.EligibilityID).Scan(&prevID, &prevItemID)
		switch {
		case err == nil:
			item, err = scanCatalogItem(tx.QueryRow(ctx, `SELECT `+catalogColumns+` FROM catalog_items WHERE id = $1`, prevItemID))
		case errors.Is(err, pgx.ErrNoRows):
			item, err = allocateCatalogItem(ctx, tx, p.CategoryID, p.Tier, p.Now)
		}
		if err != nil {
			return err
		}

		op, err = insertOperation(ctx, tx, Operation{
			Kind:          rewards.OperationMint,
			PlayerID:      p.PlayerID,
			OwnerAddress:  p.OwnerAddress,
			EligibilityID: p.EligibilityID,
			CatalogItemID: item.ID,
			SeasonID:      p.SeasonID,
			RetryOf:       prevID,
			CreatedAt:     p.Now,
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return op, item, nil
}

// StartForge locks the player's candidate inputs, lets p.Pick choose among them, allocates the
// output item, creates the pending operation and burns the chosen inputs, all in one transaction.
func (s *Store) StartForge(ctx context.Context, p StartForgeParams) (*Operation, *CatalogItem, error) {
	var (
		op   *Operation
		item *CatalogItem
	)
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		candidates, err := lockForgeCandidates(ctx, tx, p.PlayerID, p.Candidates)
		if err != nil {
			return err
		}
		picked, err := p.Pick(candidates)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(picked))
		for _, o := range picked {
			ids = append(ids, o.ID)
		}

		item, err = allocateCatalogItem(ctx, tx, p.OutputCategoryID, p.OutputTier, p.Now)
		if err != nil {
			return err
		}
		op, err = insertOperation(ctx, tx, Operation{
			Kind:          rewards.OperationForge,
			ForgeType:     p.ForgeType,
			PlayerID:      p.PlayerID,
			OwnerAddress:  p.OwnerAddress,
			CatalogItemID: item.ID,
			SeasonID:      p.SeasonID,
			CreatedAt:     p.Now,
		})
		if err != nil {
			return err
		}
		if err := linkOperationInputs(ctx, tx, op.ID, ids); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
UPDATE ownerships
SET burned_at = $2, burned_by_operation_id = $3
WHERE id = ANY($1) AND burned_at IS NULL`, ids, p.Now, op.ID)
		if err != nil {
			return err
		}
		if int(tag.RowsAffected()) != len(ids) {
			return ErrConflict
		}
		op.InputIDs, err = operationInputs(ctx, tx, op.ID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return op, item, nil
}

func (s *Store) GetOperation(ctx context.Context, id string) (*Operation, error) {
	op, err := scanOperation(s.Pool.QueryRow(ctx, `SELECT `+operationColumns+` FROM operations WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if op.Kind == rewards.OperationForge {
		if op.InputIDs, err = operationInputs(ctx, s.Pool, op.ID); err != nil {
			return nil, err
		}
	}
	return op, nil
}

// MarkOperationStage advances a pending operation. A non-empty txRef is recorded with the stage.
func (s *Store) MarkOperationStage(ctx context.Context, id string, stage rewards.Stage, txRef string, now time.Time) error {
	tag, err := s.Pool.Exec(ctx, `
UPDATE operations
SET stage = $2, tx_ref = COALESCE($3, tx_ref), updated_at = $4
WHERE id = $1 AND status = 'pending'`, id, stage, textParam(txRef), now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// FailOperation moves a pending operation to failed. ErrConflict if it is already terminal.
func (s *Store) FailOperation(ctx context.Context, id, code, detail string, now time.Time) (*Operation, error) {
	op, err := scanOperation(s.Pool.QueryRow(ctx, `
UPDATE operations
SET status = 'failed', stage = 'failed', error_code = $2, error_detail = $3, updated_at = $4
WHERE id = $1 AND status = 'pending'
RETURNING `+operationColumns, id, code, detail, now))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrConflict
	}
	return op, err
}

// FinalizeOperation confirms a pending operation, records the ownership and consumes the
// eligibility of a mint in a single transaction.
func (s *Store) FinalizeOperation(ctx context.Context, p FinalizeParams) (*Operation, *Ownership, error) {
	var (
		op  *Operation
		own *Ownership
	)
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		op, err = scanOperation(tx.QueryRow(ctx, `
UPDATE operations
SET status = 'confirmed', stage = 'confirmed', tx_ref = $2, confirmed_at = $3, updated_at = $3
WHERE id = $1 AND status = 'pending'
RETURNING `+operationColumns, p.OperationID, p.TxRef, p.Now))
		if errors.Is(err, ErrNotFound) {
			return ErrConflict
		}
		if err != nil {
			return err
		}
		item, err := scanCatalogItem(tx.QueryRow(ctx, `SELECT `+catalogColumns+` FROM catalog_items WHERE id = $1`, op.CatalogItemID))
		if err != nil {
			return err
		}
		seasonID := op.SeasonID
		if seasonID == "" {
			seasonID = p.SeasonID
		}
		own, err = insertOwnership(ctx, tx, Ownership{
			PlayerID:      op.PlayerID,
			Source:        rewards.OwnershipSource(op.Kind),
			OperationID:   op.ID,
			CatalogItemID: item.ID,
			CategoryID:    item.CategoryID,
			Tier:          item.Tier,
			SeasonID:      seasonID,
			Metadata:      p.Metadata,
			TxRef:         p.TxRef,
			ConfirmedAt:   p.Now,
		})
		if err != nil {
			return err
		}
		if op.EligibilityID != "" {
			if _, err := consumeEligibility(ctx, tx, op.EligibilityID, p.Now); err != nil {
				return err
			}
		}
		if op.Kind == rewards.OperationForge {
			op.InputIDs, err = operationInputs(ctx, tx, op.ID)
		}
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return op, own, nil
}

// RetryOperation opens a new pending operation for a failed one, reusing its catalog item and,
// for forges, its burned inputs. ErrConflict when the operation is not failed, was already
// retried, or its eligibility is no longer active.
func (s *Store) RetryOperation(ctx context.Context, failedID string, now time.Time) (*Operation, error) {
	var op *Operation
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		prev, err := scanOperation(tx.QueryRow(ctx, `SELECT `+operationColumns+` FROM operations WHERE id = $1 FOR UPDATE`, failedID))
		if err != nil {
			return err
		}
		if prev.Status != rewards.OperationFailed {
			return ErrConflict
		}
		if prev.EligibilityID != "" {
			e, err := lockEligibility(ctx, tx, prev.EligibilityID)
			if err != nil {
				return err
			}
			if !eligibilityActive(e) {
				return ErrConflict
			}
		}
		op, err = insertOperation(ctx, tx, Operation{
			Kind:          prev.Kind,
			ForgeType:     prev.ForgeType,
			PlayerID:      prev.PlayerID,
			OwnerAddress:  prev.OwnerAddress,
			EligibilityID: prev.EligibilityID,
			CatalogItemID: prev.CatalogItemID,
			SeasonID:      prev.SeasonID,
			RetryOf:       prev.ID,
			CreatedAt:     now,
		})
		if err != nil {
			return err
		}
		if prev.Kind != rewards.OperationForge {
			return nil
		}
		inputs, err := operationInputs(ctx, tx, prev.ID)
		if err != nil {
			return err
		}
		if err := linkOperationInputs(ctx, tx, op.ID, inputs); err != nil {
			return err
		}
		op.InputIDs = inputs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return op, nil
}

// ItemSubmissions summarizes the ledger transactions earlier operations sent for one catalog
// item. LiveTxRef is the transaction of the latest earlier attempt when the ledger never
// rejected it, so it may still finalize. Rejected counts transactions the ledger reported
// failed.
type ItemSubmissions struct {
	LiveTxRef string
	Rejected  int
}

func (s *Store) ItemSubmissions(ctx context.Context, itemID, excludeOperationID string) (ItemSubmissions, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT tx_ref, COALESCE(error_code, '')
FROM operations
WHERE catalog_item_id = $1 AND id <> $2 AND tx_ref IS NOT NULL
ORDER BY created_at DESC, id DESC`, itemID, excludeOperationID)
	if err != nil {
		return ItemSubmissions{}, err
	}
	defer rows.Close()

	var out ItemSubmissions
	first := true
	for rows.Next() {
		var txRef, code string
		if err := rows.Scan(&txRef, &code); err != nil {
			return ItemSubmissions{}, err
		}
		rejected := code == rewards.ErrExternalFailure.Error()
		if rejected {
			out.Rejected++
		} else if first {
			out.LiveTxRef = txRef
		}
		first = false
	}
	return out, rows.Err()
}

// ListStalePending returns pending operations not touched since before, oldest first.
func (s *Store) ListStalePending(ctx context.Context, before time.Time, limit int) ([]Operation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.Pool.Query(ctx, `
SELECT `+operationColumns+`
FROM operations
WHERE status = 'pending' AND updated_at < $1
ORDER BY updated_at
LIMIT $2`, before, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Operation, error) {
		op, err := scanOperation(row)
		if err != nil {
			return Operation{}, err
		}
		return *op, nil
	})
}
