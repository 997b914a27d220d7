package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trivia-rewards/internal/contentstore"
	"trivia-rewards/internal/ledger"
	"trivia-rewards/internal/rewards"
	"trivia-rewards/internal/store"

	"github.com/rs/zerolog/log"
)

func (d *Driver) pinPolicy() rewards.CallPolicy {
	return rewards.CallPolicy{Timeout: d.cfg.PinTimeout, Attempts: d.cfg.PinAttempts, Backoff: d.cfg.ExternalRetryBackoff}
}

func (d *Driver) submitPolicy() rewards.CallPolicy {
	return rewards.CallPolicy{Timeout: d.cfg.SubmitTimeout, Attempts: d.cfg.SubmitAttempts, Backoff: d.cfg.ExternalRetryBackoff}
}

func (d *Driver) pollPolicy() rewards.CallPolicy {
	return rewards.CallPolicy{Timeout: d.cfg.ConfirmPollTimeout, Attempts: 1}
}

func itemMetadata(it *store.CatalogItem) contentstore.Metadata {
	return contentstore.Metadata{
		Name:       it.Name,
		Slug:       it.Slug,
		Category:   it.CategoryID,
		Tier:       it.Tier,
		Image:      it.ArtworkAddress,
		Attributes: it.Attributes,
	}
}

// run drives a pending operation through pin, submit and confirm. It detaches from the
// caller's cancellation so an abandoned request still ends in a terminal state; the external
// calls carry their own timeouts.
func (d *Driver) run(ctx context.Context, op *store.Operation, item *store.CatalogItem) (*Result, error) {
	ctx = context.WithoutCancel(ctx)
	res := &Result{Operation: op, Item: item}

	addr, err := d.pin(ctx, op, item)
	if err != nil {
		return d.fail(ctx, res, err)
	}
	txRef, err := d.submit(ctx, op, item, addr)
	if err != nil {
		return d.fail(ctx, res, err)
	}
	conf, err := d.awaitFinality(ctx, txRef)
	if err != nil {
		return d.fail(ctx, res, err)
	}
	if conf.Status == ledger.StatusFailed {
		detail := conf.Detail
		if detail == "" {
			detail = "ledger reported failure"
		}
		return d.fail(ctx, res, fmt.Errorf("%w: %s", rewards.ErrExternalFailure, detail))
	}
	return d.finalize(ctx, res, txRef, addr)
}

// pin is skipped when an earlier attempt already pinned the item.
func (d *Driver) pin(ctx context.Context, op *store.Operation, item *store.CatalogItem) (string, error) {
	if item.PinAddress != "" {
		op.Stage = rewards.StagePinned
		return item.PinAddress, d.store.MarkOperationStage(ctx, op.ID, rewards.StagePinned, "", d.now())
	}
	addr, err := d.content.Pin(ctx, d.pinPolicy(), itemMetadata(item))
	if err != nil {
		return "", err
	}
	stored, err := d.store.SetCatalogItemPin(ctx, item.ID, addr)
	if err != nil {
		return "", err
	}
	item.PinAddress = stored
	op.Stage = rewards.StagePinned
	return stored, d.store.MarkOperationStage(ctx, op.ID, rewards.StagePinned, "", d.now())
}

// submit sends the item to the ledger. An earlier attempt's transaction that the ledger never
// rejected is adopted instead, since it may still finalize. The idempotency key belongs to the
// item and changes only after the ledger rejected a transaction for it, so one item is never
// minted twice.
func (d *Driver) submit(ctx context.Context, op *store.Operation, item *store.CatalogItem, addr string) (string, error) {
	prior, err := d.store.ItemSubmissions(ctx, item.ID, op.ID)
	if err != nil {
		return "", err
	}
	txRef := prior.LiveTxRef
	if txRef != "" {
		log.Info().
			Str("operation_id", op.ID).
			Str("catalog_item_id", item.ID).
			Str("tx_ref", txRef).
			Msg("operation_adopted_prior_tx")
	} else {
		txRef, err = d.ledger.Submit(ctx, d.submitPolicy(), ledger.SubmitRequest{
			IdempotencyKey:  submitKey(item.ID, prior.Rejected),
			AssetName:       item.Slug,
			MetadataAddress: addr,
			OwnerAddress:    op.OwnerAddress,
			BurnRefs:        op.InputIDs,
		})
		if err != nil {
			return "", err
		}
	}
	op.Stage = rewards.StageSubmitted
	op.TxRef = txRef
	return txRef, d.store.MarkOperationStage(ctx, op.ID, rewards.StageSubmitted, txRef, d.now())
}

func submitKey(itemID string, rejected int) string {
	if rejected == 0 {
		return itemID
	}
	return fmt.Sprintf("%s.%d", itemID, rejected)
}

// awaitFinality polls until the ledger reports a final status, backing off exponentially from
// the initial to the max interval, and gives up with ErrExternalTimeout after the max wait.
func (d *Driver) awaitFinality(ctx context.Context, txRef string) (ledger.Confirmation, error) {
	waitCtx, cancel := context.WithTimeout(ctx, d.cfg.ConfirmMaxWait)
	defer cancel()

	interval := d.cfg.ConfirmInitialInterval
	for polls := 1; ; polls++ {
		conf, err := d.ledger.Confirm(waitCtx, d.pollPolicy(), txRef)
		switch {
		case err == nil && conf.Status != ledger.StatusPending:
			return conf, nil
		case err != nil && rewards.IsPermanent(err):
			return ledger.Confirmation{}, err
		case err != nil:
			log.Debug().Err(err).Str("tx_ref", txRef).Int("poll", polls).Msg("confirm poll failed")
		}

		t := time.NewTimer(interval)
		select {
		case <-waitCtx.Done():
			t.Stop()
			return ledger.Confirmation{}, fmt.Errorf("%w: not final after %s (%d polls)", rewards.ErrExternalTimeout, d.cfg.ConfirmMaxWait, polls)
		case <-t.C:
		}
		interval *= 2
		if interval > d.cfg.ConfirmMaxInterval {
			interval = d.cfg.ConfirmMaxInterval
		}
	}
}

func (d *Driver) finalize(ctx context.Context, res *Result, txRef, addr string) (*Result, error) {
	now := d.now()
	seasonID := ""
	if season, err := d.store.ActiveSeason(ctx, now); err == nil {
		seasonID = season.ID
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Warn().Err(err).Str("operation_id", res.Operation.ID).Msg("active season lookup failed")
	}

	meta := map[string]any{
		"name":             res.Item.Name,
		"slug":             res.Item.Slug,
		"category":         res.Item.CategoryID,
		"tier":             string(res.Item.Tier),
		"metadata_address": addr,
	}
	if len(res.Item.Attributes) > 0 {
		meta["attributes"] = res.Item.Attributes
	}
	op, own, err := d.store.FinalizeOperation(ctx, store.FinalizeParams{
		OperationID: res.Operation.ID,
		TxRef:       txRef,
		Metadata:    meta,
		SeasonID:    seasonID,
		Now:         now,
	})
	if err != nil {
		// the ledger holds the asset but our records do not; leave a trail for reconciliation
		log.Error().Err(err).
			Str("operation_id", res.Operation.ID).
			Str("tx_ref", txRef).
			Bool("reconcile", true).
			Msg("operation finalize failed")
		return d.fail(ctx, res, err)
	}
	res.Operation = op
	res.Ownership = own
	countOperation(op.Kind, "confirmed")
	log.Info().
		Str("operation_id", op.ID).
		Str("kind", string(op.Kind)).
		Str("player_id", op.PlayerID).
		Str("catalog_item_id", op.CatalogItemID).
		Str("tx_ref", op.TxRef).
		Msg("operation_confirmed")
	for _, fn := range d.onConfirmed {
		fn(ctx, own)
	}
	return res, nil
}

// fail records the failure on the operation. The allocated item stays allocated and, for a
// mint, the eligibility stays active so the same operation can be retried.
func (d *Driver) fail(ctx context.Context, res *Result, cause error) (*Result, error) {
	code := rewards.Code(cause)
	reached := res.Operation.Stage
	op, err := d.store.FailOperation(ctx, res.Operation.ID, code, cause.Error(), d.now())
	if err != nil {
		log.Error().Err(err).
			AnErr("cause", cause).
			Str("operation_id", res.Operation.ID).
			Msg("operation left pending; fail transition not recorded")
		return res, fmt.Errorf("record failure of %s: %w", res.Operation.ID, err)
	}
	op.InputIDs = res.Operation.InputIDs
	res.Operation = op
	countOperation(op.Kind, "failed")
	log.Warn().
		Str("operation_id", op.ID).
		Str("kind", string(op.Kind)).
		Str("stage_reached", string(reached)).
		Str("catalog_item_id", op.CatalogItemID).
		Str("error_code", code).
		Str("error_detail", op.ErrorDetail).
		Bool("reconcile", true).
		Msg("operation_failed")
	return res, nil
}
