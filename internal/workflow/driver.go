package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"trivia-rewards/internal/config"
	"trivia-rewards/internal/contentstore"
	"trivia-rewards/internal/eligibility"
	"trivia-rewards/internal/ledger"
	"trivia-rewards/internal/rewards"
	"trivia-rewards/internal/store"

	"github.com/rs/zerolog/log"
)

// Driver runs claims and forges from allocation to a terminal operation state.
type Driver struct {
	store       *store.Store
	eligibility *eligibility.Manager
	ledger      ledger.Ledger
	content     contentstore.ContentStore
	cfg         config.EngineConfig
	now         func() time.Time
	onConfirmed []func(ctx context.Context, own *store.Ownership)
}

func NewDriver(st *store.Store, elig *eligibility.Manager, l ledger.Ledger, cs contentstore.ContentStore, cfg config.EngineConfig) *Driver {
	return &Driver{
		store:       st,
		eligibility: elig,
		ledger:      l,
		content:     cs,
		cfg:         cfg,
		now:         time.Now,
	}
}

func (d *Driver) WithClock(now func() time.Time) *Driver {
	d.now = now
	return d
}

// OnConfirmed registers a hook run after an operation is confirmed and its ownership stored.
func (d *Driver) OnConfirmed(fn func(ctx context.Context, own *store.Ownership)) {
	d.onConfirmed = append(d.onConfirmed, fn)
}

// Result is the terminal view of one operation.
type Result struct {
	Operation *store.Operation   `json:"operation"`
	Item      *store.CatalogItem `json:"item,omitempty"`
	Ownership *store.Ownership   `json:"ownership,omitempty"`
}

type ClaimRequest struct {
	EligibilityID string `json:"eligibility_id"`
	PlayerID      string `json:"player_id"`
	OwnerAddress  string `json:"owner_address"`
}

// Claim redeems an eligibility for one catalog item. Precondition failures (expired, already
// used, out of stock) are returned as errors before any external call; once the operation is
// pending, the result always carries a confirmed or failed operation.
func (d *Driver) Claim(ctx context.Context, req ClaimRequest) (*Result, error) {
	if strings.TrimSpace(req.EligibilityID) == "" || strings.TrimSpace(req.PlayerID) == "" || strings.TrimSpace(req.OwnerAddress) == "" {
		return nil, rewards.ErrInvalidRequest
	}
	e, err := d.eligibility.Validate(ctx, req.EligibilityID)
	if err != nil {
		return nil, err
	}
	if e.PlayerID != req.PlayerID {
		return nil, rewards.ErrNotFound
	}

	categoryID, seasonID := e.CategoryID, ""
	if e.Kind == rewards.EligibilitySeason {
		categoryID, seasonID = e.SeasonID, e.SeasonID
	}
	op, item, err := d.store.StartMint(ctx, store.StartMintParams{
		EligibilityID: e.ID,
		PlayerID:      e.PlayerID,
		OwnerAddress:  req.OwnerAddress,
		CategoryID:    categoryID,
		Tier:          rewards.ClaimTier(e.Kind),
		SeasonID:      seasonID,
		Now:           d.now(),
	})
	switch {
	case errors.Is(err, store.ErrNoneAvailable):
		return nil, rewards.ErrOutOfStock
	case errors.Is(err, store.ErrNotFound):
		return nil, rewards.ErrNotFound
	case errors.Is(err, store.ErrConflict):
		// another claim holds or used the eligibility; report what is left of it
		if _, verr := d.eligibility.Validate(ctx, e.ID); verr != nil {
			return nil, verr
		}
		return nil, rewards.ErrAlreadyUsed
	case err != nil:
		return nil, err
	}
	countOperation(op.Kind, "started")
	return d.run(ctx, op, item)
}

type ForgeRequest struct {
	PlayerID     string            `json:"player_id"`
	OwnerAddress string            `json:"owner_address"`
	Type         rewards.ForgeType `json:"type"`
	CategoryID   string            `json:"category_id,omitempty"`
	InputIDs     []string          `json:"input_ids,omitempty"`
}

// Forge burns the qualifying inputs and realizes one higher-tier item. Inputs are burned in the
// same transaction that creates the pending operation; a shortfall burns nothing and returns
// an *rewards.InsufficientInputsError.
func (d *Driver) Forge(ctx context.Context, req ForgeRequest) (*Result, error) {
	if strings.TrimSpace(req.PlayerID) == "" || strings.TrimSpace(req.OwnerAddress) == "" || !req.Type.Valid() {
		return nil, rewards.ErrInvalidRequest
	}
	now := d.now()
	params := store.StartForgeParams{
		PlayerID:     req.PlayerID,
		OwnerAddress: req.OwnerAddress,
		ForgeType:    req.Type,
		OutputTier:   req.Type.OutputTier(),
		Now:          now,
	}
	switch req.Type {
	case rewards.ForgeCategory:
		if req.CategoryID == "" || req.CategoryID == rewards.MasterCategoryID {
			return nil, fmt.Errorf("%w: category forge needs a category", rewards.ErrInvalidRequest)
		}
		params.Candidates = store.OwnershipFilter{Tier: rewards.TierCategory, CategoryID: req.CategoryID}
		params.Pick = pickN(d.cfg.CategoryForgeInputs, req.InputIDs)
		params.OutputCategoryID = req.CategoryID
	case rewards.ForgeMaster:
		categories, err := d.store.ListCategories(ctx, rewards.TierCategory)
		if err != nil {
			return nil, err
		}
		params.Candidates = store.OwnershipFilter{Tier: rewards.TierCategory, ExcludeCategoryID: rewards.MasterCategoryID}
		params.Pick = pickDistinctCategories(d.cfg.MasterForgeCategories, req.InputIDs, categories)
		params.OutputCategoryID = rewards.MasterCategoryID
	case rewards.ForgeSeason:
		season, err := d.store.ActiveSeason(ctx, now)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: no active season", rewards.ErrInvalidState)
		}
		if err != nil {
			return nil, err
		}
		params.Candidates = store.OwnershipFilter{Tier: rewards.TierCategory, SeasonID: season.ID}
		params.Pick = pickN(d.cfg.SeasonForgeInputs, req.InputIDs)
		params.OutputCategoryID = season.ID
		params.SeasonID = season.ID
	}

	op, item, err := d.store.StartForge(ctx, params)
	switch {
	case errors.Is(err, store.ErrNoneAvailable):
		return nil, rewards.ErrOutOfStock
	case errors.Is(err, store.ErrConflict):
		return nil, rewards.ErrConcurrencyConflict
	case err != nil:
		return nil, err
	}
	countOperation(op.Kind, "started")
	return d.run(ctx, op, item)
}

// Retry reruns a failed operation as a new pending one on the same item and inputs.
func (d *Driver) Retry(ctx context.Context, operationID, playerID string) (*Result, error) {
	prev, err := d.store.GetOperation(ctx, operationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, rewards.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if prev.PlayerID != playerID {
		return nil, rewards.ErrNotFound
	}
	if prev.Status != rewards.OperationFailed {
		return nil, fmt.Errorf("%w: operation is %s", rewards.ErrInvalidState, prev.Status)
	}
	if prev.EligibilityID != "" {
		if _, err := d.eligibility.Validate(ctx, prev.EligibilityID); err != nil {
			return nil, err
		}
	}

	op, err := d.store.RetryOperation(ctx, prev.ID, d.now())
	if errors.Is(err, store.ErrConflict) {
		return nil, rewards.ErrAlreadyUsed
	}
	if err != nil {
		return nil, err
	}
	item, err := d.store.GetCatalogItem(ctx, op.CatalogItemID)
	if err != nil {
		return nil, err
	}
	countOperation(op.Kind, "retried")
	log.Info().Str("operation_id", op.ID).Str("retry_of", prev.ID).Msg("operation_retry")
	return d.run(ctx, op, item)
}

type Status struct {
	Operation *store.Operation `json:"operation"`
	// Stale is set on pending operations untouched for longer than the staleness threshold.
	Stale bool `json:"stale"`
}

func (d *Driver) Status(ctx context.Context, operationID string) (*Status, error) {
	op, err := d.store.GetOperation(ctx, operationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, rewards.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	stale := !op.Status.Terminal() && d.now().Sub(op.UpdatedAt) > d.cfg.PendingStaleAfter
	return &Status{Operation: op, Stale: stale}, nil
}

// Inventory lists what the player currently holds.
func (d *Driver) Inventory(ctx context.Context, playerID string) ([]store.Ownership, error) {
	return d.store.ListOwnerships(ctx, playerID, false)
}
