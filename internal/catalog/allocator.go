package catalog

import (
	"context"
	"errors"
	"time"

	"trivia-rewards/internal/rewards"
	"trivia-rewards/internal/store"

	"github.com/rs/zerolog/log"
)

type Availability struct {
	CategoryID string       `json:"category_id"`
	Tier       rewards.Tier `json:"tier"`
	Remaining  int          `json:"remaining"`
	Available  bool         `json:"available"`
}

type Allocator struct {
	store *store.Store
	now   func() time.Time
}

func NewAllocator(st *store.Store) *Allocator {
	return &Allocator{store: st, now: time.Now}
}

func (a *Allocator) WithClock(now func() time.Time) *Allocator {
	a.now = now
	return a
}

// CheckAvailability counts unallocated items. The answer is advisory; a later AllocateOne may
// still find nothing left.
func (a *Allocator) CheckAvailability(ctx context.Context, categoryID string, tier rewards.Tier) (*Availability, error) {
	if categoryID == "" || !tier.Valid() {
		return nil, rewards.ErrInvalidRequest
	}
	n, err := a.store.CountUnallocated(ctx, categoryID, tier)
	if err != nil {
		return nil, err
	}
	return &Availability{CategoryID: categoryID, Tier: tier, Remaining: n, Available: n > 0}, nil
}

// AllocateOne reserves one random unallocated item. Concurrent calls never share an item; when
// nothing is left the caller gets ErrOutOfStock and should back off rather than spin.
func (a *Allocator) AllocateOne(ctx context.Context, categoryID string, tier rewards.Tier) (*store.CatalogItem, error) {
	if categoryID == "" || !tier.Valid() {
		return nil, rewards.ErrInvalidRequest
	}
	it, err := a.store.AllocateCatalogItem(ctx, categoryID, tier, a.now())
	if errors.Is(err, store.ErrNoneAvailable) {
		log.Info().Str("category_id", categoryID).Str("tier", string(tier)).Msg("catalog_out_of_stock")
		return nil, rewards.ErrOutOfStock
	}
	if err != nil {
		return nil, err
	}
	return it, nil
}
