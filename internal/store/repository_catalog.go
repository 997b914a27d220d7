package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trivia-rewards/internal/rewards"

	"github.com/gosimple/slug"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const catalogColumns = `id, category_id, tier, name, slug, attributes, artwork_address, is_allocated, allocated_at, pin_address, created_at`

func scanCatalogItem(row pgx.Row) (*CatalogItem, error) {
	var (
		it          CatalogItem
		allocatedAt pgtype.Timestamptz
		pin         pgtype.Text
	)
	if err := row.Scan(&it.ID, &it.CategoryID, &it.Tier, &it.Name, &it.Slug, &it.Attributes, &it.ArtworkAddress,
		&it.IsAllocated, &allocatedAt, &pin, &it.CreatedAt); err != nil {
		return nil, mapNotFound(err)
	}
	it.AllocatedAt = timePtrVal(allocatedAt)
	it.PinAddress = textVal(pin)
	return &it, nil
}

// CatalogSlug is the unique slug of an item; names only need to be unique within category and tier.
func CatalogSlug(categoryID string, tier rewards.Tier, name string) string {
	return slug.Make(fmt.Sprintf("%s %s %s", categoryID, tier, name))
}

// InsertCatalogItems stores new unallocated items, skipping slugs that already exist, and
// returns how many rows were inserted.
func (s *Store) InsertCatalogItems(ctx context.Context, items []CatalogItem) (int, error) {
	inserted := 0
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		for _, it := range items {
			if it.ID == "" {
				it.ID = NewID()
			}
			if it.Slug == "" {
				it.Slug = CatalogSlug(it.CategoryID, it.Tier, it.Name)
			}
			if it.Attributes == nil {
				it.Attributes = map[string]any{}
			}
			tag, err := tx.Exec(ctx, `
INSERT INTO catalog_items (id, category_id, tier, name, slug, attributes, artwork_address)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (slug) DO NOTHING`,
				it.ID, it.CategoryID, it.Tier, it.Name, it.Slug, it.Attributes, it.ArtworkAddress)
			if err != nil {
				return err
			}
			inserted += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (s *Store) GetCatalogItem(ctx context.Context, id string) (*CatalogItem, error) {
	return scanCatalogItem(s.Pool.QueryRow(ctx, `SELECT `+catalogColumns+` FROM catalog_items WHERE id = $1`, id))
}

func (s *Store) CountUnallocated(ctx context.Context, categoryID string, tier rewards.Tier) (int, error) {
	var n int
	err := s.Pool.QueryRow(ctx, `
SELECT count(*) FROM catalog_items
WHERE category_id = $1 AND tier = $2 AND NOT is_allocated`, categoryID, tier).Scan(&n)
	return n, err
}

// AllocateCatalogItem flips one random unallocated item of the category and tier to allocated.
// Concurrent callers never receive the same row; ErrNoneAvailable when nothing is left.
func (s *Store) AllocateCatalogItem(ctx context.Context, categoryID string, tier rewards.Tier, now time.Time) (*CatalogItem, error) {
	return allocateCatalogItem(ctx, s.Pool, categoryID, tier, now)
}

func allocateCatalogItem(ctx context.Context, q querier, categoryID string, tier rewards.Tier, now time.Time) (*CatalogItem, error) {
	it, err := scanCatalogItem(q.QueryRow(ctx, `
UPDATE catalog_items
SET is_allocated = true, allocated_at = $3
WHERE id = (
  SELECT id FROM catalog_items
  WHERE category_id = $1 AND tier = $2 AND NOT is_allocated
  ORDER BY random()
  LIMIT 1
  FOR UPDATE SKIP LOCKED
) AND NOT is_allocated
RETURNING `+catalogColumns, categoryID, tier, now))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNoneAvailable
	}
	return it, err
}

// SetCatalogItemPin records the content address unless one is already set, and returns the
// address that is stored afterwards.
func (s *Store) SetCatalogItemPin(ctx context.Context, id, address string) (string, error) {
	var stored string
	err := s.Pool.QueryRow(ctx, `
UPDATE catalog_items
SET pin_address = COALESCE(pin_address, $2)
WHERE id = $1
RETURNING pin_address`, id, address).Scan(&stored)
	if err != nil {
		return "", mapNotFound(err)
	}
	return stored, nil
}

// ListCategories returns the distinct categories that have catalog items of the tier.
func (s *Store) ListCategories(ctx context.Context, tier rewards.Tier) ([]string, error) {
	rows, err := s.Pool.Query(ctx, `SELECT DISTINCT category_id FROM catalog_items WHERE tier = $1 ORDER BY category_id`, tier)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
