package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"

	"trivia-rewards/internal/rewards"
	"trivia-rewards/internal/testutil"
)

func TestCheckAvailabilityIsAdvisory(t *testing.T) {
	st := testutil.OpenTestStore(t)
	testutil.SeedCatalog(t, st, "science", rewards.TierCategory, 2)
	a := NewAllocator(st)
	ctx := context.Background()

	av, err := a.CheckAvailability(ctx, "science", rewards.TierCategory)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if av.Remaining != 2 || !av.Available {
		t.Fatalf("unexpected availability %+v", av)
	}
	for i := 0; i < 2; i++ {
		if _, err := a.AllocateOne(ctx, "science", rewards.TierCategory); err != nil {
			t.Fatalf("allocate: %v", err)
		}
	}
	av, _ = a.CheckAvailability(ctx, "science", rewards.TierCategory)
	if av.Remaining != 0 || av.Available {
		t.Fatalf("expected sold out, got %+v", av)
	}
	if _, err := a.AllocateOne(ctx, "science", rewards.TierCategory); !errors.Is(err, rewards.ErrOutOfStock) {
		t.Fatalf("expected out of stock, got %v", err)
	}
}

func TestAllocateOneRejectsBadInput(t *testing.T) {
	st := testutil.OpenTestStore(t)
	a := NewAllocator(st)
	if _, err := a.AllocateOne(context.Background(), "", rewards.TierCategory); !errors.Is(err, rewards.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
	if _, err := a.CheckAvailability(context.Background(), "science", "mythic"); !errors.Is(err, rewards.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}

func TestAllocateOneParallelCallers(t *testing.T) {
	st := testutil.OpenTestStore(t)
	const callers, available = 16, 5
	testutil.SeedCatalog(t, st, "science", rewards.TierCategory, available)
	a := NewAllocator(st)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		seen     = map[string]bool{}
		outOfStk int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			it, err := a.AllocateOne(context.Background(), "science", rewards.TierCategory)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				if seen[it.ID] {
					t.Errorf("item %s allocated twice", it.ID)
				}
				seen[it.ID] = true
			case errors.Is(err, rewards.ErrOutOfStock):
				outOfStk++
			default:
				t.Errorf("allocate: %v", err)
			}
		}()
	}
	wg.Wait()
	if len(seen) != available || outOfStk != callers-available {
		t.Fatalf("expected %d allocated and %d out of stock, got %d and %d", available, callers-available, len(seen), outOfStk)
	}
}
