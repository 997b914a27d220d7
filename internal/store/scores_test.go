package store

import (
	"math"
	"sync"
	"testing"
	"time"

	"trivia-rewards/internal/rewards"
)

func TestUpsertPeriodScoreAccumulates(t *testing.T) {
	st, ctx, cleanup := openStore(t)
	defer cleanup()

	first, err := st.UpsertPeriodScore(ctx, ScoreDelta{
		PlayerID: "p1", PeriodID: "2026-03", Scope: rewards.GlobalScope,
		Points: 100, Perfects: 1, ResponseMS: 1200, Sessions: 1, At: testClock,
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first.Version != 1 || first.AvgResponseMS != 1200 || !first.FirstAchievedAt.Equal(testClock) {
		t.Fatalf("unexpected first row: %+v", first)
	}

	second, err := st.UpsertPeriodScore(ctx, ScoreDelta{
		PlayerID: "p1", PeriodID: "2026-03", Scope: rewards.GlobalScope,
		Points: 50, ResponseMS: 600, Sessions: 1, At: testClock.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.Points != 150 || second.PerfectCount != 1 || second.SessionsUsed != 2 || second.Version != 2 {
		t.Fatalf("unexpected totals: %+v", second)
	}
	if math.Abs(second.AvgResponseMS-900) > 1e-9 {
		t.Fatalf("expected weighted mean 900, got %v", second.AvgResponseMS)
	}
	if !second.FirstAchievedAt.Equal(testClock.Add(time.Minute)) {
		t.Fatalf("first_achieved_at should follow the new point total, got %v", second.FirstAchievedAt)
	}

	third, err := st.UpsertPeriodScore(ctx, ScoreDelta{
		PlayerID: "p1", PeriodID: "2026-03", Scope: rewards.GlobalScope,
		ItemsClaimed: 1, At: testClock.Add(2 * time.Minute),
	})
	if err != nil {
		t.Fatalf("third upsert: %v", err)
	}
	if third.ItemsClaimed != 1 || third.AvgResponseMS != second.AvgResponseMS || !third.FirstAchievedAt.Equal(second.FirstAchievedAt) {
		t.Fatalf("item-only delta must not move average or first_achieved_at: %+v", third)
	}
}

func TestUpsertPeriodScoreConcurrentDeltasDoNotLoseUpdates(t *testing.T) {
	st, ctx, cleanup := openStore(t)
	defer cleanup()

	const writers = 16
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.UpsertPeriodScore(ctx, ScoreDelta{
				PlayerID: "p1", PeriodID: "2026-03", Scope: rewards.GlobalScope,
				Points: 10, ResponseMS: 1000, Sessions: 1, At: testClock,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	got, err := st.GetPeriodScore(ctx, "p1", "2026-03", rewards.GlobalScope)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Points != 10*writers || got.SessionsUsed != writers || got.Version != writers {
		t.Fatalf("lost updates: %+v", got)
	}
}

func TestUpsertPeriodScoresRollsBackEveryScopeOnFailure(t *testing.T) {
	st, ctx, cleanup := openStore(t)
	defer cleanup()

	if _, err := st.UpsertPeriodScore(ctx, ScoreDelta{
		PlayerID: "p1", PeriodID: "2026-03", Scope: rewards.GlobalScope,
		Points: 40, ResponseMS: 800, Sessions: 1, At: testClock,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// The category delta violates points >= 0 on insert, after the global row was updated.
	_, err := st.UpsertPeriodScores(ctx, []ScoreDelta{
		{PlayerID: "p1", PeriodID: "2026-03", Scope: rewards.GlobalScope, Points: 10, ResponseMS: 200, Sessions: 1, At: testClock.Add(time.Minute)},
		{PlayerID: "p1", PeriodID: "2026-03", Scope: rewards.CategoryScope("science"), Points: -1, Sessions: 1, At: testClock.Add(time.Minute)},
	})
	if err == nil {
		t.Fatalf("expected the category upsert to fail")
	}

	global, err := st.GetPeriodScore(ctx, "p1", "2026-03", rewards.GlobalScope)
	if err != nil {
		t.Fatalf("get global: %v", err)
	}
	if global.Points != 40 || global.SessionsUsed != 1 || global.Version != 1 || global.AvgResponseMS != 800 {
		t.Fatalf("global row moved despite rollback: %+v", global)
	}
	if _, err := st.GetPeriodScore(ctx, "p1", "2026-03", rewards.CategoryScope("science")); err != ErrNotFound {
		t.Fatalf("expected no category row, got %v", err)
	}

	rows, err := st.UpsertPeriodScores(ctx, []ScoreDelta{
		{PlayerID: "p1", PeriodID: "2026-03", Scope: rewards.GlobalScope, Points: 10, ResponseMS: 200, Sessions: 1, At: testClock.Add(time.Minute)},
		{PlayerID: "p1", PeriodID: "2026-03", Scope: rewards.CategoryScope("science"), Points: 10, ResponseMS: 200, Sessions: 1, At: testClock.Add(time.Minute)},
	})
	if err != nil {
		t.Fatalf("upsert both: %v", err)
	}
	if len(rows) != 2 || rows[0].Scope != rewards.GlobalScope || rows[0].Points != 50 || rows[1].Points != 10 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestListPeriodScoresPagesByPlayer(t *testing.T) {
	st, ctx, cleanup := openStore(t)
	defer cleanup()

	for _, p := range []string{"c", "a", "b"} {
		if _, err := st.UpsertPeriodScore(ctx, ScoreDelta{PlayerID: p, PeriodID: "2026-03", Scope: rewards.GlobalScope, Points: 1, At: testClock}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if _, err := st.UpsertPeriodScore(ctx, ScoreDelta{PlayerID: "a", PeriodID: "2026-03", Scope: rewards.CategoryScope("science"), Points: 1, At: testClock}); err != nil {
		t.Fatalf("upsert category: %v", err)
	}

	page, err := st.ListPeriodScores(ctx, "2026-03", rewards.GlobalScope, "", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 || page[0].PlayerID != "a" || page[1].PlayerID != "b" {
		t.Fatalf("unexpected first page: %+v", page)
	}
	page, err = st.ListPeriodScores(ctx, "2026-03", rewards.GlobalScope, page[1].PlayerID, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 1 || page[0].PlayerID != "c" {
		t.Fatalf("unexpected second page: %+v", page)
	}
}

func TestActiveSeasonHonoursGraceDays(t *testing.T) {
	st, ctx, cleanup := openStore(t)
	defer cleanup()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := st.UpsertSeason(ctx, Season{ID: "s1", Name: "Winter", StartsAt: start, EndsAt: start.AddDate(0, 3, 0), GraceDays: 7}); err != nil {
		t.Fatalf("upsert season: %v", err)
	}
	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before", start.Add(-time.Hour), false},
		{"inside", start.AddDate(0, 1, 0), true},
		{"grace", start.AddDate(0, 3, 3), true},
		{"after grace", start.AddDate(0, 3, 8), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := st.ActiveSeason(ctx, tc.at)
			if tc.want {
				if err != nil || s.ID != "s1" {
					t.Fatalf("expected s1, got %+v err=%v", s, err)
				}
				return
			}
			if err != ErrNotFound {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}
