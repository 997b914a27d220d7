package store

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"trivia-rewards/internal/config"
	"trivia-rewards/internal/rewards"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var testSchemaNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func openStore(t *testing.T) (*Store, context.Context, func()) {
	t.Helper()
	cfg, err := config.LoadTest()
	if err != nil {
		t.Skipf("skip test db: %v", err)
	}
	dsn := cfg.TestPostgresDSN
	schema := fmt.Sprintf("test_%d", time.Now().UnixNano())
	base, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open base db: %v", err)
	}
	createSchemaSQL, err := schemaDDL("CREATE SCHEMA %s", schema)
	if err != nil {
		base.Close()
		t.Fatalf("invalid schema name: %v", err)
	}
	if _, err := base.Exec(context.Background(), createSchemaSQL); err != nil {
		base.Close()
		t.Fatalf("create schema: %v", err)
	}
	base.Close()

	st, err := New(withSearchPath(dsn, schema))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := applySchema(st); err != nil {
		st.Close()
		t.Fatalf("apply schema: %v", err)
	}
	cleanup := func() {
		st.Close()
		base, err := pgxpool.New(context.Background(), dsn)
		if err == nil {
			if dropSchemaSQL, ddlErr := schemaDDL("DROP SCHEMA %s CASCADE", schema); ddlErr == nil {
				_, _ = base.Exec(context.Background(), dropSchemaSQL)
			}
			base.Close()
		}
	}
	return st, context.Background(), cleanup
}

func applySchema(st *Store) error {
	path, err := findInitMigrationPath()
	if err != nil {
		return err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = st.Pool.Exec(context.Background(), string(b))
	return err
}

func findInitMigrationPath() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		p := filepath.Join(dir, "migrations", "000001_init.up.sql")
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("000001_init.up.sql not found from %s", dir)
}

func withSearchPath(dsn, schema string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "search_path=" + url.QueryEscape(schema)
}

func schemaDDL(format, schema string) (string, error) {
	if !testSchemaNamePattern.MatchString(schema) {
		return "", fmt.Errorf("schema %q does not match required pattern", schema)
	}
	return fmt.Sprintf(format, pgx.Identifier{schema}.Sanitize()), nil
}

var testClock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func mustCreateEligibility(t *testing.T, st *Store, ctx context.Context, playerID, categoryID string, ttl time.Duration) *Eligibility {
	t.Helper()
	e, err := st.CreateEligibility(ctx, Eligibility{
		Kind:       rewards.EligibilityCategory,
		CategoryID: categoryID,
		PlayerID:   playerID,
		SessionID:  NewID(),
		CreatedAt:  testClock,
		ExpiresAt:  testClock.Add(ttl),
	})
	if err != nil {
		t.Fatalf("create eligibility: %v", err)
	}
	return e
}

func mustSeedItems(t *testing.T, st *Store, ctx context.Context, categoryID string, tier rewards.Tier, n int) {
	t.Helper()
	items := make([]CatalogItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, CatalogItem{
			CategoryID: categoryID,
			Tier:       tier,
			Name:       fmt.Sprintf("%s item %d", categoryID, i),
			Attributes: map[string]any{"index": i},
		})
	}
	inserted, err := st.InsertCatalogItems(ctx, items)
	if err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	if inserted != n {
		t.Fatalf("expected %d items inserted, got %d", n, inserted)
	}
}

// mustOwn runs n claims to confirmation so the player holds n category-tier items.
func mustOwn(t *testing.T, st *Store, ctx context.Context, playerID, categoryID string, n int) []Ownership {
	t.Helper()
	mustSeedItems(t, st, ctx, categoryID, rewards.TierCategory, n)
	out := make([]Ownership, 0, n)
	for i := 0; i < n; i++ {
		e := mustCreateEligibility(t, st, ctx, playerID, categoryID, time.Hour)
		op, _, err := st.StartMint(ctx, StartMintParams{
			EligibilityID: e.ID,
			PlayerID:      playerID,
			OwnerAddress:  "addr_" + playerID,
			CategoryID:    categoryID,
			Tier:          rewards.TierCategory,
			Now:           testClock,
		})
		if err != nil {
			t.Fatalf("start mint: %v", err)
		}
		_, own, err := st.FinalizeOperation(ctx, FinalizeParams{OperationID: op.ID, TxRef: "tx_" + op.ID, Now: testClock})
		if err != nil {
			t.Fatalf("finalize mint: %v", err)
		}
		out = append(out, *own)
	}
	return out
}
