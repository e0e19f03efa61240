package pgstore_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/almlog/ai-dynamic-painting-sub000/budget"
	"github.com/almlog/ai-dynamic-painting-sub000/budget/pgstore"
)

// newTestStore connects to the database named by TEST_POSTGRES_DSN.
// Skipped when the variable is unset.
func newTestStore(t *testing.T) *pgstore.Store {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping Postgres-backed ledger tests")
	}

	ctx := context.Background()
	s, err := pgstore.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestStore_LoadEmpty(t *testing.T) {
	s := newTestStore(t)

	_, _, err := s.Load(context.Background())
	if err != nil && !errors.Is(err, budget.ErrNoRecord) {
		t.Fatalf("Load = %v, want nil row handling via ErrNoRecord", err)
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	day := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	if err := s.Save(ctx, day, 41.5); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	gotDay, gotSpend, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !gotDay.Equal(day) {
		t.Errorf("day = %v, want %v", gotDay, day)
	}
	if gotSpend != 41.5 {
		t.Errorf("spend = %.2f, want 41.5", gotSpend)
	}

	// Upsert replaces the single row.
	if err := s.Save(ctx, day, 60); err != nil {
		t.Fatalf("second Save error: %v", err)
	}
	_, gotSpend, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if gotSpend != 60 {
		t.Errorf("spend after upsert = %.2f, want 60", gotSpend)
	}
}
