package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"

	"github.com/openraffle/raffle_layer/internal/app/domain/custody"
	"github.com/openraffle/raffle_layer/internal/app/domain/raffle"
)

// TestStore_Integration exercises the real schema. It only runs when
// POSTGRES_TEST_DSN points at a disposable database.
func TestStore_Integration(t *testing.T) {
	_ = godotenv.Load() // allow .env for local runs
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	store, err := Open(dsn, 4)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	now := time.Now().UTC()

	created, err := store.CreateRaffle(ctx, raffle.Raffle{
		Creator:      "alice",
		PaymentAsset: raffle.NativeAsset,
		TicketPrice:  10,
		MinTickets:   3,
		StartTime:    now.Add(-2 * time.Hour),
		EndTime:      now.Add(-time.Hour),
		TotalWeight:  raffle.BaseWeight,
		Prizes: []raffle.Prize{{
			Collection: "art", Instance: "1", Contributor: "alice", Weight: raffle.BaseWeight,
		}},
		Weights: map[string]uint64{"alice": raffle.BaseWeight},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer store.DeleteRaffle(ctx, created.ID) //nolint:errcheck

	if err := store.AppendTicketBatch(ctx, created.ID, raffle.TicketBatch{Buyer: "bob", End: 5}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.AppendTicketBatch(ctx, created.ID, raffle.TicketBatch{Buyer: "carol", End: 8}); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := store.GetRaffle(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TotalSold() != 8 {
		t.Fatalf("total sold %d, want 8", got.TotalSold())
	}
	if len(got.Batches) != 2 || got.Batches[0].Buyer != "bob" {
		t.Fatalf("unexpected batches: %+v", got.Batches)
	}
	if got.Weights["alice"] != raffle.BaseWeight {
		t.Fatalf("weights did not round-trip: %+v", got.Weights)
	}

	due, err := store.ListAwaitingSeed(ctx, now)
	if err != nil {
		t.Fatalf("list awaiting seed: %v", err)
	}
	found := false
	for _, r := range due {
		if r.ID == created.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("undrawn ended raffle should be awaiting seed")
	}

	got.Seed = 7
	if _, err := store.UpdateRaffle(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	due, err = store.ListAwaitingSeed(ctx, now)
	if err != nil {
		t.Fatalf("list awaiting seed: %v", err)
	}
	for _, r := range due {
		if r.ID == created.ID {
			t.Fatal("drawn raffle should not be awaiting seed")
		}
	}

	if err := store.PutBalance(ctx, custody.Balance{Account: "it-alice", Asset: "native", Amount: 42}); err != nil {
		t.Fatalf("put balance: %v", err)
	}
	bal, err := store.GetBalance(ctx, "it-alice", "native")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if bal.Amount != 42 {
		t.Fatalf("balance %d, want 42", bal.Amount)
	}
}
