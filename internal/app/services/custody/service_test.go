package custody

import (
	"context"
	"errors"
	"testing"

	"github.com/openraffle/raffle_layer/internal/app/domain/raffle"
	"github.com/openraffle/raffle_layer/internal/app/storage/memory"
)

func TestService_FungibleTransfers(t *testing.T) {
	ctx := context.Background()
	svc := New(memory.New(), nil)

	if err := svc.Deposit(ctx, "alice", "native", 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := svc.Deposit(ctx, "alice", "native", 0); !errors.Is(err, raffle.ErrNoOp) {
		t.Fatalf("zero deposit should fail, got %v", err)
	}

	if err := svc.TransferFungible(ctx, "native", "alice", "bob", 40); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	aliceBal, err := svc.Balance(ctx, "alice", "native")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	bobBal, err := svc.Balance(ctx, "bob", "native")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if aliceBal != 60 || bobBal != 40 {
		t.Fatalf("balances alice=%d bob=%d, want 60/40", aliceBal, bobBal)
	}

	if err := svc.TransferFungible(ctx, "native", "alice", "bob", 61); !errors.Is(err, raffle.ErrInsufficientFunds) {
		t.Fatalf("overdraft should fail, got %v", err)
	}
	// Zero-amount transfers succeed without touching balances.
	if err := svc.TransferFungible(ctx, "native", "alice", "bob", 0); err != nil {
		t.Fatalf("zero transfer: %v", err)
	}

	unknown, err := svc.Balance(ctx, "nobody", "native")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if unknown != 0 {
		t.Fatalf("unknown account balance %d, want 0", unknown)
	}
}

func TestService_NonFungibleTransfers(t *testing.T) {
	ctx := context.Background()
	svc := New(memory.New(), nil)

	if err := svc.Register(ctx, "art", "1", "alice"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := svc.TransferNonFungible(ctx, "art", "1", "bob", "carol"); !errors.Is(err, raffle.ErrNotAuthorized) {
		t.Fatalf("transfer by non-owner should fail, got %v", err)
	}
	if err := svc.TransferNonFungible(ctx, "art", "1", "alice", "bob"); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	owner, err := svc.Owner(ctx, "art", "1")
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	if owner != "bob" {
		t.Fatalf("owner %s, want bob", owner)
	}

	if err := svc.TransferNonFungible(ctx, "art", "missing", "alice", "bob"); !errors.Is(err, raffle.ErrNotFound) {
		t.Fatalf("transfer of unknown instance should be not found, got %v", err)
	}
	if _, err := svc.Owner(ctx, "art", "missing"); !errors.Is(err, raffle.ErrNotFound) {
		t.Fatalf("unknown instance should be not found, got %v", err)
	}
}
