package raffle

import (
	"errors"
	"testing"

	domain "github.com/openraffle/raffle_layer/internal/app/domain/raffle"
)

func TestRoyaltySettings_Validate(t *testing.T) {
	ok := RoyaltySettings{BaseRate: 500, OverflowRate: 1000, Treasury: "treasury"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid settings rejected: %v", err)
	}
	bad := RoyaltySettings{BaseRate: domain.BaseWeight + 1, Treasury: "treasury"}
	if err := bad.Validate(); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("rate above basis should be rejected, got %v", err)
	}
}

func TestSalesBreakdown_Oversold(t *testing.T) {
	r := domain.Raffle{
		TicketPrice: 10,
		MinTickets:  3,
		TotalWeight: 15000,
		Batches:     []domain.TicketBatch{{Buyer: "bob", End: 8}},
	}
	rates := RoyaltySettings{BaseRate: 500, OverflowRate: 1000, Treasury: "treasury"}

	got, err := salesBreakdown(r, rates)
	if err != nil {
		t.Fatalf("breakdown: %v", err)
	}
	if got.TotalSales != 80 {
		t.Fatalf("total sales %d, want 80", got.TotalSales)
	}
	// 3 tickets * 10 * 15000 / 10000
	if got.MinimumSales != 45 {
		t.Fatalf("minimum sales %d, want 45", got.MinimumSales)
	}
	// 45*5% + 35*10%, both truncated
	if got.RoyaltyAmount != 5 {
		t.Fatalf("royalty %d, want 5", got.RoyaltyAmount)
	}
	// 45*95% + 35*90%, both truncated
	if got.ClaimableAmount != 73 {
		t.Fatalf("claimable %d, want 73", got.ClaimableAmount)
	}
	if got.RoyaltyAmount+got.ClaimableAmount > got.TotalSales {
		t.Fatalf("split %d+%d exceeds sales %d", got.RoyaltyAmount, got.ClaimableAmount, got.TotalSales)
	}
}

func TestSalesBreakdown_Undersold(t *testing.T) {
	r := domain.Raffle{
		TicketPrice: 10,
		MinTickets:  10,
		TotalWeight: domain.BaseWeight,
		Batches:     []domain.TicketBatch{{Buyer: "bob", End: 4}},
	}
	rates := RoyaltySettings{BaseRate: 500, OverflowRate: 1000, Treasury: "treasury"}

	got, err := salesBreakdown(r, rates)
	if err != nil {
		t.Fatalf("breakdown: %v", err)
	}
	if got.TotalSales != 40 || got.MinimumSales != 100 {
		t.Fatalf("unexpected sales: %+v", got)
	}
	// Only the base tier applies, capped at actual sales: 40*5% and 40*95%.
	if got.RoyaltyAmount != 2 {
		t.Fatalf("royalty %d, want 2", got.RoyaltyAmount)
	}
	if got.ClaimableAmount != 38 {
		t.Fatalf("claimable %d, want 38", got.ClaimableAmount)
	}
}

func TestSalesBreakdown_NoSales(t *testing.T) {
	r := domain.Raffle{TicketPrice: 10, MinTickets: 3, TotalWeight: domain.BaseWeight}
	got, err := salesBreakdown(r, RoyaltySettings{BaseRate: 500, OverflowRate: 1000, Treasury: "t"})
	if err != nil {
		t.Fatalf("breakdown: %v", err)
	}
	if got.TotalSales != 0 || got.RoyaltyAmount != 0 || got.ClaimableAmount != 0 {
		t.Fatalf("expected zero split, got %+v", got)
	}
}

func TestAccountShare(t *testing.T) {
	share, err := accountShare(10000, 73, 15000)
	if err != nil {
		t.Fatalf("share: %v", err)
	}
	if share != 48 {
		t.Fatalf("share %d, want 48 (truncated)", share)
	}

	other, err := accountShare(5000, 73, 15000)
	if err != nil {
		t.Fatalf("share: %v", err)
	}
	if other != 24 {
		t.Fatalf("share %d, want 24 (truncated)", other)
	}
	if share+other > 73 {
		t.Fatalf("shares %d+%d exceed claimable", share, other)
	}

	if zero, err := accountShare(1, 100, 0); err != nil || zero != 0 {
		t.Fatalf("zero total weight should yield zero share, got %d, %v", zero, err)
	}
}
