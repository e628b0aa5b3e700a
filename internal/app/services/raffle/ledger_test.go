package raffle

import (
	"errors"
	"testing"

	domain "github.com/openraffle/raffle_layer/internal/app/domain/raffle"
)

func TestNewBatch_Sequencing(t *testing.T) {
	var batches []domain.TicketBatch

	first, err := newBatch(batches, "alice", 5)
	if err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if first.End != 5 || first.Buyer != "alice" {
		t.Fatalf("unexpected first batch: %+v", first)
	}
	batches = append(batches, first)

	second, err := newBatch(batches, "bob", 3)
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if second.End != 8 {
		t.Fatalf("cumulative end should be 8, got %d", second.End)
	}

	if _, err := newBatch(batches, "bob", 0); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("zero count should be rejected, got %v", err)
	}
	if _, err := newBatch(batches, "bob", ^uint64(0)); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("overflowing count should be rejected, got %v", err)
	}
}

func TestResolvePurchase(t *testing.T) {
	batches := []domain.TicketBatch{
		{Buyer: "alice", End: 5},
		{Buyer: "bob", End: 8},
	}

	cases := []struct {
		ticket uint64
		want   int
	}{
		{0, 0},
		{4, 0},
		{5, 1},
		{7, 1},
	}
	for _, tc := range cases {
		got, err := resolvePurchase(batches, tc.ticket)
		if err != nil {
			t.Fatalf("resolve %d: %v", tc.ticket, err)
		}
		if got != tc.want {
			t.Fatalf("ticket %d resolved to batch %d, want %d", tc.ticket, got, tc.want)
		}
	}

	if _, err := resolvePurchase(batches, 8); !errors.Is(err, domain.ErrOutOfRange) {
		t.Fatalf("ticket at total sold should be out of range, got %v", err)
	}
	if _, err := resolvePurchase(nil, 0); !errors.Is(err, domain.ErrOutOfRange) {
		t.Fatalf("empty ledger should be out of range, got %v", err)
	}
}

func TestBatchRange(t *testing.T) {
	batches := []domain.TicketBatch{
		{Buyer: "alice", End: 5},
		{Buyer: "bob", End: 8},
	}

	lo, hi := batchRange(batches, 0)
	if lo != 0 || hi != 5 {
		t.Fatalf("first range [%d,%d), want [0,5)", lo, hi)
	}
	lo, hi = batchRange(batches, 1)
	if lo != 5 || hi != 8 {
		t.Fatalf("second range [%d,%d), want [5,8)", lo, hi)
	}
}
