package randomness

import (
	"context"
	"errors"
	"testing"

	"github.com/openraffle/raffle_layer/internal/app/domain/raffle"
	domain "github.com/openraffle/raffle_layer/internal/app/domain/randomness"
	"github.com/openraffle/raffle_layer/internal/app/storage/memory"
)

func TestService_Draw(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := New(store, nil)

	first, err := svc.Draw(ctx, "raffle-1")
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	second, err := svc.Draw(ctx, "raffle-1")
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if first == second {
		t.Fatalf("two draws returned the same value %d", first)
	}

	req, err := svc.Request(ctx, "1")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if req.Status != domain.StatusFulfilled {
		t.Fatalf("status %s, want fulfilled", req.Status)
	}
	if req.ConsumerID != "raffle-1" {
		t.Fatalf("consumer %s, want raffle-1", req.ConsumerID)
	}
	if req.Value != first {
		t.Fatalf("recorded value %d, want %d", req.Value, first)
	}
	if req.FulfilledAt.IsZero() {
		t.Fatal("fulfilled timestamp not set")
	}

	if _, err := svc.Request(ctx, "no-such-request"); !errors.Is(err, raffle.ErrNotFound) {
		t.Fatalf("unknown request should be not found, got %v", err)
	}
}
