package raffle

import "testing"

func TestWinningTicket_Deterministic(t *testing.T) {
	first := winningTicket("raffle-1", 0, 7)
	for i := 0; i < 10; i++ {
		if got := winningTicket("raffle-1", 0, 7); got != first {
			t.Fatalf("draw not deterministic: %d vs %d", got, first)
		}
	}
}

func TestWinningTicket_Bounds(t *testing.T) {
	for prizeCount := 1; prizeCount <= 16; prizeCount++ {
		for slot := 0; slot < prizeCount; slot++ {
			got := winningTicket("raffle-x", slot, prizeCount)
			if got >= uint64(prizeCount) {
				t.Fatalf("ticket %d out of [0,%d)", got, prizeCount)
			}
		}
	}
}

func TestWinningTicket_VariesBySlot(t *testing.T) {
	// With a large modulus, distinct slots should not all collide.
	seen := make(map[uint64]bool)
	for slot := 0; slot < 8; slot++ {
		seen[winningTicket("raffle-y", slot, 1<<30)] = true
	}
	if len(seen) < 2 {
		t.Fatalf("all slots drew the same ticket: %v", seen)
	}
}
