package raffle

import (
	"fmt"
	"sort"

	domain "github.com/openraffle/raffle_layer/internal/app/domain/raffle"
)

// newBatch computes the next ticket batch for a purchase of count tickets.
// The cumulative end continues from the previous batch (0 when the ledger is
// empty) and is overflow-checked.
func newBatch(batches []domain.TicketBatch, buyer string, count uint64) (domain.TicketBatch, error) {
	if count == 0 {
		return domain.TicketBatch{}, fmt.Errorf("%w: ticket count must be positive", domain.ErrInvalidConfiguration)
	}
	var prev uint64
	if len(batches) > 0 {
		prev = batches[len(batches)-1].End
	}
	end, err := addChecked(prev, count)
	if err != nil {
		return domain.TicketBatch{}, fmt.Errorf("%w: ticket ledger", domain.ErrInvalidConfiguration)
	}
	return domain.TicketBatch{Buyer: buyer, End: end}, nil
}

// resolvePurchase returns the index of the batch owning the ticket number.
// The batch sequence partitions [0, totalSold) by strictly increasing
// cumulative ends, so the owning batch is the first whose end exceeds the
// ticket number.
func resolvePurchase(batches []domain.TicketBatch, ticket uint64) (int, error) {
	n := len(batches)
	if n == 0 || ticket >= batches[n-1].End {
		return 0, fmt.Errorf("%w: ticket %d not sold", domain.ErrOutOfRange, ticket)
	}
	return sort.Search(n, func(i int) bool { return batches[i].End > ticket }), nil
}

// batchRange returns the half-open ticket range [lo, hi) owned by the batch
// at the given index.
func batchRange(batches []domain.TicketBatch, index int) (lo, hi uint64) {
	if index > 0 {
		lo = batches[index-1].End
	}
	return lo, batches[index].End
}
