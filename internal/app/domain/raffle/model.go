// Package raffle defines the raffle aggregate: configuration, prize list,
// ticket ledger batches and the per-account contribution weight table. One
// aggregate exists per raffle id and is mutated only through the raffle
// service operations.
package raffle

import "time"

// BaseWeight is the contribution weight credited to the raffle creator for
// the initial prize. It is also the basis for royalty rates and for scaling
// the minimum-sales threshold.
const BaseWeight uint64 = 10000

// NativeAsset is the sentinel payment-asset id denoting the host chain's
// native currency.
const NativeAsset = "native"

// Prize is one escrowed non-fungible asset attached to a raffle. Claimed is
// monotonic: once true it never resets.
type Prize struct {
	Collection  string `json:"collection"`
	Instance    string `json:"instance"`
	Contributor string `json:"contributor"`
	Weight      uint64 `json:"weight"`
	Claimed     bool   `json:"claimed"`
}

// PoolEntry allow-lists an asset collection that may be contributed as an
// additional prize after creation, and the weight such a contribution earns.
// The allow-list is read-only after the raffle is created.
type PoolEntry struct {
	Collection string `json:"collection"`
	Weight     uint64 `json:"weight"`
}

// TicketBatch records one purchase: the buyer and the cumulative ticket count
// after the purchase. The batch sequence partitions [0, totalSold) into
// contiguous owner-labeled ranges; End is strictly increasing.
type TicketBatch struct {
	Buyer string `json:"buyer"`
	End   uint64 `json:"end"`
}

// Raffle is the owned aggregate for one raffle id.
type Raffle struct {
	ID           string    `json:"id"`
	Creator      string    `json:"creator"`
	PaymentAsset string    `json:"payment_asset"`
	TicketPrice  uint64    `json:"ticket_price"`
	MinTickets   uint64    `json:"min_tickets"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`

	// TotalWeight starts at BaseWeight and grows as pool prizes are added.
	// Invariant: equals the sum of all prize weights.
	TotalWeight uint64 `json:"total_weight"`

	// Seed is zero until the draw is initialized; the zero->non-zero
	// transition happens exactly once and the value is immutable after.
	Seed uint64 `json:"seed"`

	// RoyaltyPaid marks the one-time royalty settlement to the treasury.
	RoyaltyPaid bool `json:"royalty_paid"`

	Prizes  []Prize           `json:"prizes"`
	Pool    []PoolEntry       `json:"pool"`
	Weights map[string]uint64 `json:"weights"`
	Batches []TicketBatch     `json:"batches"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TotalSold returns the cumulative end of the last batch, or 0 before any
// purchase.
func (r *Raffle) TotalSold() uint64 {
	if len(r.Batches) == 0 {
		return 0
	}
	return r.Batches[len(r.Batches)-1].End
}

// Drawn reports whether the randomness seed has been set.
func (r *Raffle) Drawn() bool { return r.Seed != 0 }

// VaultAccount returns the escrow account holding the raffle's prizes and
// ticket proceeds.
func (r *Raffle) VaultAccount() string { return "raffle:" + r.ID }

// PoolWeight returns the allow-listed weight for a collection, or false when
// the collection is not accepted.
func (r *Raffle) PoolWeight(collection string) (uint64, bool) {
	for _, entry := range r.Pool {
		if entry.Collection == collection {
			return entry.Weight, true
		}
	}
	return 0, false
}

// SalesBreakdown reports the derived accounting quantities for a raffle, as
// exposed by the read API.
type SalesBreakdown struct {
	TotalSales      uint64 `json:"total_sales"`
	MinimumSales    uint64 `json:"minimum_sales"`
	RoyaltyAmount   uint64 `json:"royalty_amount"`
	ClaimableAmount uint64 `json:"claimable_amount"`
}

// WinnerInfo reports the resolved winner of one prize slot.
type WinnerInfo struct {
	PrizeIndex    int    `json:"prize_index"`
	WinningTicket uint64 `json:"winning_ticket"`
	PurchaseIndex int    `json:"purchase_index"`
	Owner         string `json:"owner"`
	Claimed       bool   `json:"claimed"`
}
