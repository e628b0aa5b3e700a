package raffle

import (
	"fmt"
	"math/bits"

	domain "github.com/openraffle/raffle_layer/internal/app/domain/raffle"
)

// RoyaltySettings configures the tiered royalty split. Rates are expressed in
// units of domain.BaseWeight (10000 = 100%). The base rate applies to sales
// up to the minimum-sales threshold, the overflow rate to everything above
// it. Treasury receives the royalty portion.
type RoyaltySettings struct {
	BaseRate     uint64
	OverflowRate uint64
	Treasury     string
}

// Validate rejects rates outside the [0, BaseWeight] basis.
func (s RoyaltySettings) Validate() error {
	if s.BaseRate > domain.BaseWeight || s.OverflowRate > domain.BaseWeight {
		return fmt.Errorf("%w: royalty rate exceeds basis %d", domain.ErrInvalidConfiguration, domain.BaseWeight)
	}
	return nil
}

func addChecked(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: addition overflow", domain.ErrInvalidConfiguration)
	}
	return sum, nil
}

func mulChecked(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, fmt.Errorf("%w: multiplication overflow", domain.ErrInvalidConfiguration)
	}
	return lo, nil
}

// ratePortion applies a BaseWeight-basis rate to an amount.
func ratePortion(amount, rate uint64) (uint64, error) {
	product, err := mulChecked(amount, rate)
	if err != nil {
		return 0, err
	}
	return product / domain.BaseWeight, nil
}

// salesBreakdown computes the accounting split for a raffle's gross sales.
// minimumSales scales the configured minimum-ticket threshold by the raffle's
// total contribution weight. The base royalty tier applies to sales up to
// that threshold, the overflow tier to the remainder, so
// royalty + claimable <= totalSales always holds.
func salesBreakdown(r domain.Raffle, rates RoyaltySettings) (domain.SalesBreakdown, error) {
	totalSales, err := mulChecked(r.TotalSold(), r.TicketPrice)
	if err != nil {
		return domain.SalesBreakdown{}, err
	}

	minimumSales, err := mulChecked(r.MinTickets, r.TicketPrice)
	if err != nil {
		return domain.SalesBreakdown{}, err
	}
	minimumSales, err = mulChecked(minimumSales, r.TotalWeight)
	if err != nil {
		return domain.SalesBreakdown{}, err
	}
	minimumSales /= domain.BaseWeight

	base := totalSales
	if minimumSales < base {
		base = minimumSales
	}
	excess := totalSales - base

	baseRoyalty, err := ratePortion(base, rates.BaseRate)
	if err != nil {
		return domain.SalesBreakdown{}, err
	}
	overflowRoyalty, err := ratePortion(excess, rates.OverflowRate)
	if err != nil {
		return domain.SalesBreakdown{}, err
	}
	baseClaimable, err := ratePortion(base, domain.BaseWeight-rates.BaseRate)
	if err != nil {
		return domain.SalesBreakdown{}, err
	}
	overflowClaimable, err := ratePortion(excess, domain.BaseWeight-rates.OverflowRate)
	if err != nil {
		return domain.SalesBreakdown{}, err
	}

	royalty, err := addChecked(baseRoyalty, overflowRoyalty)
	if err != nil {
		return domain.SalesBreakdown{}, err
	}
	claimable, err := addChecked(baseClaimable, overflowClaimable)
	if err != nil {
		return domain.SalesBreakdown{}, err
	}

	return domain.SalesBreakdown{
		TotalSales:      totalSales,
		MinimumSales:    minimumSales,
		RoyaltyAmount:   royalty,
		ClaimableAmount: claimable,
	}, nil
}

// accountShare apportions the claimable amount to one account by weight,
// truncating toward zero. The truncation loses at most totalWeight-1 units
// across all accounts.
func accountShare(weight, claimable, totalWeight uint64) (uint64, error) {
	if totalWeight == 0 {
		return 0, nil
	}
	product, err := mulChecked(weight, claimable)
	if err != nil {
		return 0, err
	}
	return product / totalWeight, nil
}
