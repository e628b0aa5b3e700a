package raffle

import "errors"

// Error taxonomy for raffle operations. Every failure aborts the triggering
// operation with no partial state mutation; callers decide whether to retry
// with different inputs.
var (
	// ErrInvalidConfiguration covers bad timing windows, zero prices and
	// zero or duplicate allow-list weights.
	ErrInvalidConfiguration = errors.New("invalid raffle configuration")

	// ErrNotAuthorized covers non-creator cancellation and claims by
	// accounts that do not own the referenced ticket batch.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrInvalidState covers operations issued outside their lifecycle
	// window: draws before the sale window closes, double draws, claims
	// before the draw, re-claims and late cancellations.
	ErrInvalidState = errors.New("invalid raffle state")

	// ErrOutOfRange covers ticket numbers outside the ledger, purchase
	// indexes outside the batch sequence and collections missing from the
	// pool allow-list.
	ErrOutOfRange = errors.New("out of range")

	// ErrInsufficientFunds covers failed payment debits.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNoOp flags zero-amount payouts.
	ErrNoOp = errors.New("nothing to pay out")

	// ErrNotFound is returned by stores for unknown raffle ids.
	ErrNotFound = errors.New("raffle not found")
)
