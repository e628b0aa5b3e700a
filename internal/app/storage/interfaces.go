package storage

import (
	"context"
	"time"

	"github.com/openraffle/raffle_layer/internal/app/domain/custody"
	"github.com/openraffle/raffle_layer/internal/app/domain/raffle"
	"github.com/openraffle/raffle_layer/internal/app/domain/randomness"
)

// RaffleStore persists raffle aggregates. Batches are append-only and are
// loaded as part of the aggregate; UpdateRaffle persists every aggregate
// field except the batch sequence.
type RaffleStore interface {
	CreateRaffle(ctx context.Context, r raffle.Raffle) (raffle.Raffle, error)
	GetRaffle(ctx context.Context, id string) (raffle.Raffle, error)
	UpdateRaffle(ctx context.Context, r raffle.Raffle) (raffle.Raffle, error)
	DeleteRaffle(ctx context.Context, id string) error
	ListRaffles(ctx context.Context) ([]raffle.Raffle, error)

	// AppendTicketBatch appends one purchase batch to the raffle's ledger.
	AppendTicketBatch(ctx context.Context, raffleID string, batch raffle.TicketBatch) error

	// ListAwaitingSeed returns raffles whose sale window ended before the
	// given instant and whose seed is still unset.
	ListAwaitingSeed(ctx context.Context, before time.Time) ([]raffle.Raffle, error)
}

// CustodyStore persists fungible balances and non-fungible ownership.
type CustodyStore interface {
	GetBalance(ctx context.Context, account, asset string) (custody.Balance, error)
	PutBalance(ctx context.Context, bal custody.Balance) error

	GetNonFungible(ctx context.Context, collection, instance string) (custody.NonFungible, error)
	PutNonFungible(ctx context.Context, nft custody.NonFungible) error
}

// RandomnessStore persists randomness request records.
type RandomnessStore interface {
	CreateRequest(ctx context.Context, req randomness.Request) (randomness.Request, error)
	UpdateRequest(ctx context.Context, req randomness.Request) (randomness.Request, error)
	GetRequest(ctx context.Context, id string) (randomness.Request, error)
}
