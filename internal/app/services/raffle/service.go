// Package raffle implements the raffle lifecycle: creation with prize
// escrow, pool prize contributions, ticket sales on an append-only ledger,
// seed initialization, prize claims and sales settlement.
package raffle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/openraffle/raffle_layer/internal/app/domain/raffle"
	"github.com/openraffle/raffle_layer/internal/app/metrics"
	"github.com/openraffle/raffle_layer/internal/app/storage"
	"github.com/openraffle/raffle_layer/pkg/logger"
)

// AssetTransfer moves custodial assets between accounts. Fungible transfers
// fail with the domain's insufficient-funds error when the source balance
// cannot cover the amount; non-fungible transfers fail when the source does
// not own the instance.
type AssetTransfer interface {
	TransferFungible(ctx context.Context, asset, from, to string, amount uint64) error
	TransferNonFungible(ctx context.Context, collection, instance, from, to string) error
}

// RandomnessSource produces one unpredictable 64-bit value per consumer
// request.
type RandomnessSource interface {
	Draw(ctx context.Context, consumerID string) (uint64, error)
}

// Service coordinates raffle state transitions. All mutating operations are
// serialized by a single mutex so ledger appends and settlements never
// interleave.
type Service struct {
	mu sync.Mutex

	store  storage.RaffleStore
	assets AssetTransfer
	random RandomnessSource
	rates  RoyaltySettings
	log    *logger.Logger
	now    func() time.Time
}

// New wires a raffle service. The royalty settings must carry valid rates and
// a treasury account.
func New(store storage.RaffleStore, assets AssetTransfer, random RandomnessSource, rates RoyaltySettings, log *logger.Logger) (*Service, error) {
	if store == nil || assets == nil || random == nil {
		return nil, fmt.Errorf("raffle service requires store, asset transfer and randomness source")
	}
	if err := rates.Validate(); err != nil {
		return nil, err
	}
	if rates.Treasury == "" {
		return nil, fmt.Errorf("%w: treasury account required", domain.ErrInvalidConfiguration)
	}
	if log == nil {
		log = logger.NewDefault("raffle")
	}
	return &Service{
		store:  store,
		assets: assets,
		random: random,
		rates:  rates,
		log:    log,
		now:    time.Now,
	}, nil
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateParams carries the configuration for a new raffle. The prize
// collection/instance pair is escrowed from the creator at creation time.
type CreateParams struct {
	Creator         string
	PrizeCollection string
	PrizeInstance   string
	PaymentAsset    string
	TicketPrice     uint64
	MinTickets      uint64
	StartTime       time.Time
	EndTime         time.Time
	Pool            []domain.PoolEntry
}

func (p CreateParams) validate(now time.Time) error {
	switch {
	case p.Creator == "":
		return fmt.Errorf("%w: creator required", domain.ErrInvalidConfiguration)
	case p.PrizeCollection == "" || p.PrizeInstance == "":
		return fmt.Errorf("%w: prize asset required", domain.ErrInvalidConfiguration)
	case p.TicketPrice == 0:
		return fmt.Errorf("%w: ticket price must be positive", domain.ErrInvalidConfiguration)
	case p.MinTickets == 0:
		return fmt.Errorf("%w: minimum ticket threshold must be positive", domain.ErrInvalidConfiguration)
	case !p.EndTime.After(p.StartTime):
		return fmt.Errorf("%w: sale window must end after it starts", domain.ErrInvalidConfiguration)
	case !p.EndTime.After(now):
		return fmt.Errorf("%w: sale window must end in the future", domain.ErrInvalidConfiguration)
	}
	seen := make(map[string]struct{}, len(p.Pool))
	for _, entry := range p.Pool {
		if entry.Collection == "" || entry.Weight == 0 {
			return fmt.Errorf("%w: pool entries need a collection and a positive weight", domain.ErrInvalidConfiguration)
		}
		if _, dup := seen[entry.Collection]; dup {
			return fmt.Errorf("%w: duplicate pool collection %s", domain.ErrInvalidConfiguration, entry.Collection)
		}
		seen[entry.Collection] = struct{}{}
	}
	return nil
}

// CreateRaffle registers a raffle and escrows the creator's prize into the
// raffle vault. The creator is credited the base contribution weight.
func (s *Service) CreateRaffle(ctx context.Context, params CreateParams) (domain.Raffle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if err := params.validate(now); err != nil {
		return domain.Raffle{}, err
	}

	asset := params.PaymentAsset
	if asset == "" {
		asset = domain.NativeAsset
	}

	r := domain.Raffle{
		ID:           uuid.NewString(),
		Creator:      params.Creator,
		PaymentAsset: asset,
		TicketPrice:  params.TicketPrice,
		MinTickets:   params.MinTickets,
		StartTime:    params.StartTime.UTC(),
		EndTime:      params.EndTime.UTC(),
		TotalWeight:  domain.BaseWeight,
		Prizes: []domain.Prize{{
			Collection:  params.PrizeCollection,
			Instance:    params.PrizeInstance,
			Contributor: params.Creator,
			Weight:      domain.BaseWeight,
		}},
		Pool:    append([]domain.PoolEntry(nil), params.Pool...),
		Weights: map[string]uint64{params.Creator: domain.BaseWeight},
	}

	created, err := s.store.CreateRaffle(ctx, r)
	if err != nil {
		return domain.Raffle{}, fmt.Errorf("create raffle: %w", err)
	}
	if err := s.assets.TransferNonFungible(ctx, params.PrizeCollection, params.PrizeInstance, params.Creator, created.VaultAccount()); err != nil {
		if delErr := s.store.DeleteRaffle(ctx, created.ID); delErr != nil {
			s.log.WithField("raffle_id", created.ID).WithError(delErr).Error("failed to roll back raffle after escrow failure")
		}
		return domain.Raffle{}, fmt.Errorf("escrow prize: %w", err)
	}

	metrics.RecordRaffleCreated()
	s.log.WithField("raffle_id", created.ID).WithField("creator", created.Creator).Info("raffle created")
	return created, nil
}

// AddPoolPrize escrows an allow-listed prize from a contributor and credits
// the contributor the collection's configured weight. Contributions close
// when the sale window opens, so the weight table is fixed before the first
// ticket is priced against it.
func (s *Service) AddPoolPrize(ctx context.Context, raffleID, contributor, collection, instance string) (domain.Raffle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if contributor == "" || collection == "" || instance == "" {
		return domain.Raffle{}, fmt.Errorf("%w: contributor and prize asset required", domain.ErrInvalidConfiguration)
	}
	r, err := s.store.GetRaffle(ctx, raffleID)
	if err != nil {
		return domain.Raffle{}, err
	}
	now := s.now().UTC()
	if r.Drawn() || !now.Before(r.StartTime) {
		return domain.Raffle{}, fmt.Errorf("%w: contribution window closed", domain.ErrInvalidState)
	}
	weight, ok := r.PoolWeight(collection)
	if !ok {
		return domain.Raffle{}, fmt.Errorf("%w: collection %s not in prize pool", domain.ErrOutOfRange, collection)
	}

	totalWeight, err := addChecked(r.TotalWeight, weight)
	if err != nil {
		return domain.Raffle{}, err
	}
	contributorWeight, err := addChecked(r.Weights[contributor], weight)
	if err != nil {
		return domain.Raffle{}, err
	}

	if err := s.assets.TransferNonFungible(ctx, collection, instance, contributor, r.VaultAccount()); err != nil {
		return domain.Raffle{}, fmt.Errorf("escrow pool prize: %w", err)
	}

	r.Prizes = append(r.Prizes, domain.Prize{
		Collection:  collection,
		Instance:    instance,
		Contributor: contributor,
		Weight:      weight,
	})
	r.TotalWeight = totalWeight
	r.Weights[contributor] = contributorWeight

	updated, err := s.store.UpdateRaffle(ctx, r)
	if err != nil {
		return domain.Raffle{}, fmt.Errorf("update raffle: %w", err)
	}
	s.log.WithField("raffle_id", r.ID).WithField("contributor", contributor).Info("pool prize added")
	return updated, nil
}

// CancelRaffle removes a raffle strictly before its sale window opens,
// returning every escrowed prize to its contributor. Only the creator may
// cancel.
func (s *Service) CancelRaffle(ctx context.Context, raffleID, caller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.store.GetRaffle(ctx, raffleID)
	if err != nil {
		return err
	}
	if caller != r.Creator {
		return fmt.Errorf("%w: only the creator may cancel", domain.ErrNotAuthorized)
	}
	if !s.now().UTC().Before(r.StartTime) {
		return fmt.Errorf("%w: sale window already opened", domain.ErrInvalidState)
	}
	if r.TotalSold() > 0 || r.Drawn() {
		return fmt.Errorf("%w: raffle has sold tickets", domain.ErrInvalidState)
	}

	for _, prize := range r.Prizes {
		if err := s.assets.TransferNonFungible(ctx, prize.Collection, prize.Instance, r.VaultAccount(), prize.Contributor); err != nil {
			return fmt.Errorf("return prize %s/%s: %w", prize.Collection, prize.Instance, err)
		}
	}
	if err := s.store.DeleteRaffle(ctx, raffleID); err != nil {
		return fmt.Errorf("delete raffle: %w", err)
	}
	s.log.WithField("raffle_id", raffleID).Info("raffle cancelled")
	return nil
}

// BuyTickets sells count tickets to the buyer, debiting the raffle's payment
// asset into the vault and appending one batch to the ledger.
func (s *Service) BuyTickets(ctx context.Context, raffleID, buyer string, count uint64) (domain.TicketBatch, error) {
	return s.buy(ctx, raffleID, buyer, count, "")
}

// BuyTicketsNative sells tickets paid in the native asset. It rejects raffles
// priced in any other asset.
func (s *Service) BuyTicketsNative(ctx context.Context, raffleID, buyer string, count uint64) (domain.TicketBatch, error) {
	return s.buy(ctx, raffleID, buyer, count, domain.NativeAsset)
}

func (s *Service) buy(ctx context.Context, raffleID, buyer string, count uint64, requireAsset string) (domain.TicketBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if buyer == "" {
		return domain.TicketBatch{}, fmt.Errorf("%w: buyer required", domain.ErrInvalidConfiguration)
	}
	r, err := s.store.GetRaffle(ctx, raffleID)
	if err != nil {
		return domain.TicketBatch{}, err
	}
	if requireAsset != "" && r.PaymentAsset != requireAsset {
		return domain.TicketBatch{}, fmt.Errorf("%w: raffle is priced in %s", domain.ErrInvalidConfiguration, r.PaymentAsset)
	}
	now := s.now().UTC()
	if now.Before(r.StartTime) || !now.Before(r.EndTime) {
		return domain.TicketBatch{}, fmt.Errorf("%w: sale window closed", domain.ErrInvalidState)
	}

	batch, err := newBatch(r.Batches, buyer, count)
	if err != nil {
		return domain.TicketBatch{}, err
	}
	cost, err := mulChecked(count, r.TicketPrice)
	if err != nil {
		return domain.TicketBatch{}, err
	}
	if err := s.assets.TransferFungible(ctx, r.PaymentAsset, buyer, r.VaultAccount(), cost); err != nil {
		return domain.TicketBatch{}, fmt.Errorf("collect payment: %w", err)
	}
	if err := s.store.AppendTicketBatch(ctx, raffleID, batch); err != nil {
		return domain.TicketBatch{}, fmt.Errorf("append ticket batch: %w", err)
	}

	metrics.RecordTicketSale(count)
	s.log.WithField("raffle_id", raffleID).WithField("buyer", buyer).Infof("sold %d tickets", count)
	return batch, nil
}

// InitializeSeed fixes the raffle's draw seed once the sale window has
// closed. The seed transitions from zero exactly once; a drawn value of zero
// is coerced to one so the sentinel stays unambiguous.
func (s *Service) InitializeSeed(ctx context.Context, raffleID string) (domain.Raffle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.store.GetRaffle(ctx, raffleID)
	if err != nil {
		return domain.Raffle{}, err
	}
	if r.Drawn() {
		return domain.Raffle{}, fmt.Errorf("%w: seed already initialized", domain.ErrInvalidState)
	}
	now := s.now().UTC()
	if now.Before(r.EndTime) {
		return domain.Raffle{}, fmt.Errorf("%w: sale window still open", domain.ErrInvalidState)
	}

	seed, err := s.random.Draw(ctx, r.ID)
	if err != nil {
		return domain.Raffle{}, fmt.Errorf("draw seed: %w", err)
	}
	if seed == 0 {
		seed = 1
	}
	r.Seed = seed

	updated, err := s.store.UpdateRaffle(ctx, r)
	if err != nil {
		return domain.Raffle{}, fmt.Errorf("update raffle: %w", err)
	}
	metrics.RecordSeedInitialized()
	s.log.WithField("raffle_id", raffleID).Info("seed initialized")
	return updated, nil
}

// ClaimPrize settles one prize slot. The claimant must own the batch at
// purchaseIndex and that batch must contain the slot's winning ticket. The
// prize is marked claimed before the asset leaves the vault, so a repeated
// claim fails instead of paying twice.
func (s *Service) ClaimPrize(ctx context.Context, raffleID string, prizeIndex int, claimant string, purchaseIndex int) (domain.Prize, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.store.GetRaffle(ctx, raffleID)
	if err != nil {
		return domain.Prize{}, err
	}
	if !r.Drawn() {
		return domain.Prize{}, fmt.Errorf("%w: seed not initialized", domain.ErrInvalidState)
	}
	if prizeIndex < 0 || prizeIndex >= len(r.Prizes) {
		return domain.Prize{}, fmt.Errorf("%w: prize index %d", domain.ErrOutOfRange, prizeIndex)
	}
	if r.Prizes[prizeIndex].Claimed {
		return domain.Prize{}, fmt.Errorf("%w: prize %d already claimed", domain.ErrInvalidState, prizeIndex)
	}
	if purchaseIndex < 0 || purchaseIndex >= len(r.Batches) {
		return domain.Prize{}, fmt.Errorf("%w: purchase index %d", domain.ErrOutOfRange, purchaseIndex)
	}

	if r.Batches[purchaseIndex].Buyer != claimant {
		return domain.Prize{}, fmt.Errorf("%w: claimant does not own batch %d", domain.ErrNotAuthorized, purchaseIndex)
	}
	ticket := winningTicket(r.ID, prizeIndex, len(r.Prizes))
	lo, hi := batchRange(r.Batches, purchaseIndex)
	if ticket < lo || ticket >= hi {
		return domain.Prize{}, fmt.Errorf("%w: winning ticket %d outside batch %d", domain.ErrOutOfRange, ticket, purchaseIndex)
	}

	r.Prizes[prizeIndex].Claimed = true
	if _, err := s.store.UpdateRaffle(ctx, r); err != nil {
		return domain.Prize{}, fmt.Errorf("update raffle: %w", err)
	}
	prize := r.Prizes[prizeIndex]
	if err := s.assets.TransferNonFungible(ctx, prize.Collection, prize.Instance, r.VaultAccount(), claimant); err != nil {
		return domain.Prize{}, fmt.Errorf("deliver prize: %w", err)
	}

	metrics.RecordPrizeClaim()
	s.log.WithField("raffle_id", raffleID).WithField("claimant", claimant).Infof("prize %d claimed", prizeIndex)
	return prize, nil
}

// ClaimSales pays out the account's weighted share of the claimable sales
// amount. The first settlement also forwards the royalty portion to the
// treasury. The account's weight entry is cleared after payout so a second
// call is a no-op failure.
func (s *Service) ClaimSales(ctx context.Context, raffleID, account string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.store.GetRaffle(ctx, raffleID)
	if err != nil {
		return 0, err
	}
	if !r.Drawn() {
		return 0, fmt.Errorf("%w: seed not initialized", domain.ErrInvalidState)
	}
	weight, ok := r.Weights[account]
	if !ok || weight == 0 {
		return 0, fmt.Errorf("%w: account %s has no sales share", domain.ErrNoOp, account)
	}

	breakdown, err := salesBreakdown(r, s.rates)
	if err != nil {
		return 0, err
	}
	share, err := accountShare(weight, breakdown.ClaimableAmount, r.TotalWeight)
	if err != nil {
		return 0, err
	}
	if share == 0 {
		return 0, fmt.Errorf("%w: share rounds to zero", domain.ErrNoOp)
	}

	payRoyalty := !r.RoyaltyPaid && breakdown.RoyaltyAmount > 0
	r.RoyaltyPaid = true
	delete(r.Weights, account)
	if _, err := s.store.UpdateRaffle(ctx, r); err != nil {
		return 0, fmt.Errorf("update raffle: %w", err)
	}

	if payRoyalty {
		if err := s.assets.TransferFungible(ctx, r.PaymentAsset, r.VaultAccount(), s.rates.Treasury, breakdown.RoyaltyAmount); err != nil {
			return 0, fmt.Errorf("pay royalty: %w", err)
		}
	}
	if err := s.assets.TransferFungible(ctx, r.PaymentAsset, r.VaultAccount(), account, share); err != nil {
		return 0, fmt.Errorf("pay sales share: %w", err)
	}

	metrics.RecordSalesPayout(share)
	s.log.WithField("raffle_id", raffleID).WithField("account", account).Infof("sales share %d paid", share)
	return share, nil
}

// Get returns one raffle aggregate.
func (s *Service) Get(ctx context.Context, raffleID string) (domain.Raffle, error) {
	return s.store.GetRaffle(ctx, raffleID)
}

// List returns all raffles ordered by creation time.
func (s *Service) List(ctx context.Context) ([]domain.Raffle, error) {
	return s.store.ListRaffles(ctx)
}

// Sales returns the raffle's derived accounting quantities.
func (s *Service) Sales(ctx context.Context, raffleID string) (domain.SalesBreakdown, error) {
	r, err := s.store.GetRaffle(ctx, raffleID)
	if err != nil {
		return domain.SalesBreakdown{}, err
	}
	return salesBreakdown(r, s.rates)
}

// ShareOf returns the account's still-unclaimed share of the claimable sales
// amount. Accounts without a weight entry report zero.
func (s *Service) ShareOf(ctx context.Context, raffleID, account string) (uint64, error) {
	r, err := s.store.GetRaffle(ctx, raffleID)
	if err != nil {
		return 0, err
	}
	weight := r.Weights[account]
	if weight == 0 {
		return 0, nil
	}
	breakdown, err := salesBreakdown(r, s.rates)
	if err != nil {
		return 0, err
	}
	return accountShare(weight, breakdown.ClaimableAmount, r.TotalWeight)
}

// OwnerAt resolves a ticket number to its owning batch.
func (s *Service) OwnerAt(ctx context.Context, raffleID string, ticket uint64) (owner string, purchaseIndex int, err error) {
	r, err := s.store.GetRaffle(ctx, raffleID)
	if err != nil {
		return "", 0, err
	}
	idx, err := resolvePurchase(r.Batches, ticket)
	if err != nil {
		return "", 0, err
	}
	return r.Batches[idx].Buyer, idx, nil
}

// Winner resolves the winner of one prize slot. It fails before the seed is
// initialized and when the winning ticket was never sold.
func (s *Service) Winner(ctx context.Context, raffleID string, prizeIndex int) (domain.WinnerInfo, error) {
	r, err := s.store.GetRaffle(ctx, raffleID)
	if err != nil {
		return domain.WinnerInfo{}, err
	}
	if !r.Drawn() {
		return domain.WinnerInfo{}, fmt.Errorf("%w: seed not initialized", domain.ErrInvalidState)
	}
	if prizeIndex < 0 || prizeIndex >= len(r.Prizes) {
		return domain.WinnerInfo{}, fmt.Errorf("%w: prize index %d", domain.ErrOutOfRange, prizeIndex)
	}

	ticket := winningTicket(r.ID, prizeIndex, len(r.Prizes))
	idx, err := resolvePurchase(r.Batches, ticket)
	if err != nil {
		return domain.WinnerInfo{}, err
	}
	return domain.WinnerInfo{
		PrizeIndex:    prizeIndex,
		WinningTicket: ticket,
		PurchaseIndex: idx,
		Owner:         r.Batches[idx].Buyer,
		Claimed:       r.Prizes[prizeIndex].Claimed,
	}, nil
}
