// Package custody tracks fungible balances and non-fungible ownership for
// accounts and raffle vaults. It is the asset-transfer collaborator of the
// raffle service.
package custody

import (
	"context"
	"fmt"
	"sync"

	"github.com/openraffle/raffle_layer/internal/app/domain/custody"
	"github.com/openraffle/raffle_layer/internal/app/domain/raffle"
	"github.com/openraffle/raffle_layer/internal/app/storage"
	"github.com/openraffle/raffle_layer/pkg/logger"
)

// Service moves custodial assets between accounts. Transfers are serialized
// so a debit and its matching credit are never observed apart.
type Service struct {
	mu    sync.Mutex
	store storage.CustodyStore
	log   *logger.Logger
}

// New creates a custody service backed by the given store.
func New(store storage.CustodyStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("custody")
	}
	return &Service{store: store, log: log}
}

// Deposit credits an account with fungible funds.
func (s *Service) Deposit(ctx context.Context, account, asset string, amount uint64) error {
	if account == "" || asset == "" {
		return fmt.Errorf("%w: account and asset required", raffle.ErrInvalidConfiguration)
	}
	if amount == 0 {
		return fmt.Errorf("%w: zero deposit", raffle.ErrNoOp)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creditLocked(ctx, account, asset, amount)
}

// Register records initial ownership of a non-fungible instance.
func (s *Service) Register(ctx context.Context, collection, instance, owner string) error {
	if collection == "" || instance == "" || owner == "" {
		return fmt.Errorf("%w: collection, instance and owner required", raffle.ErrInvalidConfiguration)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.PutNonFungible(ctx, custody.NonFungible{
		Collection: collection,
		Instance:   instance,
		Owner:      owner,
	})
}

// TransferFungible moves amount of asset from one account to another. The
// debit fails when the source balance cannot cover the amount.
func (s *Service) TransferFungible(ctx context.Context, asset, from, to string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := s.store.GetBalance(ctx, from, asset)
	if err != nil {
		return fmt.Errorf("load balance: %w", err)
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: %s holds %d of %s, need %d", raffle.ErrInsufficientFunds, from, src.Amount, asset, amount)
	}
	src.Amount -= amount
	if err := s.store.PutBalance(ctx, src); err != nil {
		return fmt.Errorf("store balance: %w", err)
	}
	if err := s.creditLocked(ctx, to, asset, amount); err != nil {
		return err
	}
	s.log.WithField("asset", asset).Debugf("transferred %d from %s to %s", amount, from, to)
	return nil
}

// TransferNonFungible moves ownership of one instance. The transfer fails
// when the stated source is not the current owner.
func (s *Service) TransferNonFungible(ctx context.Context, collection, instance, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nft, err := s.store.GetNonFungible(ctx, collection, instance)
	if err != nil {
		return fmt.Errorf("load non-fungible: %w", err)
	}
	if nft.Owner != from {
		return fmt.Errorf("%w: %s does not own %s/%s", raffle.ErrNotAuthorized, from, collection, instance)
	}
	nft.Owner = to
	if err := s.store.PutNonFungible(ctx, nft); err != nil {
		return fmt.Errorf("store non-fungible: %w", err)
	}
	s.log.WithField("collection", collection).Debugf("moved %s from %s to %s", instance, from, to)
	return nil
}

// Balance returns an account's fungible balance; unknown pairs report zero.
func (s *Service) Balance(ctx context.Context, account, asset string) (uint64, error) {
	bal, err := s.store.GetBalance(ctx, account, asset)
	if err != nil {
		return 0, err
	}
	return bal.Amount, nil
}

// Owner returns the current owner of a non-fungible instance.
func (s *Service) Owner(ctx context.Context, collection, instance string) (string, error) {
	nft, err := s.store.GetNonFungible(ctx, collection, instance)
	if err != nil {
		return "", err
	}
	return nft.Owner, nil
}

func (s *Service) creditLocked(ctx context.Context, account, asset string, amount uint64) error {
	dst, err := s.store.GetBalance(ctx, account, asset)
	if err != nil {
		return fmt.Errorf("load balance: %w", err)
	}
	dst.Amount += amount
	if err := s.store.PutBalance(ctx, dst); err != nil {
		return fmt.Errorf("store balance: %w", err)
	}
	return nil
}
