package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/openraffle/raffle_layer/internal/app/domain/custody"
	"github.com/openraffle/raffle_layer/internal/app/domain/raffle"
	"github.com/openraffle/raffle_layer/internal/app/domain/randomness"
	"github.com/openraffle/raffle_layer/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development.
type Store struct {
	mu       sync.RWMutex
	nextID   int64
	raffles  map[string]raffle.Raffle
	balances map[string]custody.Balance
	nfts     map[string]custody.NonFungible
	requests map[string]randomness.Request
}

var _ storage.RaffleStore = (*Store)(nil)
var _ storage.CustodyStore = (*Store)(nil)
var _ storage.RandomnessStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:   1,
		raffles:  make(map[string]raffle.Raffle),
		balances: make(map[string]custody.Balance),
		nfts:     make(map[string]custody.NonFungible),
		requests: make(map[string]randomness.Request),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// RaffleStore implementation --------------------------------------------------

func (s *Store) CreateRaffle(_ context.Context, r raffle.Raffle) (raffle.Raffle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = s.nextIDLocked()
	} else if _, exists := s.raffles[r.ID]; exists {
		return raffle.Raffle{}, fmt.Errorf("raffle %s already exists", r.ID)
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	s.raffles[r.ID] = cloneRaffle(r)
	return cloneRaffle(r), nil
}

func (s *Store) GetRaffle(_ context.Context, id string) (raffle.Raffle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.raffles[id]
	if !ok {
		return raffle.Raffle{}, fmt.Errorf("%w: %s", raffle.ErrNotFound, id)
	}
	return cloneRaffle(r), nil
}

func (s *Store) UpdateRaffle(_ context.Context, r raffle.Raffle) (raffle.Raffle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.raffles[r.ID]
	if !ok {
		return raffle.Raffle{}, fmt.Errorf("%w: %s", raffle.ErrNotFound, r.ID)
	}
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = time.Now().UTC()
	// Batches are append-only and owned by AppendTicketBatch.
	r.Batches = existing.Batches
	s.raffles[r.ID] = cloneRaffle(r)
	return cloneRaffle(r), nil
}

func (s *Store) DeleteRaffle(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.raffles[id]; !ok {
		return fmt.Errorf("%w: %s", raffle.ErrNotFound, id)
	}
	delete(s.raffles, id)
	return nil
}

func (s *Store) ListRaffles(_ context.Context) ([]raffle.Raffle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]raffle.Raffle, 0, len(s.raffles))
	for _, r := range s.raffles {
		result = append(result, cloneRaffle(r))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) AppendTicketBatch(_ context.Context, raffleID string, batch raffle.TicketBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.raffles[raffleID]
	if !ok {
		return fmt.Errorf("%w: %s", raffle.ErrNotFound, raffleID)
	}
	r.Batches = append(r.Batches, batch)
	r.UpdatedAt = time.Now().UTC()
	s.raffles[raffleID] = r
	return nil
}

func (s *Store) ListAwaitingSeed(_ context.Context, before time.Time) ([]raffle.Raffle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []raffle.Raffle
	for _, r := range s.raffles {
		if r.Seed == 0 && r.EndTime.Before(before) {
			result = append(result, cloneRaffle(r))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EndTime.Before(result[j].EndTime) })
	return result, nil
}

// CustodyStore implementation -------------------------------------------------

func balanceKey(account, asset string) string { return account + "|" + asset }

func (s *Store) GetBalance(_ context.Context, account, asset string) (custody.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bal, ok := s.balances[balanceKey(account, asset)]
	if !ok {
		return custody.Balance{Account: account, Asset: asset}, nil
	}
	return bal, nil
}

func (s *Store) PutBalance(_ context.Context, bal custody.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bal.Updated = time.Now().UTC()
	s.balances[balanceKey(bal.Account, bal.Asset)] = bal
	return nil
}

func (s *Store) GetNonFungible(_ context.Context, collection, instance string) (custody.NonFungible, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nft, ok := s.nfts[collection+"/"+instance]
	if !ok {
		return custody.NonFungible{}, fmt.Errorf("%w: non-fungible %s/%s", raffle.ErrNotFound, collection, instance)
	}
	return nft, nil
}

func (s *Store) PutNonFungible(_ context.Context, nft custody.NonFungible) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nft.Updated = time.Now().UTC()
	s.nfts[nft.Key()] = nft
	return nil
}

// RandomnessStore implementation ----------------------------------------------

func (s *Store) CreateRequest(_ context.Context, req randomness.Request) (randomness.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ID == "" {
		req.ID = s.nextIDLocked()
	}
	req.CreatedAt = time.Now().UTC()
	if req.Status == "" {
		req.Status = randomness.StatusPending
	}
	s.requests[req.ID] = req
	return req, nil
}

func (s *Store) UpdateRequest(_ context.Context, req randomness.Request) (randomness.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[req.ID]; !ok {
		return randomness.Request{}, fmt.Errorf("%w: randomness request %s", raffle.ErrNotFound, req.ID)
	}
	s.requests[req.ID] = req
	return req, nil
}

func (s *Store) GetRequest(_ context.Context, id string) (randomness.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return randomness.Request{}, fmt.Errorf("%w: randomness request %s", raffle.ErrNotFound, id)
	}
	return req, nil
}

func cloneRaffle(r raffle.Raffle) raffle.Raffle {
	out := r
	out.Prizes = append([]raffle.Prize(nil), r.Prizes...)
	out.Pool = append([]raffle.PoolEntry(nil), r.Pool...)
	out.Batches = append([]raffle.TicketBatch(nil), r.Batches...)
	if r.Weights != nil {
		out.Weights = make(map[string]uint64, len(r.Weights))
		for k, v := range r.Weights {
			out.Weights[k] = v
		}
	}
	return out
}
