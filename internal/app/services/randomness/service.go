// Package randomness produces draw seeds and keeps an auditable record of
// every request it fulfills.
package randomness

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/crypto/sha3"

	domain "github.com/openraffle/raffle_layer/internal/app/domain/randomness"
	"github.com/openraffle/raffle_layer/internal/app/storage"
	"github.com/openraffle/raffle_layer/pkg/logger"
)

// Service fulfills randomness requests from the operating system's entropy
// source, mixed with the consumer id and the request time.
type Service struct {
	store storage.RandomnessStore
	log   *logger.Logger
}

// New creates a randomness service backed by the given store.
func New(store storage.RandomnessStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("randomness")
	}
	return &Service{store: store, log: log}
}

// Draw produces one 64-bit value for the consumer and records the fulfilled
// request.
func (s *Service) Draw(ctx context.Context, consumerID string) (uint64, error) {
	req, err := s.store.CreateRequest(ctx, domain.Request{
		ConsumerID: consumerID,
		Status:     domain.StatusPending,
	})
	if err != nil {
		return 0, fmt.Errorf("record randomness request: %w", err)
	}

	var entropy [32]byte
	if _, err := rand.Read(entropy[:]); err != nil {
		return 0, fmt.Errorf("read entropy: %w", err)
	}
	hasher := sha3.New256()
	hasher.Write(entropy[:])
	hasher.Write([]byte(consumerID))
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(time.Now().UnixNano()))
	hasher.Write(ts[:])
	value := binary.BigEndian.Uint64(hasher.Sum(nil)[:8])

	req.Status = domain.StatusFulfilled
	req.Value = value
	req.FulfilledAt = time.Now().UTC()
	if _, err := s.store.UpdateRequest(ctx, req); err != nil {
		return 0, fmt.Errorf("fulfill randomness request: %w", err)
	}

	s.log.WithField("consumer_id", consumerID).Debug("randomness request fulfilled")
	return value, nil
}

// Request returns one recorded randomness request.
func (s *Service) Request(ctx context.Context, id string) (domain.Request, error) {
	return s.store.GetRequest(ctx, id)
}
