package app

import (
	"context"
	"fmt"

	custodysvc "github.com/openraffle/raffle_layer/internal/app/services/custody"
	rafflesvc "github.com/openraffle/raffle_layer/internal/app/services/raffle"
	randomsvc "github.com/openraffle/raffle_layer/internal/app/services/randomness"
	"github.com/openraffle/raffle_layer/internal/app/storage"
	"github.com/openraffle/raffle_layer/internal/app/storage/memory"
	"github.com/openraffle/raffle_layer/internal/app/system"
	"github.com/openraffle/raffle_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Raffles    storage.RaffleStore
	Custody    storage.CustodyStore
	Randomness storage.RandomnessStore
}

// Options carries service-level settings.
type Options struct {
	Royalty       rafflesvc.RoyaltySettings
	SweepSchedule string
}

// DefaultRoyalty is used when no royalty settings are configured: 5% on the
// base tier, 10% on overflow, paid to the platform treasury account.
var DefaultRoyalty = rafflesvc.RoyaltySettings{
	BaseRate:     500,
	OverflowRate: 1000,
	Treasury:     "treasury",
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Raffles    *rafflesvc.Service
	Custody    *custodysvc.Service
	Randomness *randomsvc.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Raffles == nil {
		stores.Raffles = mem
	}
	if stores.Custody == nil {
		stores.Custody = mem
	}
	if stores.Randomness == nil {
		stores.Randomness = mem
	}
	if opts.Royalty == (rafflesvc.RoyaltySettings{}) {
		opts.Royalty = DefaultRoyalty
	}

	manager := system.NewManager()

	custodyService := custodysvc.New(stores.Custody, log)
	randomService := randomsvc.New(stores.Randomness, log)
	raffleService, err := rafflesvc.New(stores.Raffles, custodyService, randomService, opts.Royalty, log)
	if err != nil {
		return nil, fmt.Errorf("build raffle service: %w", err)
	}

	for _, name := range []string{"raffles", "custody", "randomness"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	sweeper := rafflesvc.NewSeedScheduler(stores.Raffles, raffleService, log).WithSchedule(opts.SweepSchedule)
	if err := manager.Register(sweeper); err != nil {
		return nil, fmt.Errorf("register %s: %w", sweeper.Name(), err)
	}

	return &Application{
		manager:    manager,
		log:        log,
		Raffles:    raffleService,
		Custody:    custodyService,
		Randomness: randomService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
