package raffle

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	domain "github.com/openraffle/raffle_layer/internal/app/domain/raffle"
	"github.com/openraffle/raffle_layer/internal/app/metrics"
	"github.com/openraffle/raffle_layer/internal/app/storage"
	"github.com/openraffle/raffle_layer/pkg/logger"
)

const defaultSweepSchedule = "@every 1m"

// SeedScheduler periodically initializes the seed of raffles whose sale
// window has closed without a draw. It backstops clients that never call the
// draw endpoint themselves.
type SeedScheduler struct {
	store    storage.RaffleStore
	service  *Service
	log      *logger.Logger
	schedule string
	now      func() time.Time
	cron     *cron.Cron
}

// NewSeedScheduler creates a scheduler sweeping once per minute.
func NewSeedScheduler(store storage.RaffleStore, service *Service, log *logger.Logger) *SeedScheduler {
	if log == nil {
		log = logger.NewDefault("raffle-seed-scheduler")
	}
	return &SeedScheduler{
		store:    store,
		service:  service,
		log:      log,
		schedule: defaultSweepSchedule,
		now:      time.Now,
	}
}

// WithSchedule overrides the sweep cadence with a cron spec.
func (p *SeedScheduler) WithSchedule(spec string) *SeedScheduler {
	if spec != "" {
		p.schedule = spec
	}
	return p
}

// WithClock overrides the scheduler clock. Intended for tests.
func (p *SeedScheduler) WithClock(now func() time.Time) *SeedScheduler {
	p.now = now
	return p
}

// Name implements system.Service.
func (p *SeedScheduler) Name() string { return "raffle-seed-scheduler" }

// Start begins the sweep loop.
func (p *SeedScheduler) Start(context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(p.schedule, func() { p.Sweep(context.Background()) }); err != nil {
		return err
	}
	c.Start()
	p.cron = c
	p.log.Infof("seed sweeps scheduled at %s", p.schedule)
	return nil
}

// Stop halts the sweep loop, waiting for an in-flight sweep to finish.
func (p *SeedScheduler) Stop(ctx context.Context) error {
	if p.cron == nil {
		return nil
	}
	done := p.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep initializes the seed of every raffle overdue for a draw. Races with a
// concurrent manual draw are tolerated: the resulting invalid-state error is
// not a sweep failure.
func (p *SeedScheduler) Sweep(ctx context.Context) {
	due, err := p.store.ListAwaitingSeed(ctx, p.now().UTC())
	if err != nil {
		p.log.WithError(err).Warn("list raffles awaiting seed")
		return
	}
	for _, r := range due {
		if _, err := p.service.InitializeSeed(ctx, r.ID); err != nil {
			if errors.Is(err, domain.ErrInvalidState) {
				continue
			}
			metrics.RecordSeedSweep(false)
			p.log.WithField("raffle_id", r.ID).WithError(err).Warn("initialize overdue seed")
			continue
		}
		metrics.RecordSeedSweep(true)
		p.log.WithField("raffle_id", r.ID).Info("initialized overdue seed")
	}
}
