// Package main runs the raffle service: REST API, background seed sweeper
// and the configured persistence backend.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "github.com/openraffle/raffle_layer/internal/app"
	"github.com/openraffle/raffle_layer/internal/app/httpapi"
	rafflesvc "github.com/openraffle/raffle_layer/internal/app/services/raffle"
	"github.com/openraffle/raffle_layer/internal/app/storage/postgres"
	"github.com/openraffle/raffle_layer/internal/config"
	"github.com/openraffle/raffle_layer/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault("raffled").WithError(err).Error("load config")
		os.Exit(1)
	}

	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	stores := app.Stores{}
	if cfg.Database.DSN != "" {
		store, err := postgres.Open(cfg.Database.DSN, cfg.Database.MaxOpenConns)
		if err != nil {
			log.WithError(err).Error("connect database")
			os.Exit(1)
		}
		defer store.Close()
		if cfg.Database.Migrate {
			if err := store.Migrate(); err != nil {
				log.WithError(err).Error("apply migrations")
				os.Exit(1)
			}
		}
		stores = app.Stores{Raffles: store, Custody: store, Randomness: store}
		log.Info("using postgres storage")
	} else {
		log.Warn("DATABASE_URL not set; using in-memory storage")
	}

	application, err := app.New(stores, app.Options{
		Royalty: rafflesvc.RoyaltySettings{
			BaseRate:     cfg.Royalty.BaseRate,
			OverflowRate: cfg.Royalty.OverflowRate,
			Treasury:     cfg.Royalty.Treasury,
		},
		SweepSchedule: cfg.SweepSchedule,
	}, log)
	if err != nil {
		log.WithError(err).Error("build application")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("start services")
		os.Exit(1)
	}

	server := &http.Server{
		Addr: cfg.Server.Address,
		Handler: httpapi.NewHandler(application, httpapi.Config{
			AuthToken: cfg.Server.AuthToken,
			RateLimit: cfg.Server.RateLimit,
			RateBurst: cfg.Server.RateBurst,
		}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.Server.Address)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("service shutdown")
	}
	log.Info("stopped")
}
