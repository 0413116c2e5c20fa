package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"utmcore/internal/config"
	"utmcore/internal/conflict"
	"utmcore/internal/db"
	"utmcore/internal/externalutm"
	"utmcore/internal/httpapi"
	"utmcore/internal/logging"
	"utmcore/internal/loops"
	"utmcore/internal/persistence"
	"utmcore/internal/resolution"
	"utmcore/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.NewDefault(slog.LevelInfo)
	ctx := context.Background()
	logger.Info(ctx, "configuration loaded", "config", cfg.String())

	d, err := db.Open(cfg.Database.Path)
	if err != nil {
		log.Printf("open db: %v", err)
		os.Exit(2)
	}
	defer func() {
		if err := d.Close(); err != nil {
			log.Printf("close db: %v", err)
		}
	}()

	bundle := persistence.NewBundle(d)

	s := store.New(nil, logger, cfg.Limits, bundle)
	if err := s.LoadFromPersistence(ctx); err != nil {
		log.Printf("load persisted state: %v", err)
		os.Exit(2)
	}

	detector := conflict.New(conflict.Limits{
		MinHorizontalSeparationM: cfg.Limits.MinHorizontalSeparationM,
		MinVerticalSeparationM:   cfg.Limits.MinVerticalSeparationM,
		Lookahead:                cfg.Limits.Lookahead,
		SampleInterval:           cfg.Limits.SampleInterval,
	})
	resolver := resolution.New(resolution.Limits{
		MinHorizontalSeparationM: cfg.Limits.MinHorizontalSeparationM,
		MinVerticalSeparationM:   cfg.Limits.MinVerticalSeparationM,
		MinAltitudeM:             cfg.Limits.MinAltitudeM,
		MaxAltitudeM:             cfg.Limits.MaxAltitudeM,
		Lookahead:                cfg.Limits.Lookahead,
		Cooldown:                 cfg.Limits.CommandCooldown,
	})

	runner := loops.New(s, detector, resolver, logger, nil, loops.Config{
		ConflictTick:    cfg.Limits.ConflictTick,
		SweepTick:       time.Second,
		DroneTimeout:    cfg.Limits.DroneTimeout,
		CommandLifetime: cfg.Limits.Lookahead * 2,
		Cooldown:        cfg.Limits.CommandCooldown,
	})
	loopCtx, cancelLoops := context.WithCancel(ctx)
	runner.Start(loopCtx)

	var cancelSync context.CancelFunc
	var syncer *externalutm.Syncer
	if cfg.ExternalUTM.Endpoint != "" {
		client := externalutm.NewHTTPClient(cfg.ExternalUTM.Endpoint, cfg.ExternalUTM.APIKey, cfg.ExternalUTM.RequestBudget)
		syncer = externalutm.NewSyncer(client, s, bundle.Sync, logger)
		var syncCtx context.Context
		syncCtx, cancelSync = context.WithCancel(ctx)
		go syncer.Run(syncCtx, cfg.ExternalUTM.SyncInterval)
		logger.Info(ctx, "external utm sync enabled", "endpoint", cfg.ExternalUTM.Endpoint)
	}

	handler := httpapi.New(s, logger, cfg)
	srv := &http.Server{Addr: cfg.HTTP.Address, Handler: handler}
	go func() {
		logger.Info(ctx, "http server listening", "address", cfg.HTTP.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info(ctx, "shutdown signal received")

	cancelLoops()
	runner.Stop()
	if cancelSync != nil {
		cancelSync()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "http shutdown error", "error", err)
	}
}
