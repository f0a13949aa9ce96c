package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"status-promo-marketplace/config"
	"status-promo-marketplace/internal/app"
	"status-promo-marketplace/pkg/logger"
)

// The worker runs the expiration sweeps on their schedule. Several replicas
// may run at once; the Redis sweep lock lets one pass through at a time.
func main() {
	cfg, err := config.Load(os.Getenv("SPM_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	log.Info().
		Dur("hourly_interval", cfg.Sweeper.HourlyInterval).
		Dur("daily_interval", cfg.Sweeper.DailyInterval).
		Msg("Starting Status Promo Marketplace worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, log, app.Infra{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize worker")
	}
	defer application.Close()

	if err := application.Scheduler().Run(ctx); err != nil {
		log.Error().Err(err).Msg("Scheduler stopped with error")
	}
	log.Info().Msg("Worker exited")
}
