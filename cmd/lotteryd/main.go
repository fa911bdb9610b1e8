// Package main runs the two-tier lottery engine: the HTTP API, the draw
// scheduler and the configured persistence backend.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/twinpot/lottery-engine/internal/config"
	"github.com/twinpot/lottery-engine/internal/runtime"
	"github.com/twinpot/lottery-engine/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (default: $LOTTERY_CONFIG or config/lottery.yaml)")
	flag.Parse()

	// Optional .env for local runs; environment wins over file values.
	_ = godotenv.Load()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadOrDefault()
	}
	if err != nil {
		logger.NewDefault("lotteryd").WithError(err).Fatal("load config")
	}

	log := logger.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := runtime.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("initialise application")
	}

	log.WithField("driver", cfg.Database.Driver).Info("lottery engine starting")
	if err := app.Run(ctx); err != nil {
		log.WithError(err).Error("application error")
	}

	stop()
	if err := app.Shutdown(context.Background()); err != nil {
		log.WithError(err).Error("shutdown error")
		os.Exit(1)
	}
	log.Info("lottery engine stopped")
}
