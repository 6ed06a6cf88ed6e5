package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"esimsync/internal/app"
	"esimsync/internal/config"
	"esimsync/internal/database"
	"esimsync/internal/logger"
	"esimsync/internal/worker"
	"esimsync/internal/worker/processors"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)
	defer logger.Sync()

	db, err := database.New(cfg.DatabaseURL, cfg.LogLevel)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	a, err := app.New(cfg, logger, db)
	if err != nil {
		logger.Fatal("Failed to initialize services: %v", err)
	}

	processor := processors.NewEventProcessor(a.Orchestrator, a.Orchestrator, a.Syncer, a.CatalogOptions(), logger)
	w := worker.New(cfg, logger, processor)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting worker...")
	if err := w.Run(ctx); err != nil {
		logger.Error("Worker stopped with error: %v", err)
	}

	logger.Info("Shutting down worker...")
	w.Stop()
}
