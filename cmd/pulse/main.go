package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"token-pulse/internal/api"
	"token-pulse/internal/config"
	"token-pulse/internal/database"
	"token-pulse/internal/loader"
	"token-pulse/internal/logger"
	"token-pulse/internal/pulse"
	"token-pulse/internal/source"

	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded", zap.String("source", cfg.Source.Kind))

	var src loader.Source
	switch cfg.Source.Kind {
	case config.SourceHTTP:
		src = source.NewRestSource(cfg.Source, log)
	default:
		db, err := database.NewDatabase(cfg.Database.DSN, cfg.Database.Seed)
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		log.Info("Database connection successful and schema migrated.")
		src = source.NewDatabaseSource(db, cfg.Loader.Latency, log)
	}

	engine, err := pulse.NewEngine(log, &cfg, src)
	if err != nil {
		log.Fatal("Failed to create engine", zap.Error(err))
	}

	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server := api.NewAPIServer(engine, cfg.Server.Port, log)
	server.Start()

	if err := engine.Run(ctx); err != nil {
		log.Error("Engine failed", zap.Error(err))
	}
	log.Info("Shutdown signal received, gracefully shutting down...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("API server shutdown failed", zap.Error(err))
	}

	log.Info("Token pulse has been shut down.")
}
