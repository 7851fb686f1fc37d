package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"token-pulse/internal/config"
	"token-pulse/internal/database"
	"token-pulse/internal/logger"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Connect to the database
	db, err := database.NewDatabase(cfg.Database.DSN, cfg.Database.Seed)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	handler := NewAPIHandler(log, db)

	addr := fmt.Sprintf(":%d", cfg.Catalog.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info("Starting catalog server", zap.String("address", addr))

	if err := server.ListenAndServe(); err != nil {
		log.Fatal("Catalog server failed", zap.Error(err))
	}
}
