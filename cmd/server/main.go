package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/tracesynth/internal/config"
	"github.com/JonMunkholm/tracesynth/internal/logging"
	"github.com/JonMunkholm/tracesynth/internal/store"
	"github.com/JonMunkholm/tracesynth/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	envErr := godotenv.Overload()

	// Load and validate configuration
	cfg := config.MustLoad()

	logger, closeLogs := logging.Setup(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		SeqURL: cfg.Logging.SeqURL,
	})
	defer closeLogs()

	if envErr != nil {
		logger.Info("no .env file found, using environment variables")
	} else {
		logger.Info("loaded .env file (overwriting existing env vars)")
	}

	logger.Info("configuration loaded",
		"port", cfg.Server.Port,
		"data_root", cfg.Data.Root,
		"save_max_attempts", cfg.Save.MaxAttempts,
		"save_max_concurrent", cfg.Save.MaxConcurrent,
	)

	// Database export and import are optional
	var database web.Database
	if cfg.Database.Enabled() {
		db, err := store.Open(context.Background(), cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			closeLogs()
			os.Exit(1)
		}
		defer db.Close()
		database = db
	} else {
		logger.Info("database not configured, export and import disabled")
	}

	server := web.NewServer(cfg, logger, database)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Waits for in-flight saves before closing listeners
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	logger.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
		closeLogs()
		os.Exit(1)
	}
	<-done
	logger.Info("server stopped")
}
