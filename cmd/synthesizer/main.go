// Command synthesizer loads the table named by SYNTH_INPUT, optionally
// exports it to PostgreSQL, and saves it to SYNTH_OUTPUT with the configured
// retry policy.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/tracesynth/internal/config"
	"github.com/JonMunkholm/tracesynth/internal/core"
	"github.com/JonMunkholm/tracesynth/internal/logging"
	"github.com/JonMunkholm/tracesynth/internal/store"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	envErr := godotenv.Overload()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, closeLogs := logging.Setup(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		SeqURL: cfg.Logging.SeqURL,
	})
	if envErr != nil {
		logger.Debug("no .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, logger, openExporter)
	stop()

	if err != nil {
		reportFailure(logger, err)
		closeLogs()
		os.Exit(1)
	}
	closeLogs()
}

// reportFailure logs the user-facing message for err with its code and
// technical detail.
func reportFailure(logger *slog.Logger, err error) {
	ue := core.NewUserError(err)
	if ue == nil {
		return
	}
	msg := ue.Error()
	if ue.User.Action != "" {
		msg += ". " + ue.User.Action
	}
	logger.Error(msg, "code", ue.User.Code, "error", ue.Technical)
}

// exporter is the part of the store the driver needs.
type exporter interface {
	Export(ctx context.Context, name string, t *core.Table) (int64, error)
	Close()
}

// openExporter connects to the configured database.
func openExporter(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (exporter, error) {
	db, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// run performs one load, optional export, and save.
func run(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	open func(context.Context, config.DatabaseConfig, *slog.Logger) (exporter, error),
) error {
	if cfg.Data.Input == "" || cfg.Data.Output == "" {
		return errors.New("SYNTH_INPUT and SYNTH_OUTPUT must both be set")
	}

	logger.Info("loading table", "path", cfg.Data.Input)
	t, err := core.Load(cfg.Data.Input)
	if err != nil {
		return err
	}
	logger.Info("table loaded",
		"path", cfg.Data.Input,
		"rows", t.Len(),
		"columns", len(t.Columns()),
		"bytes", t.SourceBytes(),
	)

	if cfg.Database.ExportTable != "" {
		db, err := open(ctx, cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		n, err := db.Export(ctx, cfg.Database.ExportTable, t)
		db.Close()
		if err != nil {
			return err
		}
		logger.Info("table exported", "table", cfg.Database.ExportTable, "rows", n)
	}

	res, err := core.NewSaver(logger, cfg.Save.Policy()).Save(ctx, t, cfg.Data.Output)
	if err != nil {
		return err
	}
	logger.Info("table saved",
		"save_id", res.ID,
		"path", res.Path,
		"rows", res.Rows,
		"attempts", res.Attempts,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return nil
}
