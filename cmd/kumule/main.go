package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Kumule/internal/config"
	"github.com/MikeSquared-Agency/Kumule/internal/scoring"
	"github.com/MikeSquared-Agency/Kumule/internal/store"
)

var timeNow = time.Now

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "kumule",
		Short:        "Estimated maximum loss per accumulation zone",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newImportCmd(&configPath),
		newExportCmd(&configPath),
		newAggregateCmd(&configPath),
	)
	return root
}

// app is what every command needs: config, logger, store and engine.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  store.Store
	engine *scoring.Engine
}

func setup(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	sc, err := cfg.Engine.ScoringConfig()
	if err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	engine, err := scoring.NewEngine(sc, logger)
	if err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}

	s, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, store: s, engine: engine}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close store", "error", err)
	}
}

// calcYear returns the flag value, the configured year, or the current year.
func (a *app) calcYear(flag int) int {
	if flag != 0 {
		return flag
	}
	if a.cfg.Engine.CalcYear != 0 {
		return a.cfg.Engine.CalcYear
	}
	return timeNow().Year()
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (store.Store, error) {
	switch cfg.Driver {
	case "postgres":
		db, err := store.NewPostgresStore(ctx, cfg.URL, cfg.Name, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		logger.Info("connected to database", "document", cfg.Name)
		return db, nil
	default:
		fs, err := store.NewFileStore(cfg.Path, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("using database file", "path", fs.Path())
		return fs, nil
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
