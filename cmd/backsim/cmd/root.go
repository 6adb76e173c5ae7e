// Package cmd wires the backsim CLI: loading configuration, choosing a
// bar source, and dispatching to the engine.
package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"backsim/internal/config"
	"backsim/internal/engine"
	"backsim/internal/marketdata"
	"backsim/internal/repository"
	"backsim/internal/util"
)

var rootCmd = &cobra.Command{
	Use:   "backsim",
	Short: "Chronological bar-replay backtester for systematic strategies",
	Long: `Backsim replays historical OHLCV bars through pluggable strategies
under realistic execution: slippage, commission, leverage and margin
accounting, protective stops, and a daily loss circuit breaker.

Bars come from a TimescaleDB bar store or, as a fallback, the Alpaca
market-data API. Finished runs are journaled to SQLite and summarized
with trade-level and risk-adjusted metrics.`,
	SilenceUsage: true,
}

var configPath string

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "backsim.yaml", "path to YAML config file")
}

// loadApp loads the config file and builds the logger every subcommand
// shares. A missing config file is fine: defaults plus environment
// overrides still make a usable setup.
func loadApp() (*config.Config, *slog.Logger) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			util.NewLogger("info", "text").Warn("config file unreadable, using defaults", "path", configPath, "error", err)
		}
		cfg = &config.Config{}
	}
	return cfg, util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
}

// newBarSource picks the bar source: the Postgres bar store when a
// database URL is configured, otherwise Alpaca when credentials are
// present.
func newBarSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (engine.BarSource, func(), error) {
	if cfg.Database.URL != "" {
		db, err := repository.NewDatabase(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("using postgres bar store")
		return db, db.Close, nil
	}
	if cfg.Alpaca.APIKey != "" {
		logger.Debug("using alpaca bar source", "feed", cfg.Alpaca.Feed)
		source := marketdata.NewBarSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL, cfg.Alpaca.Feed, logger)
		return source, func() {}, nil
	}
	return nil, nil, errors.New("no bar source configured: set database.url or alpaca credentials")
}
