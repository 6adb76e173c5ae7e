// Package config loads the application's YAML configuration and turns
// its backtest section into an engine.RunConfig.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"backsim/internal/engine"
	"backsim/types"
)

// Config is the top-level configuration for backsim.
type Config struct {
	Database Database `yaml:"database"`
	Alpaca   Alpaca   `yaml:"alpaca"`
	Logging  Logging  `yaml:"logging"`
	Journal  Journal  `yaml:"journal"`
	Backtest Backtest `yaml:"backtest"`
}

// Database holds the Postgres bar-store connection string.
type Database struct {
	URL string `yaml:"url"`
}

// Alpaca holds credentials for the Alpaca market-data fallback source.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	Feed      string `yaml:"feed"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Journal holds the SQLite run-journal location.
type Journal struct {
	Path string `yaml:"path"`
}

// Backtest mirrors engine.RunConfig in YAML form. Zero-valued fields
// fall back to the engine defaults.
type Backtest struct {
	Symbols  []string `yaml:"symbols"`
	Interval string   `yaml:"interval"`
	Start    string   `yaml:"start"`
	End      string   `yaml:"end"`

	InitialEquity    float64 `yaml:"initial_equity"`
	MinEntryStrength float64 `yaml:"min_entry_strength"`
	MaxHoldHours     int     `yaml:"max_hold_hours"`

	MaxPositionSizePct     float64 `yaml:"max_position_size_pct"`
	BaseLeverage           float64 `yaml:"base_leverage"`
	MaxLeverage            float64 `yaml:"max_leverage"`
	MaxConcurrentPositions int     `yaml:"max_concurrent_positions"`
	MaxDailyLossPct        float64 `yaml:"max_daily_loss_pct"`
	StopLossPct            float64 `yaml:"stop_loss_pct"`
	TakeProfitPct          float64 `yaml:"take_profit_pct"`
	TrailingStopPct        float64 `yaml:"trailing_stop_pct"`
	MinRewardRisk          float64 `yaml:"min_reward_risk"`
	LeverageStrengthFloor  float64 `yaml:"leverage_strength_floor"`

	SlippageBps   float64 `yaml:"slippage_bps"`
	CommissionBps float64 `yaml:"commission_bps"`
	RiskFreeRate  float64 `yaml:"risk_free_rate"`
}

const dateLayout = "2006-01-02"

// Load reads the YAML configuration file at path and applies
// environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}

	// Canonical Alpaca SDK names take priority.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// RunConfig converts the backtest section into an engine.RunConfig,
// starting from engine defaults and overriding only the fields the file
// sets. The result is not validated here; the engine validates at run
// start.
func (c *Config) RunConfig() (engine.RunConfig, error) {
	run := engine.DefaultRunConfig()
	bt := c.Backtest

	run.Symbols = bt.Symbols

	if bt.Interval != "" {
		interval, ok := types.ConvertInterval[bt.Interval]
		if !ok {
			return run, fmt.Errorf("unknown interval %q", bt.Interval)
		}
		run.Interval = interval
	}
	if bt.Start != "" {
		start, err := time.Parse(dateLayout, bt.Start)
		if err != nil {
			return run, fmt.Errorf("parse start: %w", err)
		}
		run.Start = start
	}
	if bt.End != "" {
		end, err := time.Parse(dateLayout, bt.End)
		if err != nil {
			return run, fmt.Errorf("parse end: %w", err)
		}
		run.End = end
	}

	if bt.InitialEquity > 0 {
		run.InitialEquity = decimal.NewFromFloat(bt.InitialEquity)
	}
	if bt.MinEntryStrength > 0 {
		run.MinEntryStrength = bt.MinEntryStrength
	}
	if bt.MaxHoldHours > 0 {
		run.MaxHoldDuration = time.Duration(bt.MaxHoldHours) * time.Hour
	}
	if bt.MaxPositionSizePct > 0 {
		run.MaxPositionSizePct = decimal.NewFromFloat(bt.MaxPositionSizePct)
	}
	if bt.BaseLeverage > 0 {
		run.BaseLeverage = decimal.NewFromFloat(bt.BaseLeverage)
	}
	if bt.MaxLeverage > 0 {
		run.MaxLeverage = decimal.NewFromFloat(bt.MaxLeverage)
	}
	if bt.MaxConcurrentPositions > 0 {
		run.MaxConcurrentPositions = bt.MaxConcurrentPositions
	}
	if bt.MaxDailyLossPct > 0 {
		run.MaxDailyLossPct = decimal.NewFromFloat(bt.MaxDailyLossPct)
	}
	if bt.StopLossPct > 0 {
		run.StopLossPct = decimal.NewFromFloat(bt.StopLossPct)
	}
	if bt.TakeProfitPct > 0 {
		run.TakeProfitPct = decimal.NewFromFloat(bt.TakeProfitPct)
	}
	if bt.TrailingStopPct > 0 {
		run.TrailingStopPct = decimal.NewFromFloat(bt.TrailingStopPct)
	}
	if bt.MinRewardRisk > 0 {
		run.MinRewardRisk = decimal.NewFromFloat(bt.MinRewardRisk)
	}
	if bt.LeverageStrengthFloor > 0 {
		run.LeverageStrengthFloor = bt.LeverageStrengthFloor
	}
	if bt.SlippageBps > 0 {
		run.SlippageBps = decimal.NewFromFloat(bt.SlippageBps)
	}
	if bt.CommissionBps > 0 {
		run.Commission = engine.BpsCommission{Bps: decimal.NewFromFloat(bt.CommissionBps)}
	}
	if bt.RiskFreeRate > 0 {
		run.RiskFreeRate = decimal.NewFromFloat(bt.RiskFreeRate)
	}

	return run, nil
}
