package engine

import (
	"time"

	"backsim/types"

	"github.com/shopspring/decimal"
)

// RunConfig is the full configuration of one backtest run. It is an
// explicit value threaded into the engine so independent runs share
// nothing; each option is owned by exactly one component.
type RunConfig struct {
	// Orchestrator.
	Symbols  []string
	Interval types.Interval
	Start    time.Time
	End      time.Time
	// MinEntryStrength gates entries at the orchestrator: signals below
	// it are not forwarded to the risk sizer.
	MinEntryStrength float64
	ShowProgress     bool

	// Ledger.
	InitialEquity   decimal.Decimal
	MaxHoldDuration time.Duration

	// Risk sizer.
	MaxPositionSizePct     decimal.Decimal
	BaseLeverage           decimal.Decimal
	MaxLeverage            decimal.Decimal
	MaxConcurrentPositions int
	MaxDailyLossPct        decimal.Decimal
	StopLossPct            decimal.Decimal
	TakeProfitPct          decimal.Decimal
	TrailingStopPct        decimal.Decimal
	MinRewardRisk          decimal.Decimal
	// LeverageStrengthFloor: signal strength below it maps to leverage 1
	// (no amplification) instead of a rejection.
	LeverageStrengthFloor float64

	// Execution simulator.
	SlippageBps decimal.Decimal
	Commission  CommissionModel

	// Metrics.
	RiskFreeRate decimal.Decimal
}

// DefaultRunConfig returns the stock risk profile: 15% position size,
// up to 4x leverage, -3% daily loss breaker, 2%/4% stop/target, 1.5%
// trailing stop, 48h maximum hold, at most 10 concurrent positions.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Interval:               types.Hour,
		MinEntryStrength:       0.7,
		InitialEquity:          decimal.NewFromInt(100_000),
		MaxHoldDuration:        48 * time.Hour,
		MaxPositionSizePct:     decimal.NewFromFloat(0.15),
		BaseLeverage:           decimal.NewFromInt(1),
		MaxLeverage:            decimal.NewFromInt(4),
		MaxConcurrentPositions: 10,
		MaxDailyLossPct:        decimal.NewFromFloat(0.03),
		StopLossPct:            decimal.NewFromFloat(0.02),
		TakeProfitPct:          decimal.NewFromFloat(0.04),
		TrailingStopPct:        decimal.NewFromFloat(0.015),
		MinRewardRisk:          decimal.NewFromInt(1),
		LeverageStrengthFloor:  0.7,
		SlippageBps:            decimal.NewFromInt(5),
		Commission:             ZeroCommission{},
		RiskFreeRate:           decimal.Zero,
	}
}

// Validate fails fast on configuration that would make the run
// meaningless. It runs before any data is loaded.
func (c RunConfig) Validate() error {
	if len(c.Symbols) == 0 {
		return &ConfigError{Field: "symbols", Detail: "at least one symbol required"}
	}
	if _, ok := types.IntervalToTime[c.Interval]; !ok {
		return &ConfigError{Field: "interval", Detail: "unknown interval " + string(c.Interval)}
	}
	if !c.End.After(c.Start) {
		return &ConfigError{Field: "start/end", Detail: "end must be after start"}
	}
	if !c.InitialEquity.IsPositive() {
		return &ConfigError{Field: "initialEquity", Detail: "must be positive"}
	}
	if c.MaxPositionSizePct.IsNegative() || c.MaxPositionSizePct.GreaterThan(decimal.NewFromInt(1)) {
		return &ConfigError{Field: "maxPositionSizePct", Detail: "must be in [0, 1]"}
	}
	one := decimal.NewFromInt(1)
	if c.BaseLeverage.LessThan(one) {
		return &ConfigError{Field: "baseLeverage", Detail: "must be >= 1"}
	}
	if c.MaxLeverage.LessThan(c.BaseLeverage) {
		return &ConfigError{Field: "maxLeverage", Detail: "must be >= baseLeverage"}
	}
	if c.MaxConcurrentPositions <= 0 {
		return &ConfigError{Field: "maxConcurrentPositions", Detail: "must be positive"}
	}
	if !c.StopLossPct.IsPositive() {
		return &ConfigError{Field: "stopLossPct", Detail: "must be positive"}
	}
	if !c.TakeProfitPct.IsPositive() {
		return &ConfigError{Field: "takeProfitPct", Detail: "must be positive"}
	}
	// A take-profit closer than stop distance * minimum reward:risk can
	// never pass the sizer, so catch it up front.
	if c.TakeProfitPct.LessThan(c.StopLossPct.Mul(c.MinRewardRisk)) {
		return &ConfigError{Field: "takeProfitPct", Detail: "below stopLossPct * minRewardRisk"}
	}
	if c.TrailingStopPct.IsNegative() {
		return &ConfigError{Field: "trailingStopPct", Detail: "must be >= 0"}
	}
	if c.MaxHoldDuration <= 0 {
		return &ConfigError{Field: "maxHoldDuration", Detail: "must be positive"}
	}
	if c.SlippageBps.IsNegative() {
		return &ConfigError{Field: "slippageBps", Detail: "must be >= 0"}
	}
	if c.Commission == nil {
		return &ConfigError{Field: "commissionModel", Detail: "must be set (use ZeroCommission{})"}
	}
	return nil
}
