package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"backsim/types"
)

// Engine loads bar history and runs backtests over it. One Engine can
// serve many runs; each run owns its own ledger and shares nothing
// mutable with the others.
type Engine struct {
	source BarSource
	logger *slog.Logger
}

func New(source BarSource, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{source: source, logger: logger}
}

// Run executes one backtest of the strategy under the config.
func (e *Engine) Run(ctx context.Context, cfg RunConfig, strat Strategy) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bars, cfg, err := e.loadBars(ctx, cfg)
	if err != nil {
		return nil, err
	}
	bt, err := newBacktester(cfg, strat, bars, e.logger)
	if err != nil {
		return nil, err
	}
	return bt.run(ctx)
}

// Compare runs each strategy over the same loaded bar data and config.
// Runs are isolated (each owns its ledger) and share only the read-only
// bars, so they execute concurrently. A run failure does not invalidate
// the others; completed reports are returned alongside the first error.
func (e *Engine) Compare(ctx context.Context, cfg RunConfig, strategies []Strategy) (map[string]*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bars, cfg, err := e.loadBars(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		reports  = make(map[string]*Report, len(strategies))
		firstErr error
	)
	for _, strat := range strategies {
		wg.Add(1)
		go func(strat Strategy) {
			defer wg.Done()
			bt, err := newBacktester(cfg, strat, bars, e.logger)
			if err == nil {
				var report *Report
				report, err = bt.run(ctx)
				if err == nil {
					mu.Lock()
					reports[strat.Name()] = report
					mu.Unlock()
					return
				}
			}
			mu.Lock()
			if firstErr == nil {
				firstErr = fmt.Errorf("strategy %s: %w", strat.Name(), err)
			}
			mu.Unlock()
		}(strat)
	}
	wg.Wait()
	return reports, firstErr
}

// loadBars prefetches history for every symbol before the replay
// starts; the simulation loop never touches I/O. Symbols whose history
// is unavailable are excluded from the run with a warning rather than
// aborting it.
func (e *Engine) loadBars(ctx context.Context, cfg RunConfig) (map[string][]types.Bar, RunConfig, error) {
	bars := make(map[string][]types.Bar, len(cfg.Symbols))
	kept := make([]string, 0, len(cfg.Symbols))

	for _, symbol := range cfg.Symbols {
		series, err := e.source.GetBars(ctx, symbol, cfg.Interval, cfg.Start, cfg.End)
		if err != nil {
			if errors.Is(err, ErrDataUnavailable) {
				e.logger.Warn("excluding symbol from run", "symbol", symbol, "error", err)
				continue
			}
			return nil, cfg, fmt.Errorf("load bars for %s: %w", symbol, err)
		}
		bars[symbol] = series
		kept = append(kept, symbol)
	}
	if len(kept) == 0 {
		return nil, cfg, ErrNoSymbols
	}
	sort.Strings(kept)
	cfg.Symbols = kept
	return bars, cfg, nil
}

// PrintReport renders the report in the fixed-width text layout the CLI
// prints after a run.
func PrintReport(report *Report) {
	fmt.Println("===== Backtest Report =====")
	fmt.Printf("Strategy:              %s\n", report.Strategy)
	fmt.Printf("Start Date:            %s\n", report.StartDate.Format("2006-01-02"))
	fmt.Printf("Total Period:          %d days\n", report.TotalPeriod/(24*time.Hour))
	fmt.Printf("Total Trades:          %d\n", report.TotalTrades)

	fmt.Println("\n-- Returns --")
	fmt.Printf("Initial Equity:        %s\n", report.InitialEquity)
	fmt.Printf("Final Equity:          %s\n", report.FinalEquity)
	fmt.Printf("Total Return:          %s\n", report.TotalReturn)
	fmt.Printf("Annualized Return:     %s\n", report.AnnualizedReturn)

	fmt.Println("\n-- Trade-Level Metrics --")
	fmt.Printf("Win Rate:              %s\n", report.WinRate)
	fmt.Printf("Avg Trade PnL:         %s\n", report.AvgTradePnl)
	fmt.Printf("Avg Win:               %s\n", report.AvgWin)
	fmt.Printf("Avg Loss:              %s\n", report.AvgLoss)
	fmt.Printf("Avg Hold Time:         %s\n", report.AvgHoldTime)
	fmt.Printf("Max Consecutive Wins:  %d\n", report.MaxConsecutiveWins)
	fmt.Printf("Max Consecutive Losses:%d\n", report.MaxConsecutiveLosses)

	fmt.Println("\n-- Risk-Adjusted Metrics --")
	fmt.Printf("Max Drawdown:          %s\n", report.MaxDrawdown)
	fmt.Printf("Sharpe Ratio:          %s\n", report.SharpeRatio)
	fmt.Printf("Sortino Ratio:         %s\n", report.SortinoRatio)
	if report.ProfitFactor != nil {
		fmt.Printf("Profit Factor:         %s\n", report.ProfitFactor)
	} else {
		fmt.Printf("Profit Factor:         inf (no losing trades)\n")
	}

	fmt.Println("\n-- Costs & Diagnostics --")
	fmt.Printf("Total Fees:            %s\n", report.TotalFees)
	fmt.Printf("Best Day:              %s\n", report.BestDayPct)
	fmt.Printf("Worst Day:             %s\n", report.WorstDayPct)
	fmt.Printf("Eval Errors:           %d\n", report.StrategyEvalErrors)
	for reason, count := range report.Rejections {
		fmt.Printf("Rejected (%s): %d\n", reason, count)
	}
	fmt.Println("===========================")
}
