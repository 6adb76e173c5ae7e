package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"backsim/internal/engine"
	"backsim/internal/journal"
	"backsim/strategies"
	"backsim/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a backtest for one strategy",
	Long: `Run replays the configured date range through a single strategy and
prints the performance report.

Example:
  backsim run -s momentum-breakout --symbols AAPL,MSFT --start 2024-01-01 --end 2024-06-01`,
	RunE: runRun,
}

var (
	runStrategy   string
	runSymbols    []string
	runStart      string
	runEnd        string
	runInterval   string
	runCSVPath    string
	runNoProgress bool
	runNoJournal  bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runStrategy, "strategy", "s", "", "strategy name (see 'backsim strategies')")
	runCmd.Flags().StringSliceVar(&runSymbols, "symbols", nil, "symbols to trade (overrides config)")
	runCmd.Flags().StringVar(&runStart, "start", "", "start date YYYY-MM-DD (overrides config)")
	runCmd.Flags().StringVar(&runEnd, "end", "", "end date YYYY-MM-DD (overrides config)")
	runCmd.Flags().StringVar(&runInterval, "interval", "", "bar interval: 1, 5, 15, 30, 60, 240, D (overrides config)")
	runCmd.Flags().StringVar(&runCSVPath, "csv", "", "write closed trades to this CSV file")
	runCmd.Flags().BoolVar(&runNoProgress, "no-progress", false, "disable the progress bar")
	runCmd.Flags().BoolVar(&runNoJournal, "no-journal", false, "skip writing the run to the journal")

	runCmd.MarkFlagRequired("strategy")
}

func runRun(cmd *cobra.Command, args []string) error {
	appCfg, logger := loadApp()

	runCfg, err := appCfg.RunConfig()
	if err != nil {
		return err
	}
	if err := applyRunFlags(&runCfg); err != nil {
		return err
	}

	strat, ok := strategies.Default().Get(runStrategy)
	if !ok {
		return fmt.Errorf("unknown strategy %q (see 'backsim strategies')", runStrategy)
	}

	ctx := context.Background()
	source, cleanup, err := newBarSource(ctx, appCfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := engine.New(source, logger).Run(ctx, runCfg, strat)
	if err != nil {
		return err
	}

	engine.PrintReport(report)

	if runCSVPath != "" {
		if err := engine.WriteTradesCSVFile(runCSVPath, report.Trades); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		fmt.Printf("\nTrades written to %s\n", runCSVPath)
	}

	if !runNoJournal && appCfg.Journal.Path != "" {
		if err := recordRun(appCfg.Journal.Path, runCfg, report); err != nil {
			return fmt.Errorf("journal: %w", err)
		}
	}

	return nil
}

func recordRun(path string, runCfg engine.RunConfig, report *engine.Report) error {
	j, err := journal.NewSQLite(path)
	if err != nil {
		return err
	}
	defer j.Close()

	run := journal.NewRunRecord(runCfg, report)
	if err := j.RecordRun(run, journal.TradesFromPositions(run.RunID, report.Trades)); err != nil {
		return err
	}
	fmt.Printf("Run journaled as %s\n", run.RunID)
	return nil
}

func applyRunFlags(runCfg *engine.RunConfig) error {
	if len(runSymbols) > 0 {
		runCfg.Symbols = runSymbols
	}
	if runInterval != "" {
		interval, ok := types.ConvertInterval[runInterval]
		if !ok {
			return fmt.Errorf("unknown interval %q", runInterval)
		}
		runCfg.Interval = interval
	}
	if runStart != "" {
		start, err := time.Parse("2006-01-02", runStart)
		if err != nil {
			return fmt.Errorf("parse start: %w", err)
		}
		runCfg.Start = start
	}
	if runEnd != "" {
		end, err := time.Parse("2006-01-02", runEnd)
		if err != nil {
			return fmt.Errorf("parse end: %w", err)
		}
		runCfg.End = end
	}
	runCfg.ShowProgress = !runNoProgress
	return nil
}
