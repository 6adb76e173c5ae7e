package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"backsim/internal/engine"
	"backsim/strategies"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Run several strategies over the same data and compare reports",
	Long: `Compare loads the configured date range once and replays it through
each named strategy concurrently; every run gets its own isolated
ledger. With no --strategies flag, all built-in strategies run.`,
	RunE: runCompare,
}

var compareStrategies []string

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().StringSliceVar(&compareStrategies, "strategies", nil, "strategy names to compare (default: all)")
	compareCmd.Flags().StringSliceVar(&runSymbols, "symbols", nil, "symbols to trade (overrides config)")
	compareCmd.Flags().StringVar(&runStart, "start", "", "start date YYYY-MM-DD (overrides config)")
	compareCmd.Flags().StringVar(&runEnd, "end", "", "end date YYYY-MM-DD (overrides config)")
	compareCmd.Flags().StringVar(&runInterval, "interval", "", "bar interval (overrides config)")
}

func runCompare(cmd *cobra.Command, args []string) error {
	appCfg, logger := loadApp()

	runCfg, err := appCfg.RunConfig()
	if err != nil {
		return err
	}
	runNoProgress = true // concurrent progress bars interleave
	if err := applyRunFlags(&runCfg); err != nil {
		return err
	}

	registry := strategies.Default()
	names := compareStrategies
	if len(names) == 0 {
		names = registry.List()
	}
	selected := make([]engine.Strategy, 0, len(names))
	for _, name := range names {
		strat, ok := registry.Get(name)
		if !ok {
			return fmt.Errorf("unknown strategy %q (see 'backsim strategies')", name)
		}
		selected = append(selected, strat)
	}

	ctx := context.Background()
	source, cleanup, err := newBarSource(ctx, appCfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	reports, err := engine.New(source, logger).Compare(ctx, runCfg, selected)
	if err != nil {
		logger.Error("compare finished with failures", "error", err)
	}

	ranked := make([]string, 0, len(reports))
	for name := range reports {
		ranked = append(ranked, name)
	}
	sort.Slice(ranked, func(i, j int) bool {
		return reports[ranked[i]].TotalReturn.GreaterThan(reports[ranked[j]].TotalReturn)
	})

	for _, name := range ranked {
		engine.PrintReport(reports[name])
		fmt.Println()
	}
	if len(ranked) > 0 {
		fmt.Printf("Best total return: %s (%s)\n", ranked[0], reports[ranked[0]].TotalReturn)
	}
	return err
}
