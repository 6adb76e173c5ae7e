package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"backsim/internal/journal"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List journaled backtest runs",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

var runsTradesCmd = &cobra.Command{
	Use:   "trades <run-id>",
	Short: "List the closed trades of a journaled run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsTrades,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsTradesCmd)
}

func openJournal() (*journal.SQLite, error) {
	appCfg, _ := loadApp()
	if appCfg.Journal.Path == "" {
		return nil, fmt.Errorf("no journal configured: set journal.path in %s", configPath)
	}
	return journal.NewSQLite(appCfg.Journal.Path)
}

func runRuns(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.ListRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs journaled yet")
		return nil
	}

	fmt.Printf("%-26s  %-18s  %-10s  %-10s  %8s  %10s  %6s\n",
		"RUN", "STRATEGY", "START", "END", "TRADES", "RETURN", "SHARPE")
	for _, run := range runs {
		fmt.Printf("%-26s  %-18s  %-10s  %-10s  %8d  %10s  %6s\n",
			run.RunID, run.Strategy,
			run.Start.Format("2006-01-02"), run.End.Format("2006-01-02"),
			run.TotalTrades, run.TotalReturn, run.SharpeRatio)
	}
	return nil
}

func runRunsTrades(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	trades, err := j.ListTrades(args[0])
	if err != nil {
		return err
	}
	if len(trades) == 0 {
		fmt.Println("no trades for that run")
		return nil
	}

	fmt.Printf("%-26s  %-8s  %-5s  %8s  %-16s  %10s  %-16s  %10s  %-16s  %10s\n",
		"TRADE", "SYMBOL", "SIDE", "QTY", "ENTRY", "PRICE", "EXIT", "PRICE", "REASON", "PNL")
	for _, t := range trades {
		fmt.Printf("%-26s  %-8s  %-5s  %8d  %-16s  %10s  %-16s  %10s  %-16s  %10s\n",
			t.TradeID, t.Symbol, t.Side, t.Quantity,
			t.EntryTime.Format("2006-01-02 15:04"), t.EntryPrice,
			t.ExitTime.Format("2006-01-02 15:04"), t.ExitPrice,
			t.ExitReason, t.RealizedPnl)
	}
	return nil
}
