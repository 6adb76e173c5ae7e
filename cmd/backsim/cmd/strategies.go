package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"backsim/strategies"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the built-in strategies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := strategies.Default()
		for _, name := range registry.List() {
			strat, _ := registry.Get(name)
			fmt.Printf("%-20s lookback %d bars\n", name, strat.RequiredBars())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}
