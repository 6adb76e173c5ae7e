package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"backsim/types"
)

// WriteTradesCSVFile writes the closed-trade log to a CSV file at the
// given path.
func WriteTradesCSVFile(path string, trades []types.Position) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trades file: %w", err)
	}
	defer f.Close()

	return WriteTradesCSV(f, trades)
}

// WriteTradesCSV writes the closed-trade log to any io.Writer as CSV.
// Pass os.Stdout for debugging, or a file.
func WriteTradesCSV(w io.Writer, trades []types.Position) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{
		"id",
		"symbol",
		"side",
		"quantity",
		"leverage",
		"entry_time", // RFC3339
		"entry_price",
		"exit_time",
		"exit_price",
		"exit_reason",
		"realized_pnl",
		"fees",
		"rationale",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, tr := range trades {
		record := []string{
			tr.ID,
			tr.Symbol,
			string(tr.Side),
			fmt.Sprintf("%d", tr.Quantity),
			tr.Leverage.String(),
			tr.EntryTime.Format(time.RFC3339),
			tr.EntryFillPrice.String(),
			tr.ExitTime.Format(time.RFC3339),
			tr.ExitFillPrice.String(),
			string(tr.ExitReason),
			tr.RealizedPnl.String(),
			tr.EntryFee.Add(tr.ExitFee).String(),
			tr.EntryRationale,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
