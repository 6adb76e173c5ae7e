package journal

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"backsim/internal/engine"
	"backsim/internal/id"
	"backsim/types"
)

// SQLite is the file-backed Journal implementation.
type SQLite struct {
	db *sql.DB
}

var _ Journal = (*SQLite)(nil)

// NewSQLite opens (or creates) the journal database at path and applies
// the schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// NewRunRecord builds a RunRecord from a finished run. The run id is a
// fresh ULID.
func NewRunRecord(cfg engine.RunConfig, report *engine.Report) RunRecord {
	return RunRecord{
		RunID:         id.New(),
		Strategy:      report.Strategy,
		Symbols:       strings.Join(cfg.Symbols, ","),
		Interval:      string(cfg.Interval),
		Start:         report.StartDate,
		End:           report.EndDate,
		InitialEquity: report.InitialEquity,
		FinalEquity:   report.FinalEquity,
		TotalReturn:   report.TotalReturn,
		MaxDrawdown:   report.MaxDrawdown,
		SharpeRatio:   report.SharpeRatio,
		WinRate:       report.WinRate,
		TotalTrades:   report.TotalTrades,
		TotalFees:     report.TotalFees,
		CreatedAt:     time.Now().UTC(),
	}
}

// TradesFromPositions converts closed positions to trade records owned
// by runID.
func TradesFromPositions(runID string, positions []types.Position) []TradeRecord {
	trades := make([]TradeRecord, 0, len(positions))
	for _, p := range positions {
		trades = append(trades, TradeRecord{
			TradeID:     p.ID,
			RunID:       runID,
			Symbol:      p.Symbol,
			Side:        p.Side,
			Quantity:    p.Quantity,
			Leverage:    p.Leverage,
			EntryTime:   p.EntryTime,
			EntryPrice:  p.EntryFillPrice,
			ExitTime:    p.ExitTime,
			ExitPrice:   p.ExitFillPrice,
			ExitReason:  p.ExitReason,
			RealizedPnl: p.RealizedPnl,
			Fees:        p.EntryFee.Add(p.ExitFee),
		})
	}
	return trades
}

// RecordRun stores the run and its trades in one transaction.
func (j *SQLite) RecordRun(run RunRecord, trades []TradeRecord) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs
		(run_id, strategy, symbols, interval, start_time, end_time,
		 initial_equity, final_equity, total_return, max_drawdown,
		 sharpe_ratio, win_rate, total_trades, total_fees, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Strategy, run.Symbols, run.Interval, run.Start, run.End,
		run.InitialEquity.String(), run.FinalEquity.String(),
		run.TotalReturn.String(), run.MaxDrawdown.String(),
		run.SharpeRatio.String(), run.WinRate.String(),
		run.TotalTrades, run.TotalFees.String(), run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, t := range trades {
		_, err = tx.Exec(`
			INSERT INTO trades
			(trade_id, run_id, symbol, side, quantity, leverage,
			 entry_time, entry_price, exit_time, exit_price,
			 exit_reason, realized_pnl, fees)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.TradeID, t.RunID, t.Symbol, string(t.Side), t.Quantity, t.Leverage.String(),
			t.EntryTime, t.EntryPrice.String(), t.ExitTime, t.ExitPrice.String(),
			string(t.ExitReason), t.RealizedPnl.String(), t.Fees.String(),
		)
		if err != nil {
			return fmt.Errorf("insert trade %s: %w", t.TradeID, err)
		}
	}

	return tx.Commit()
}

// ListRuns returns all recorded runs, newest first.
func (j *SQLite) ListRuns() ([]RunRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, strategy, symbols, interval, start_time, end_time,
		       initial_equity, final_equity, total_return, max_drawdown,
		       sharpe_ratio, win_rate, total_trades, total_fees, created_at
		FROM runs
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			rec                     RunRecord
			initial, final, ret, dd string
			sharpe, winRate, fees   string
		)
		if err := rows.Scan(
			&rec.RunID, &rec.Strategy, &rec.Symbols, &rec.Interval,
			&rec.Start, &rec.End,
			&initial, &final, &ret, &dd,
			&sharpe, &winRate, &rec.TotalTrades, &fees, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := parseDecimals(map[*decimal.Decimal]string{
			&rec.InitialEquity: initial,
			&rec.FinalEquity:   final,
			&rec.TotalReturn:   ret,
			&rec.MaxDrawdown:   dd,
			&rec.SharpeRatio:   sharpe,
			&rec.WinRate:       winRate,
			&rec.TotalFees:     fees,
		}); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListTrades returns the run's trades ordered by exit time.
func (j *SQLite) ListTrades(runID string) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, run_id, symbol, side, quantity, leverage,
		       entry_time, entry_price, exit_time, exit_price,
		       exit_reason, realized_pnl, fees
		FROM trades
		WHERE run_id = ?
		ORDER BY exit_time ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var (
			rec                         TradeRecord
			side, reason                string
			lev, entry, exit, pnl, fees string
		)
		if err := rows.Scan(
			&rec.TradeID, &rec.RunID, &rec.Symbol, &side, &rec.Quantity, &lev,
			&rec.EntryTime, &entry, &rec.ExitTime, &exit,
			&reason, &pnl, &fees,
		); err != nil {
			return nil, err
		}
		rec.Side = types.Side(side)
		rec.ExitReason = types.ExitReason(reason)
		if err := parseDecimals(map[*decimal.Decimal]string{
			&rec.Leverage:    lev,
			&rec.EntryPrice:  entry,
			&rec.ExitPrice:   exit,
			&rec.RealizedPnl: pnl,
			&rec.Fees:        fees,
		}); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (j *SQLite) Close() error {
	return j.db.Close()
}

func parseDecimals(fields map[*decimal.Decimal]string) error {
	for dst, raw := range fields {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("parse decimal %q: %w", raw, err)
		}
		*dst = d
	}
	return nil
}
