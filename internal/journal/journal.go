// Package journal persists backtest runs and their closed trades to a
// local SQLite file so results survive across invocations and can be
// compared later.
package journal

import (
	"time"

	"github.com/shopspring/decimal"

	"backsim/types"
)

// RunRecord is the persisted summary of a single backtest run.
type RunRecord struct {
	RunID    string
	Strategy string
	Symbols  string
	Interval string

	Start time.Time
	End   time.Time

	InitialEquity decimal.Decimal
	FinalEquity   decimal.Decimal
	TotalReturn   decimal.Decimal
	MaxDrawdown   decimal.Decimal
	SharpeRatio   decimal.Decimal
	WinRate       decimal.Decimal
	TotalTrades   int
	TotalFees     decimal.Decimal

	CreatedAt time.Time
}

// TradeRecord is one closed position belonging to a run.
type TradeRecord struct {
	TradeID  string
	RunID    string
	Symbol   string
	Side     types.Side
	Quantity int64
	Leverage decimal.Decimal

	EntryTime  time.Time
	EntryPrice decimal.Decimal
	ExitTime   time.Time
	ExitPrice  decimal.Decimal
	ExitReason types.ExitReason

	RealizedPnl decimal.Decimal
	Fees        decimal.Decimal
}

// Journal records runs and reads them back.
type Journal interface {
	RecordRun(run RunRecord, trades []TradeRecord) error
	ListRuns() ([]RunRecord, error)
	ListTrades(runID string) ([]TradeRecord, error)
	Close() error
}
