package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the simulated account state. Invariant, re-verified at
// every timestamp boundary:
//
//	equity == cash + sum(margin + unrealizedPnl of open positions)
//
// DailyRealizedPnl and DailyStartEquity reset exactly once per simulated
// calendar day (UTC).
type Account struct {
	Cash              decimal.Decimal
	Equity            decimal.Decimal
	BuyingPower       decimal.Decimal
	OpenPositionCount int
	DailyRealizedPnl  decimal.Decimal
	DailyStartEquity  decimal.Decimal
}

// EquityCurveSample is one append-only observation of account state,
// recorded once per orchestrator tick.
type EquityCurveSample struct {
	Timestamp         time.Time
	Equity            decimal.Decimal
	Cash              decimal.Decimal
	OpenPositionCount int
}
