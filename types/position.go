package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is a simulated position. The position ledger is its sole
// owner: everything outside the ledger works on value copies. Closed
// positions are archived, never discarded, so the metrics stage can
// replay the full trade history.
type Position struct {
	ID       string
	Symbol   string
	Side     Side
	Quantity int64
	Leverage decimal.Decimal

	EntryTime      time.Time
	EntryFillPrice decimal.Decimal
	EntryFee       decimal.Decimal
	EntryRationale string

	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
	// TrailingStopDistance is zero when no trailing stop is attached.
	// FavorableExtreme tracks the best price seen in the position's
	// direction and is what the trailing stop ratchets from.
	TrailingStopDistance decimal.Decimal
	FavorableExtreme     decimal.Decimal

	// Margin is the cash reserved at entry: notional / leverage.
	Margin decimal.Decimal

	Status        PositionStatus
	ExitTime      time.Time
	ExitFillPrice decimal.Decimal
	ExitFee       decimal.Decimal
	ExitReason    ExitReason
	RealizedPnl   decimal.Decimal
}

// Notional is quantity * entry fill price.
func (p Position) Notional() decimal.Decimal {
	return p.EntryFillPrice.Mul(decimal.NewFromInt(p.Quantity))
}

// UnrealizedPnl marks the open position against price. Leverage
// amplifies the price move, matching the realized PnL formula applied
// on close.
func (p Position) UnrealizedPnl(price decimal.Decimal) decimal.Decimal {
	move := price.Sub(p.EntryFillPrice)
	return move.
		Mul(decimal.NewFromInt(p.Quantity * p.Side.Sign())).
		Mul(p.Leverage)
}

// HoldDuration is the elapsed simulated time since entry.
func (p Position) HoldDuration(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}
