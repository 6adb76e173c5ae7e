package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// SizedOrder is the output of the risk sizer: a signal turned into a
// concrete quantity, leverage and protective price levels. Quantity 0
// means "no trade", not an error.
type SizedOrder struct {
	Symbol         string
	Timestamp      time.Time
	Side           Side
	Quantity       int64
	Leverage       decimal.Decimal
	RequestedPrice decimal.Decimal
	StopLoss       decimal.Decimal
	TakeProfit     decimal.Decimal
	// TrailingStopDistance is an absolute price distance; zero disables
	// the trailing stop for this order.
	TrailingStopDistance decimal.Decimal
	Rationale            string
}
