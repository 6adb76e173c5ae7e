package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one OHLCV observation for a symbol at a fixed interval.
// Bars are immutable once produced by a bar source; for a given symbol
// timestamps are strictly increasing.
type Bar struct {
	Symbol    string          `json:"symbol"`
	Open      decimal.Decimal `json:"open"`
	Close     decimal.Decimal `json:"close"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Volume    decimal.Decimal `json:"volume"`
	Interval  Interval        `json:"interval"`
	Timestamp time.Time       `json:"timestamp"`
}
