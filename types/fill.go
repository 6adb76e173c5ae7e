package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// FilledLeg is the result of the execution simulator clearing one side
// of a trade: the achieved price after slippage and the commission
// charged for the leg.
type FilledLeg struct {
	Time  time.Time
	Price decimal.Decimal
	Fee   decimal.Decimal
}

func NewFilledLeg(t time.Time, price, fee decimal.Decimal) FilledLeg {
	return FilledLeg{Time: t, Price: price, Fee: fee}
}
