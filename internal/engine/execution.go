package engine

import (
	"backsim/types"

	"github.com/shopspring/decimal"
)

var bps = decimal.NewFromInt(10_000)

// CommissionModel prices the commission charged on one leg's notional.
type CommissionModel interface {
	Fee(notional decimal.Decimal) decimal.Decimal
	Name() string
}

// ZeroCommission charges nothing.
type ZeroCommission struct{}

func (ZeroCommission) Fee(decimal.Decimal) decimal.Decimal { return decimal.Zero }
func (ZeroCommission) Name() string                        { return "zero" }

// BpsCommission charges a fixed fraction of the leg's notional,
// expressed in basis points.
type BpsCommission struct {
	Bps decimal.Decimal
}

func (c BpsCommission) Fee(notional decimal.Decimal) decimal.Decimal {
	return notional.Abs().Mul(c.Bps).Div(bps)
}
func (c BpsCommission) Name() string { return "bps" }

// Simulator clears decided trades: it applies slippage and commission
// to a reference price. It never decides whether to trade, only at what
// price and cost a trade fills.
type Simulator struct {
	slippageBps decimal.Decimal
	commission  CommissionModel
}

func NewSimulator(slippageBps decimal.Decimal, commission CommissionModel) *Simulator {
	if commission == nil {
		commission = ZeroCommission{}
	}
	return &Simulator{slippageBps: slippageBps, commission: commission}
}

// FillEntry clears an entry at the bar's close, slipped against the
// trader: buys fill higher, short sales fill lower.
func (s *Simulator) FillEntry(order types.SizedOrder, bar types.Bar) types.FilledLeg {
	buying := order.Side == types.SideLong
	price := s.slip(bar.Close, buying)
	fee := s.commission.Fee(price.Mul(decimal.NewFromInt(order.Quantity)))
	return types.NewFilledLeg(bar.Timestamp, price, fee)
}

// FillExit clears a close of the position at the given reference price
// (breached stop/target level, or the bar's close for time-based
// exits). The closing direction is the opposite of the entry, so the
// slip flips: longs sell lower, shorts buy back higher.
func (s *Simulator) FillExit(pos types.Position, bar types.Bar, reference decimal.Decimal) types.FilledLeg {
	buying := pos.Side == types.SideShort
	price := s.slip(reference, buying)
	fee := s.commission.Fee(price.Mul(decimal.NewFromInt(pos.Quantity)))
	return types.NewFilledLeg(bar.Timestamp, price, fee)
}

func (s *Simulator) slip(price decimal.Decimal, up bool) decimal.Decimal {
	adj := price.Mul(s.slippageBps).Div(bps)
	if up {
		return price.Add(adj)
	}
	return price.Sub(adj)
}
