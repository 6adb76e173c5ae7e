package types

// Side is the direction of an order or position.
type Side string

// SignalAction is what a strategy recommends for the current tick.
type SignalAction string

// PositionStatus tracks the lifecycle of a simulated position.
type PositionStatus string

// ExitReason records why a position was closed.
type ExitReason string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"

	ActionLong  SignalAction = "long"
	ActionShort SignalAction = "short"
	ActionFlat  SignalAction = "flat"

	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"

	ExitStopLoss      ExitReason = "stop_loss"
	ExitTakeProfit    ExitReason = "take_profit"
	ExitTrailingStop  ExitReason = "trailing_stop"
	ExitMaxHold       ExitReason = "max_hold_expired"
	ExitEndOfBacktest ExitReason = "end_of_backtest"
)

// Sign returns +1 for long and -1 for short, the multiplier used in
// PnL arithmetic.
func (s Side) Sign() int64 {
	if s == SideShort {
		return -1
	}
	return 1
}
