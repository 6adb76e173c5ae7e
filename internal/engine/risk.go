package engine

import (
	"backsim/types"

	"github.com/shopspring/decimal"
)

// SizeOrder maps a candidate signal to a concrete order, or rejects it.
// It is pure: everything it needs comes in as arguments and it never
// touches the ledger, so the policy is testable in isolation.
//
// The checks run in a fixed order: position limit, daily circuit
// breaker, then sizing, stops and reward:risk.
func SizeOrder(signal types.Signal, account types.Account, volatility float64, price decimal.Decimal, cfg RunConfig) (*types.SizedOrder, *Rejection) {
	if account.OpenPositionCount >= cfg.MaxConcurrentPositions {
		return nil, reject(RejectLimitReached, "%d positions open, limit %d", account.OpenPositionCount, cfg.MaxConcurrentPositions)
	}
	if account.DailyStartEquity.IsPositive() {
		dayLoss := account.DailyRealizedPnl.Div(account.DailyStartEquity)
		if dayLoss.LessThanOrEqual(cfg.MaxDailyLossPct.Neg()) {
			return nil, reject(RejectCircuitBreaker, "daily pnl %s of start equity %s", account.DailyRealizedPnl, account.DailyStartEquity)
		}
	}

	leverage := leverageFor(signal.Strength, cfg)
	sizePct := decimal.NewFromFloat(signal.Strength).Mul(cfg.MaxPositionSizePct)
	if sizePct.GreaterThan(cfg.MaxPositionSizePct) {
		sizePct = cfg.MaxPositionSizePct
	}
	notional := account.Equity.Mul(sizePct).Mul(leverage)
	if !price.IsPositive() {
		return nil, reject(RejectPositionTooSmall, "non-positive price %s", price)
	}
	quantity := notional.Div(price).IntPart()
	if quantity <= 0 {
		return nil, reject(RejectPositionTooSmall, "notional %s below one share at %s", notional, price)
	}

	// Volatile symbols get a wider stop so ordinary noise does not shake
	// the position out.
	stopPct := cfg.StopLossPct.Mul(decimal.NewFromFloat(1 + volatility*0.5))
	tpPct := cfg.TakeProfitPct

	side := types.SideLong
	if signal.Action == types.ActionShort {
		side = types.SideShort
	}
	one := decimal.NewFromInt(1)
	var stop, target decimal.Decimal
	if side == types.SideLong {
		stop = price.Mul(one.Sub(stopPct))
		target = price.Mul(one.Add(tpPct))
	} else {
		stop = price.Mul(one.Add(stopPct))
		target = price.Mul(one.Sub(tpPct))
	}

	stopDist := price.Sub(stop).Abs()
	targetDist := target.Sub(price).Abs()
	if targetDist.LessThan(stopDist.Mul(cfg.MinRewardRisk)) {
		return nil, reject(RejectUnfavorableRR, "target distance %s below stop distance %s * %s", targetDist, stopDist, cfg.MinRewardRisk)
	}

	trailing := decimal.Zero
	if cfg.TrailingStopPct.IsPositive() {
		trailing = price.Mul(cfg.TrailingStopPct)
	}

	return &types.SizedOrder{
		Symbol:               signal.Symbol,
		Timestamp:            signal.Timestamp,
		Side:                 side,
		Quantity:             quantity,
		Leverage:             leverage,
		RequestedPrice:       price,
		StopLoss:             stop,
		TakeProfit:           target,
		TrailingStopDistance: trailing,
		Rationale:            signal.Rationale,
	}, nil
}

// leverageFor scales leverage with conviction. Below the strength floor
// the signal still trades but without amplification.
func leverageFor(strength float64, cfg RunConfig) decimal.Decimal {
	if strength < cfg.LeverageStrengthFloor {
		return decimal.NewFromInt(1)
	}
	bonus := cfg.MaxLeverage.Sub(cfg.BaseLeverage).Mul(decimal.NewFromFloat(strength))
	leverage := cfg.BaseLeverage.Add(bonus)
	if leverage.GreaterThan(cfg.MaxLeverage) {
		return cfg.MaxLeverage
	}
	return leverage
}
