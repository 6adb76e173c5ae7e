package engine

import (
	"log/slog"
	"time"

	"backsim/internal/id"
	"backsim/types"

	"github.com/shopspring/decimal"
)

// equityTolerance bounds the drift allowed between the incrementally
// tracked equity and a full recomputation from cash plus marks.
var equityTolerance = decimal.New(1, -6)

// ledger owns every simulated position and the account. Nothing outside
// it mutates positions: callers get value copies. Equity is tracked
// incrementally on every mutation and verified against a full
// recomputation at each timestamp boundary, so a bookkeeping bug
// surfaces as an InvariantViolation instead of a silently wrong report.
type ledger struct {
	cfg    RunConfig
	sim    *Simulator
	logger *slog.Logger

	cash   decimal.Decimal
	equity decimal.Decimal

	open   []*types.Position
	closed []types.Position
	// marks holds the last price each open position was marked at,
	// keyed by position id.
	marks map[string]decimal.Decimal

	dailyRealizedPnl decimal.Decimal
	dailyStartEquity decimal.Decimal
}

func newLedger(cfg RunConfig, sim *Simulator, logger *slog.Logger) *ledger {
	return &ledger{
		cfg:              cfg,
		sim:              sim,
		logger:           logger,
		cash:             cfg.InitialEquity,
		equity:           cfg.InitialEquity,
		marks:            make(map[string]decimal.Decimal),
		dailyRealizedPnl: decimal.Zero,
		dailyStartEquity: cfg.InitialEquity,
	}
}

// Account snapshots the current account state. Buying power is the cash
// not reserved as margin.
func (l *ledger) Account() types.Account {
	return types.Account{
		Cash:              l.cash,
		Equity:            l.equity,
		BuyingPower:       l.cash,
		OpenPositionCount: len(l.open),
		DailyRealizedPnl:  l.dailyRealizedPnl,
		DailyStartEquity:  l.dailyStartEquity,
	}
}

// OpenPositions returns value copies of the open positions.
func (l *ledger) OpenPositions() []types.Position {
	out := make([]types.Position, len(l.open))
	for i, p := range l.open {
		out[i] = *p
	}
	return out
}

// ClosedPositions returns the archived trade log in close order.
func (l *ledger) ClosedPositions() []types.Position {
	out := make([]types.Position, len(l.closed))
	copy(out, l.closed)
	return out
}

func (l *ledger) HasOpen(symbol string) bool {
	for _, p := range l.open {
		if p.Symbol == symbol {
			return true
		}
	}
	return false
}

// OpenPosition fills the order at the bar and reserves its margin from
// cash. The position's initial mark is its fill price, so opening moves
// equity only by the commission.
func (l *ledger) OpenPosition(order types.SizedOrder, bar types.Bar) (types.Position, error) {
	leg := l.sim.FillEntry(order, bar)
	notional := leg.Price.Mul(decimal.NewFromInt(order.Quantity))
	margin := notional.Div(order.Leverage)

	if l.cash.LessThan(margin.Add(leg.Fee)) {
		return types.Position{}, ErrInsufficientCash
	}

	pos := &types.Position{
		ID:                   id.New(),
		Symbol:               order.Symbol,
		Side:                 order.Side,
		Quantity:             order.Quantity,
		Leverage:             order.Leverage,
		EntryTime:            leg.Time,
		EntryFillPrice:       leg.Price,
		EntryFee:             leg.Fee,
		EntryRationale:       order.Rationale,
		StopLoss:             order.StopLoss,
		TakeProfit:           order.TakeProfit,
		TrailingStopDistance: order.TrailingStopDistance,
		FavorableExtreme:     leg.Price,
		Margin:               margin,
		Status:               types.PositionOpen,
	}

	l.cash = l.cash.Sub(margin).Sub(leg.Fee)
	l.equity = l.equity.Sub(leg.Fee)
	l.marks[pos.ID] = leg.Price
	l.open = append(l.open, pos)

	l.logger.Debug("position opened",
		"id", pos.ID,
		"symbol", pos.Symbol,
		"side", pos.Side,
		"quantity", pos.Quantity,
		"leverage", pos.Leverage,
		"price", leg.Price,
	)
	return *pos, nil
}

// MarkPrice re-marks every open position of the symbol and moves equity
// by the leveraged price change.
func (l *ledger) MarkPrice(symbol string, price decimal.Decimal) {
	for _, p := range l.open {
		if p.Symbol != symbol {
			continue
		}
		prev := l.marks[p.ID]
		delta := price.Sub(prev).
			Mul(decimal.NewFromInt(p.Quantity * p.Side.Sign())).
			Mul(p.Leverage)
		l.equity = l.equity.Add(delta)
		l.marks[p.ID] = price
	}
}

// EvaluateExits checks every open position of the bar's symbol against
// the exit rules, first match wins: stop-loss, take-profit, trailing
// stop (ratchet, then re-check), max-hold expiry. At most one exit per
// position per tick.
func (l *ledger) EvaluateExits(bar types.Bar, now time.Time) []types.Position {
	var closedNow []types.Position

	for _, p := range l.open {
		if p.Symbol != bar.Symbol {
			continue
		}

		if ref, hit := stopBreached(p, bar); hit {
			// A stop that has ratcheted past the entry is a trailing
			// stop, not the original protective stop.
			reason := types.ExitStopLoss
			if stopRatcheted(p) {
				reason = types.ExitTrailingStop
			}
			closedNow = append(closedNow, l.close(p, bar, ref, reason))
			continue
		}
		if ref, hit := targetBreached(p, bar); hit {
			closedNow = append(closedNow, l.close(p, bar, ref, types.ExitTakeProfit))
			continue
		}
		if p.TrailingStopDistance.IsPositive() {
			ratchetTrailingStop(p, bar)
			// Re-check against the close only: the low/high of this bar
			// may predate the extreme the ratchet just followed.
			if trailingBreached(p, bar) {
				closedNow = append(closedNow, l.close(p, bar, p.StopLoss, types.ExitTrailingStop))
				continue
			}
		}
		if p.HoldDuration(now) >= l.cfg.MaxHoldDuration {
			closedNow = append(closedNow, l.close(p, bar, bar.Close, types.ExitMaxHold))
		}
	}

	if len(closedNow) > 0 {
		l.compactOpen()
	}
	return closedNow
}

// CloseAll force-closes every remaining open position at its symbol's
// final bar close. Used at the end of a run.
func (l *ledger) CloseAll(reason types.ExitReason, lastBars map[string]types.Bar) []types.Position {
	var closedNow []types.Position
	for _, p := range l.open {
		bar, ok := lastBars[p.Symbol]
		if !ok {
			// No bar ever seen for the symbol; close at the last mark.
			bar = types.Bar{Symbol: p.Symbol, Close: l.marks[p.ID], Timestamp: p.EntryTime}
		}
		closedNow = append(closedNow, l.close(p, bar, bar.Close, reason))
	}
	l.compactOpen()
	return closedNow
}

// RollDay resets the daily loss tracking at a simulated day boundary.
func (l *ledger) RollDay() {
	l.dailyRealizedPnl = decimal.Zero
	l.dailyStartEquity = l.equity
}

// VerifyEquity recomputes equity from cash plus margin and unrealized
// PnL at the current marks, and compares it against the incrementally
// tracked value.
func (l *ledger) VerifyEquity(now time.Time) *InvariantViolation {
	recomputed := l.cash
	for _, p := range l.open {
		recomputed = recomputed.Add(p.Margin).Add(p.UnrealizedPnl(l.marks[p.ID]))
	}
	if recomputed.Sub(l.equity).Abs().GreaterThan(equityTolerance) {
		return &InvariantViolation{
			Invariant: "equity conservation",
			Time:      now,
			Detail:    "tracked equity " + l.equity.String() + " != cash+positions " + recomputed.String(),
		}
	}
	return nil
}

func (l *ledger) close(p *types.Position, bar types.Bar, reference decimal.Decimal, reason types.ExitReason) types.Position {
	leg := l.sim.FillExit(*p, bar, reference)

	move := leg.Price.Sub(p.EntryFillPrice).
		Mul(decimal.NewFromInt(p.Quantity * p.Side.Sign())).
		Mul(p.Leverage)
	realized := move.Sub(p.EntryFee).Sub(leg.Fee)

	// Equity was last marked at the previous close; settle the gap to
	// the actual fill, then release margin and leveraged move to cash.
	markGap := leg.Price.Sub(l.marks[p.ID]).
		Mul(decimal.NewFromInt(p.Quantity * p.Side.Sign())).
		Mul(p.Leverage)
	l.equity = l.equity.Add(markGap).Sub(leg.Fee)
	l.cash = l.cash.Add(p.Margin).Add(move).Sub(leg.Fee)
	l.dailyRealizedPnl = l.dailyRealizedPnl.Add(realized)
	delete(l.marks, p.ID)

	p.Status = types.PositionClosed
	p.ExitTime = leg.Time
	p.ExitFillPrice = leg.Price
	p.ExitFee = leg.Fee
	p.ExitReason = reason
	p.RealizedPnl = realized

	l.closed = append(l.closed, *p)
	l.logger.Debug("position closed",
		"id", p.ID,
		"symbol", p.Symbol,
		"reason", reason,
		"price", leg.Price,
		"realizedPnl", realized,
	)
	return *p
}

func (l *ledger) compactOpen() {
	kept := l.open[:0]
	for _, p := range l.open {
		if p.Status == types.PositionOpen {
			kept = append(kept, p)
		}
	}
	l.open = kept
}

func stopBreached(p *types.Position, bar types.Bar) (decimal.Decimal, bool) {
	if p.Side == types.SideLong {
		if bar.Low.LessThanOrEqual(p.StopLoss) {
			return p.StopLoss, true
		}
		return decimal.Zero, false
	}
	if bar.High.GreaterThanOrEqual(p.StopLoss) {
		return p.StopLoss, true
	}
	return decimal.Zero, false
}

func trailingBreached(p *types.Position, bar types.Bar) bool {
	if p.Side == types.SideLong {
		return bar.Close.LessThanOrEqual(p.StopLoss)
	}
	return bar.Close.GreaterThanOrEqual(p.StopLoss)
}

// stopRatcheted reports whether the stop sits on the profitable side of
// the entry, which only a trailing ratchet can cause.
func stopRatcheted(p *types.Position) bool {
	if p.Side == types.SideLong {
		return p.StopLoss.GreaterThan(p.EntryFillPrice)
	}
	return p.StopLoss.LessThan(p.EntryFillPrice)
}

func targetBreached(p *types.Position, bar types.Bar) (decimal.Decimal, bool) {
	if p.Side == types.SideLong {
		if bar.High.GreaterThanOrEqual(p.TakeProfit) {
			return p.TakeProfit, true
		}
		return decimal.Zero, false
	}
	if bar.Low.LessThanOrEqual(p.TakeProfit) {
		return p.TakeProfit, true
	}
	return decimal.Zero, false
}

// ratchetTrailingStop advances the favorable extreme and pulls the stop
// behind it once the position is in profit by at least the trailing
// distance. The stop only ever tightens.
func ratchetTrailingStop(p *types.Position, bar types.Bar) {
	if p.Side == types.SideLong {
		if bar.High.GreaterThan(p.FavorableExtreme) {
			p.FavorableExtreme = bar.High
		}
		candidate := p.FavorableExtreme.Sub(p.TrailingStopDistance)
		if candidate.GreaterThan(p.EntryFillPrice) && candidate.GreaterThan(p.StopLoss) {
			p.StopLoss = candidate
		}
		return
	}
	if bar.Low.LessThan(p.FavorableExtreme) {
		p.FavorableExtreme = bar.Low
	}
	candidate := p.FavorableExtreme.Add(p.TrailingStopDistance)
	if candidate.LessThan(p.EntryFillPrice) && candidate.LessThan(p.StopLoss) {
		p.StopLoss = candidate
	}
}
