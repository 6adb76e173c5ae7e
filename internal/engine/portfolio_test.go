package engine

import (
	"testing"
	"time"

	"backsim/types"

	"github.com/shopspring/decimal"
)

func TestLedger_OpenReservesMarginAndFee(t *testing.T) {
	cfg := testConfig()
	cfg.SlippageBps = decimal.Zero
	cfg.Commission = BpsCommission{Bps: decimal.NewFromInt(10)}
	l := newLedger(cfg, NewSimulator(cfg.SlippageBps, cfg.Commission), testLogger())

	order := testOrder("AAPL", types.SideLong, 10, 2, 100)
	bar := testBar("AAPL", t0(), 100, 100, 100)
	pos, err := l.OpenPosition(order, bar)
	if err != nil {
		t.Fatalf("OpenPosition: %v", err)
	}

	// notional 1000 at 2x -> margin 500; fee 10bps of 1000 = 1.
	if !pos.Margin.Equal(decimal.NewFromInt(500)) {
		t.Errorf("margin = %s, want 500", pos.Margin)
	}
	wantCash := decimal.NewFromFloat(100_000 - 500 - 1)
	if !l.cash.Equal(wantCash) {
		t.Errorf("cash = %s, want %s", l.cash, wantCash)
	}
	wantEquity := decimal.NewFromFloat(100_000 - 1)
	if !l.equity.Equal(wantEquity) {
		t.Errorf("equity = %s, want %s", l.equity, wantEquity)
	}
	if violation := l.VerifyEquity(t0()); violation != nil {
		t.Errorf("equity invariant: %v", violation)
	}
}

func TestLedger_InsufficientCashRejected(t *testing.T) {
	cfg := testConfig()
	cfg.InitialEquity = decimal.NewFromInt(100)
	l := newLedger(cfg, NewSimulator(decimal.Zero, ZeroCommission{}), testLogger())

	order := testOrder("AAPL", types.SideLong, 10, 1, 100)
	if _, err := l.OpenPosition(order, testBar("AAPL", t0(), 100, 100, 100)); err != ErrInsufficientCash {
		t.Fatalf("err = %v, want ErrInsufficientCash", err)
	}
	if got := len(l.open); got != 0 {
		t.Errorf("open positions = %d, want 0", got)
	}
}

func TestLedger_TakeProfitScenarioWithSlippage(t *testing.T) {
	// Entry at close 100 with 5bps adverse slippage, quantity 10,
	// leverage 1, zero commission; exit via take-profit at 110.
	// realizedPnl = 10 * (110*0.9995 - 100*1.0005) = 98.95.
	cfg := testConfig()
	l := newLedger(cfg, NewSimulator(decimal.NewFromInt(5), ZeroCommission{}), testLogger())

	order := testOrder("AAPL", types.SideLong, 10, 1, 100)
	order.StopLoss = decimal.NewFromInt(90)
	order.TakeProfit = decimal.NewFromInt(110)
	if _, err := l.OpenPosition(order, testBar("AAPL", t0(), 100, 100, 100)); err != nil {
		t.Fatalf("OpenPosition: %v", err)
	}

	exitBar := testBar("AAPL", t0().Add(time.Hour), 108, 111, 107)
	l.MarkPrice("AAPL", exitBar.Close)
	closed := l.EvaluateExits(exitBar, exitBar.Timestamp)
	if len(closed) != 1 {
		t.Fatalf("closed = %d positions, want 1", len(closed))
	}
	if closed[0].ExitReason != types.ExitTakeProfit {
		t.Errorf("exit reason = %s, want %s", closed[0].ExitReason, types.ExitTakeProfit)
	}
	want := decimal.NewFromFloat(98.95)
	if !closed[0].RealizedPnl.Equal(want) {
		t.Errorf("realizedPnl = %s, want %s", closed[0].RealizedPnl, want)
	}
	if violation := l.VerifyEquity(exitBar.Timestamp); violation != nil {
		t.Errorf("equity invariant: %v", violation)
	}
}

func TestLedger_ExitPriorityStopBeforeTarget(t *testing.T) {
	// One bar breaches both the stop and the target; the stop wins
	// deterministically.
	cfg := testConfig()
	l := newLedger(cfg, NewSimulator(decimal.Zero, ZeroCommission{}), testLogger())

	order := testOrder("AAPL", types.SideLong, 10, 1, 100)
	order.StopLoss = decimal.NewFromInt(98)
	order.TakeProfit = decimal.NewFromInt(104)
	if _, err := l.OpenPosition(order, testBar("AAPL", t0(), 100, 100, 100)); err != nil {
		t.Fatalf("OpenPosition: %v", err)
	}

	wide := testBar("AAPL", t0().Add(time.Hour), 100, 105, 97)
	closed := l.EvaluateExits(wide, wide.Timestamp)
	if len(closed) != 1 {
		t.Fatalf("closed = %d positions, want 1", len(closed))
	}
	if closed[0].ExitReason != types.ExitStopLoss {
		t.Errorf("exit reason = %s, want %s", closed[0].ExitReason, types.ExitStopLoss)
	}
	if !closed[0].ExitFillPrice.Equal(decimal.NewFromInt(98)) {
		t.Errorf("exit fill = %s, want stop threshold 98", closed[0].ExitFillPrice)
	}
}

func TestLedger_TrailingStopRatchetsAndCloses(t *testing.T) {
	cfg := testConfig()
	l := newLedger(cfg, NewSimulator(decimal.Zero, ZeroCommission{}), testLogger())

	order := testOrder("AAPL", types.SideLong, 10, 1, 100)
	order.StopLoss = decimal.NewFromInt(95)
	order.TakeProfit = decimal.NewFromInt(200)
	order.TrailingStopDistance = decimal.NewFromInt(2)
	if _, err := l.OpenPosition(order, testBar("AAPL", t0(), 100, 100, 100)); err != nil {
		t.Fatalf("OpenPosition: %v", err)
	}

	// Rally to 110: extreme ratchets, stop pulls up to 108, no exit.
	rally := testBar("AAPL", t0().Add(time.Hour), 110, 110, 104)
	l.MarkPrice("AAPL", rally.Close)
	if closed := l.EvaluateExits(rally, rally.Timestamp); len(closed) != 0 {
		t.Fatalf("unexpected close on rally: %+v", closed)
	}
	if !l.open[0].StopLoss.Equal(decimal.NewFromInt(108)) {
		t.Fatalf("ratcheted stop = %s, want 108", l.open[0].StopLoss)
	}

	// Pullback through the ratcheted stop closes as a trailing stop.
	pullback := testBar("AAPL", t0().Add(2*time.Hour), 107, 109, 106)
	l.MarkPrice("AAPL", pullback.Close)
	closed := l.EvaluateExits(pullback, pullback.Timestamp)
	if len(closed) != 1 {
		t.Fatalf("closed = %d positions, want 1", len(closed))
	}
	if closed[0].ExitReason != types.ExitTrailingStop {
		t.Errorf("exit reason = %s, want %s", closed[0].ExitReason, types.ExitTrailingStop)
	}
	if !closed[0].ExitFillPrice.Equal(decimal.NewFromInt(108)) {
		t.Errorf("exit fill = %s, want 108", closed[0].ExitFillPrice)
	}
}

func TestLedger_MaxHoldExpiry(t *testing.T) {
	cfg := testConfig()
	cfg.MaxHoldDuration = 48 * time.Hour
	l := newLedger(cfg, NewSimulator(decimal.Zero, ZeroCommission{}), testLogger())

	order := testOrder("AAPL", types.SideLong, 10, 1, 100)
	order.StopLoss = decimal.NewFromInt(1)
	order.TakeProfit = decimal.NewFromInt(10_000)
	if _, err := l.OpenPosition(order, testBar("AAPL", t0(), 100, 100, 100)); err != nil {
		t.Fatalf("OpenPosition: %v", err)
	}

	// One hour short of the ceiling: still open.
	early := testBar("AAPL", t0().Add(47*time.Hour), 101, 102, 100)
	if closed := l.EvaluateExits(early, early.Timestamp); len(closed) != 0 {
		t.Fatalf("closed before max hold: %+v", closed)
	}

	expiry := testBar("AAPL", t0().Add(48*time.Hour), 101, 102, 100)
	l.MarkPrice("AAPL", expiry.Close)
	closed := l.EvaluateExits(expiry, expiry.Timestamp)
	if len(closed) != 1 {
		t.Fatalf("closed = %d positions, want 1", len(closed))
	}
	if closed[0].ExitReason != types.ExitMaxHold {
		t.Errorf("exit reason = %s, want %s", closed[0].ExitReason, types.ExitMaxHold)
	}
	if !closed[0].ExitFillPrice.Equal(expiry.Close) {
		t.Errorf("exit fill = %s, want bar close %s", closed[0].ExitFillPrice, expiry.Close)
	}
}

func TestLedger_ShortPositionExits(t *testing.T) {
	tests := []struct {
		name       string
		bar        types.Bar
		wantReason types.ExitReason
		wantPrice  decimal.Decimal
	}{
		{
			name:       "stop above entry breached by high",
			bar:        testBar("AAPL", t0().Add(time.Hour), 101, 103, 100),
			wantReason: types.ExitStopLoss,
			wantPrice:  decimal.NewFromInt(102),
		},
		{
			name:       "target below entry breached by low",
			bar:        testBar("AAPL", t0().Add(time.Hour), 97, 99, 95),
			wantReason: types.ExitTakeProfit,
			wantPrice:  decimal.NewFromInt(96),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			l := newLedger(cfg, NewSimulator(decimal.Zero, ZeroCommission{}), testLogger())
			order := testOrder("AAPL", types.SideShort, 10, 1, 100)
			order.StopLoss = decimal.NewFromInt(102)
			order.TakeProfit = decimal.NewFromInt(96)
			if _, err := l.OpenPosition(order, testBar("AAPL", t0(), 100, 100, 100)); err != nil {
				t.Fatalf("OpenPosition: %v", err)
			}

			closed := l.EvaluateExits(tc.bar, tc.bar.Timestamp)
			if len(closed) != 1 {
				t.Fatalf("closed = %d positions, want 1", len(closed))
			}
			if closed[0].ExitReason != tc.wantReason {
				t.Errorf("exit reason = %s, want %s", closed[0].ExitReason, tc.wantReason)
			}
			if !closed[0].ExitFillPrice.Equal(tc.wantPrice) {
				t.Errorf("exit fill = %s, want %s", closed[0].ExitFillPrice, tc.wantPrice)
			}
		})
	}
}

func TestLedger_RollDayResetsDailyTracking(t *testing.T) {
	cfg := testConfig()
	l := newLedger(cfg, NewSimulator(decimal.Zero, ZeroCommission{}), testLogger())

	order := testOrder("AAPL", types.SideLong, 100, 1, 100)
	order.StopLoss = decimal.NewFromInt(65)
	order.TakeProfit = decimal.NewFromInt(10_000)
	if _, err := l.OpenPosition(order, testBar("AAPL", t0(), 100, 100, 100)); err != nil {
		t.Fatalf("OpenPosition: %v", err)
	}
	drop := testBar("AAPL", t0().Add(time.Hour), 66, 67, 64)
	l.MarkPrice("AAPL", drop.Close)
	l.EvaluateExits(drop, drop.Timestamp)

	if !l.dailyRealizedPnl.IsNegative() {
		t.Fatalf("dailyRealizedPnl = %s, want negative", l.dailyRealizedPnl)
	}

	l.RollDay()
	if !l.dailyRealizedPnl.IsZero() {
		t.Errorf("dailyRealizedPnl after roll = %s, want 0", l.dailyRealizedPnl)
	}
	if !l.dailyStartEquity.Equal(l.equity) {
		t.Errorf("dailyStartEquity = %s, want current equity %s", l.dailyStartEquity, l.equity)
	}
}

func TestLedger_CloseAllArchivesEverything(t *testing.T) {
	cfg := testConfig()
	l := newLedger(cfg, NewSimulator(decimal.Zero, ZeroCommission{}), testLogger())

	for _, symbol := range []string{"AAPL", "MSFT"} {
		order := testOrder(symbol, types.SideLong, 10, 1, 100)
		order.StopLoss = decimal.NewFromInt(1)
		order.TakeProfit = decimal.NewFromInt(10_000)
		if _, err := l.OpenPosition(order, testBar(symbol, t0(), 100, 100, 100)); err != nil {
			t.Fatalf("OpenPosition %s: %v", symbol, err)
		}
	}

	lastBars := map[string]types.Bar{
		"AAPL": testBar("AAPL", t0().Add(time.Hour), 103, 103, 103),
		"MSFT": testBar("MSFT", t0().Add(time.Hour), 99, 99, 99),
	}
	closed := l.CloseAll(types.ExitEndOfBacktest, lastBars)
	if len(closed) != 2 {
		t.Fatalf("closed = %d positions, want 2", len(closed))
	}
	for _, pos := range closed {
		if pos.ExitReason != types.ExitEndOfBacktest {
			t.Errorf("%s exit reason = %s, want %s", pos.Symbol, pos.ExitReason, types.ExitEndOfBacktest)
		}
	}
	if len(l.open) != 0 {
		t.Errorf("open positions = %d, want 0", len(l.open))
	}
	if len(l.ClosedPositions()) != 2 {
		t.Errorf("archived positions = %d, want 2", len(l.ClosedPositions()))
	}
	// With everything closed, equity is exactly cash again.
	if !l.equity.Equal(l.cash) {
		t.Errorf("equity %s != cash %s after close all", l.equity, l.cash)
	}
}

func TestLedger_EquityConservationAcrossMarks(t *testing.T) {
	cfg := testConfig()
	l := newLedger(cfg, NewSimulator(decimal.NewFromInt(5), BpsCommission{Bps: decimal.NewFromInt(2)}), testLogger())

	long := testOrder("AAPL", types.SideLong, 10, 3, 100)
	long.StopLoss = decimal.NewFromInt(50)
	long.TakeProfit = decimal.NewFromInt(500)
	short := testOrder("MSFT", types.SideShort, 20, 2, 50)
	short.StopLoss = decimal.NewFromInt(90)
	short.TakeProfit = decimal.NewFromInt(10)

	if _, err := l.OpenPosition(long, testBar("AAPL", t0(), 100, 100, 100)); err != nil {
		t.Fatalf("open long: %v", err)
	}
	if _, err := l.OpenPosition(short, testBar("MSFT", t0(), 50, 50, 50)); err != nil {
		t.Fatalf("open short: %v", err)
	}

	prices := []struct {
		aapl, msft float64
	}{
		{101.5, 49.2}, {99.75, 51.1}, {102.2, 48.8}, {98.4, 50.0},
	}
	for i, p := range prices {
		now := t0().Add(time.Duration(i+1) * time.Hour)
		l.MarkPrice("AAPL", decimal.NewFromFloat(p.aapl))
		l.MarkPrice("MSFT", decimal.NewFromFloat(p.msft))
		if violation := l.VerifyEquity(now); violation != nil {
			t.Fatalf("tick %d: %v", i, violation)
		}
	}
}

// ----------------Helper functions----------------

func t0() time.Time {
	return time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
}

func testConfig() RunConfig {
	cfg := DefaultRunConfig()
	cfg.Symbols = []string{"AAPL"}
	cfg.Start = t0()
	cfg.End = t0().Add(30 * 24 * time.Hour)
	return cfg
}

func testBar(symbol string, ts time.Time, close, high, low float64) types.Bar {
	return types.Bar{
		Symbol:    symbol,
		Open:      decimal.NewFromFloat(close),
		Close:     decimal.NewFromFloat(close),
		High:      decimal.NewFromFloat(high),
		Low:       decimal.NewFromFloat(low),
		Volume:    decimal.NewFromInt(1000),
		Interval:  types.Hour,
		Timestamp: ts,
	}
}

func testOrder(symbol string, side types.Side, qty int64, leverage int64, price float64) types.SizedOrder {
	return types.SizedOrder{
		Symbol:         symbol,
		Timestamp:      t0(),
		Side:           side,
		Quantity:       qty,
		Leverage:       decimal.NewFromInt(leverage),
		RequestedPrice: decimal.NewFromFloat(price),
		StopLoss:       decimal.NewFromFloat(price * 0.98),
		TakeProfit:     decimal.NewFromFloat(price * 1.04),
	}
}
