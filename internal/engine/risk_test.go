package engine

import (
	"testing"

	"backsim/types"

	"github.com/shopspring/decimal"
)

func testAccount(equity float64) types.Account {
	return types.Account{
		Cash:             decimal.NewFromFloat(equity),
		Equity:           decimal.NewFromFloat(equity),
		BuyingPower:      decimal.NewFromFloat(equity),
		DailyStartEquity: decimal.NewFromFloat(equity),
	}
}

func TestSizeOrder_Rejections(t *testing.T) {
	cfg := testConfig()
	price := decimal.NewFromInt(100)

	tests := []struct {
		name    string
		signal  types.Signal
		account types.Account
		mutate  func(*RunConfig)
		want    RejectReason
	}{
		{
			name:   "position limit reached",
			signal: types.NewSignal("AAPL", t0(), types.ActionLong, 0.9, ""),
			account: func() types.Account {
				a := testAccount(100_000)
				a.OpenPositionCount = cfg.MaxConcurrentPositions
				return a
			}(),
			want: RejectLimitReached,
		},
		{
			name:   "daily circuit breaker tripped",
			signal: types.NewSignal("AAPL", t0(), types.ActionLong, 0.9, ""),
			account: func() types.Account {
				a := testAccount(100_000)
				a.DailyRealizedPnl = decimal.NewFromInt(-3_500)
				return a
			}(),
			want: RejectCircuitBreaker,
		},
		{
			name:    "position too small",
			signal:  types.NewSignal("AAPL", t0(), types.ActionLong, 0.9, ""),
			account: testAccount(10),
			want:    RejectPositionTooSmall,
		},
		{
			name:    "unfavorable reward to risk",
			signal:  types.NewSignal("AAPL", t0(), types.ActionLong, 0.9, ""),
			account: testAccount(100_000),
			mutate: func(c *RunConfig) {
				c.MinRewardRisk = decimal.NewFromInt(3)
			},
			want: RejectUnfavorableRR,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			runCfg := cfg
			if tc.mutate != nil {
				tc.mutate(&runCfg)
			}
			order, rejection := SizeOrder(tc.signal, tc.account, 0, price, runCfg)
			if order != nil {
				t.Fatalf("expected rejection, got order %+v", order)
			}
			if rejection == nil || rejection.Reason != tc.want {
				t.Fatalf("rejection = %+v, want reason %s", rejection, tc.want)
			}
		})
	}
}

func TestSizeOrder_BreakerResetsNextDay(t *testing.T) {
	// -3.5% realized today trips the breaker; a fresh day (pnl reset,
	// new start equity) accepts again.
	cfg := testConfig()
	signal := types.NewSignal("AAPL", t0(), types.ActionLong, 0.9, "")
	price := decimal.NewFromInt(100)

	tripped := testAccount(100_000)
	tripped.DailyRealizedPnl = decimal.NewFromInt(-3_500)
	if _, rejection := SizeOrder(signal, tripped, 0, price, cfg); rejection == nil || rejection.Reason != RejectCircuitBreaker {
		t.Fatalf("expected circuit breaker, got %+v", rejection)
	}

	nextDay := testAccount(96_500)
	if order, rejection := SizeOrder(signal, nextDay, 0, price, cfg); order == nil {
		t.Fatalf("expected order after day roll, got rejection %+v", rejection)
	}
}

func TestSizeOrder_LeverageScalesWithStrength(t *testing.T) {
	cfg := testConfig()
	account := testAccount(100_000)
	price := decimal.NewFromInt(100)

	tests := []struct {
		name     string
		strength float64
		want     decimal.Decimal
	}{
		// Below the floor: still trades, no amplification.
		{name: "below floor maps to 1x", strength: 0.5, want: decimal.NewFromInt(1)},
		// base 1 + strength * (max-base) = 1 + 0.8*3 = 3.4
		{name: "scaled between floor and max", strength: 0.8, want: decimal.NewFromFloat(3.4)},
		{name: "full strength capped at max", strength: 1.0, want: decimal.NewFromInt(4)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			runCfg := cfg
			runCfg.MinEntryStrength = 0
			signal := types.NewSignal("AAPL", t0(), types.ActionLong, tc.strength, "")
			order, rejection := SizeOrder(signal, account, 0, price, runCfg)
			if order == nil {
				t.Fatalf("unexpected rejection: %+v", rejection)
			}
			if !order.Leverage.Equal(tc.want) {
				t.Errorf("leverage = %s, want %s", order.Leverage, tc.want)
			}
		})
	}
}

func TestSizeOrder_QuantityAndLevels(t *testing.T) {
	cfg := testConfig()
	account := testAccount(100_000)
	price := decimal.NewFromInt(100)

	signal := types.NewSignal("AAPL", t0(), types.ActionLong, 1.0, "breakout")
	order, rejection := SizeOrder(signal, account, 0, price, cfg)
	if order == nil {
		t.Fatalf("unexpected rejection: %+v", rejection)
	}

	// equity 100k * 15% * 4x / 100 = 600 shares.
	if order.Quantity != 600 {
		t.Errorf("quantity = %d, want 600", order.Quantity)
	}
	if !order.StopLoss.Equal(decimal.NewFromInt(98)) {
		t.Errorf("stop = %s, want 98", order.StopLoss)
	}
	if !order.TakeProfit.Equal(decimal.NewFromInt(104)) {
		t.Errorf("target = %s, want 104", order.TakeProfit)
	}
	if !order.TrailingStopDistance.Equal(decimal.NewFromFloat(1.5)) {
		t.Errorf("trailing distance = %s, want 1.5", order.TrailingStopDistance)
	}
	if order.Side != types.SideLong {
		t.Errorf("side = %s, want %s", order.Side, types.SideLong)
	}
	if order.Rationale != "breakout" {
		t.Errorf("rationale = %q, want breakout", order.Rationale)
	}
}

func TestSizeOrder_VolatilityWidensStop(t *testing.T) {
	cfg := testConfig()
	account := testAccount(100_000)
	price := decimal.NewFromInt(100)
	signal := types.NewSignal("AAPL", t0(), types.ActionShort, 1.0, "")

	calm, _ := SizeOrder(signal, account, 0, price, cfg)
	stormy, _ := SizeOrder(signal, account, 0.4, price, cfg)
	if calm == nil || stormy == nil {
		t.Fatal("unexpected rejection")
	}

	// Short stops sit above price; higher volatility pushes them
	// further away.
	if !stormy.StopLoss.GreaterThan(calm.StopLoss) {
		t.Errorf("volatile stop %s not wider than calm stop %s", stormy.StopLoss, calm.StopLoss)
	}
	// 2% * (1 + 0.4*0.5) = 2.4% above 100.
	if !stormy.StopLoss.Equal(decimal.NewFromFloat(102.4)) {
		t.Errorf("stop = %s, want 102.4", stormy.StopLoss)
	}
}
