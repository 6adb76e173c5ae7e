package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"backsim/internal/indicators"
	"backsim/types"

	"github.com/schollz/progressbar/v3"
)

// volatilityLookback is the number of trailing bars the return
// volatility estimate fed into the risk sizer is computed over.
const volatilityLookback = 20

// backtester drives one time-stepped replay. The clock is the merged,
// strictly increasing set of bar timestamps across all symbols; at each
// tick exits are evaluated before entries so a close and a new entry
// cannot double-count the same bar's capital. A single run is logically
// single-threaded.
type backtester struct {
	cfg      RunConfig
	strategy Strategy
	ledger   *ledger
	logger   *slog.Logger

	bars      map[string][]types.Bar
	clock     []time.Time
	feedIndex map[string]int
	lastBars  map[string]types.Bar

	curve      []types.EquityCurveSample
	evalErrors int
	rejections map[RejectReason]int
}

func newBacktester(cfg RunConfig, strat Strategy, bars map[string][]types.Bar, logger *slog.Logger) (*backtester, error) {
	clock, err := buildClock(bars)
	if err != nil {
		return nil, err
	}
	feedIndex := make(map[string]int, len(bars))
	for symbol := range bars {
		feedIndex[symbol] = 0
	}
	return &backtester{
		cfg:        cfg,
		strategy:   strat,
		ledger:     newLedger(cfg, NewSimulator(cfg.SlippageBps, cfg.Commission), logger),
		logger:     logger,
		bars:       bars,
		clock:      clock,
		feedIndex:  feedIndex,
		lastBars:   make(map[string]types.Bar, len(bars)),
		rejections: make(map[RejectReason]int),
	}, nil
}

// buildClock merges all bar timestamps into one sorted, deduplicated
// simulation clock and verifies per-symbol ordering up front.
func buildClock(bars map[string][]types.Bar) ([]time.Time, error) {
	seen := make(map[int64]time.Time)
	for symbol, series := range bars {
		for i, bar := range series {
			if i > 0 && !bar.Timestamp.After(series[i-1].Timestamp) {
				return nil, &InvariantViolation{
					Invariant: "timestamp ordering",
					Time:      bar.Timestamp,
					Detail:    fmt.Sprintf("bars for %s are not strictly increasing at index %d", symbol, i),
				}
			}
			seen[bar.Timestamp.UnixNano()] = bar.Timestamp
		}
	}
	clock := make([]time.Time, 0, len(seen))
	for _, t := range seen {
		clock = append(clock, t)
	}
	sort.Slice(clock, func(i, j int) bool { return clock[i].Before(clock[j]) })
	return clock, nil
}

func (b *backtester) run(ctx context.Context) (*Report, error) {
	var bar *progressbar.ProgressBar
	if b.cfg.ShowProgress {
		bar = initProgressBar(len(b.clock))
	}

	var prevDay time.Time
	for i, now := range b.clock {
		// Cancellation is cooperative at tick granularity: the run can
		// be aborted between ticks without corrupting a report.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		day := now.UTC().Truncate(24 * time.Hour)
		if i > 0 && day.After(prevDay) {
			b.ledger.RollDay()
		}
		prevDay = day

		current := b.advance(now)

		// Exits first.
		for _, symbol := range b.cfg.Symbols {
			cur, ok := current[symbol]
			if !ok {
				continue
			}
			b.ledger.MarkPrice(symbol, cur.Close)
			b.ledger.EvaluateExits(cur, now)
		}

		// Then entries.
		for _, symbol := range b.cfg.Symbols {
			cur, ok := current[symbol]
			if !ok {
				continue
			}
			b.considerEntry(cur, now)
		}

		acct := b.ledger.Account()
		b.curve = append(b.curve, types.EquityCurveSample{
			Timestamp:         now,
			Equity:            acct.Equity,
			Cash:              acct.Cash,
			OpenPositionCount: acct.OpenPositionCount,
		})

		if violation := b.ledger.VerifyEquity(now); violation != nil {
			return nil, violation
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	b.ledger.CloseAll(types.ExitEndOfBacktest, b.lastBars)
	if len(b.clock) > 0 {
		final := b.clock[len(b.clock)-1]
		acct := b.ledger.Account()
		b.curve = append(b.curve, types.EquityCurveSample{
			Timestamp: final,
			Equity:    acct.Equity,
			Cash:      acct.Cash,
		})
		if violation := b.ledger.VerifyEquity(final); violation != nil {
			return nil, violation
		}
	}

	trades := b.ledger.ClosedPositions()
	report := Summarize(b.strategy.Name(), trades, b.curve, b.cfg.RiskFreeRate)
	report.StrategyEvalErrors = b.evalErrors
	report.Rejections = b.rejections
	report.Trades = trades
	return report, nil
}

// advance moves each symbol's feed cursor up to now and returns the
// symbols that have a bar exactly at this tick. A missing bar for a
// symbol is "no update this tick", not an error.
func (b *backtester) advance(now time.Time) map[string]types.Bar {
	current := make(map[string]types.Bar)
	for symbol, series := range b.bars {
		i := b.feedIndex[symbol]
		for i < len(series) && !series[i].Timestamp.After(now) {
			b.lastBars[symbol] = series[i]
			if series[i].Timestamp.Equal(now) {
				current[symbol] = series[i]
			}
			i++
		}
		b.feedIndex[symbol] = i
	}
	return current
}

func (b *backtester) considerEntry(cur types.Bar, now time.Time) {
	// One position per symbol: additional exposure on an already-held
	// symbol is skipped, not pyramided.
	if b.ledger.HasOpen(cur.Symbol) {
		return
	}

	window, ok := b.window(cur.Symbol, now)
	if !ok {
		return
	}

	signal, err := b.evaluate(window)
	if err != nil {
		// Recoverable per-tick failure: treat the tick as flat and keep
		// going.
		b.evalErrors++
		b.logger.Error("strategy evaluation failed", "error", err)
		return
	}
	if signal.Action == types.ActionFlat {
		return
	}
	if signal.Strength < b.cfg.MinEntryStrength {
		b.logger.Debug("signal below entry strength floor",
			"symbol", signal.Symbol, "strength", signal.Strength)
		return
	}

	volatility := indicators.ReturnsVolatility(window.Closes(), volatilityLookback)
	order, rejection := SizeOrder(signal, b.ledger.Account(), volatility, cur.Close, b.cfg)
	if rejection != nil {
		b.rejections[rejection.Reason]++
		b.logger.Debug("signal rejected",
			"symbol", signal.Symbol, "reason", rejection.Reason, "detail", rejection.Detail)
		return
	}

	if _, err := b.ledger.OpenPosition(*order, cur); err != nil {
		b.logger.Debug("order not filled", "symbol", order.Symbol, "error", err)
	}
}

// window builds the causal window for symbol at now: every bar with a
// timestamp <= now, bounded to the strategy's declared lookback. No bar
// past now is ever reachable from here.
func (b *backtester) window(symbol string, now time.Time) (*types.Window, bool) {
	series := b.bars[symbol]
	end := b.feedIndex[symbol] // first index with timestamp > now
	need := b.strategy.RequiredBars()
	if end < need {
		return nil, false
	}
	return &types.Window{Symbol: symbol, Bars: series[end-need : end]}, true
}

// evaluate runs the strategy over the window with panic isolation: a
// panicking strategy costs one tick, never the run.
func (b *backtester) evaluate(w *types.Window) (signal types.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			signal = types.Signal{}
			err = &StrategyError{
				Strategy: b.strategy.Name(),
				Symbol:   w.Symbol,
				Time:     w.Last().Timestamp,
				Err:      fmt.Errorf("panic: %v", r),
			}
		}
	}()

	if ierr := b.strategy.ComputeIndicators(w); ierr != nil {
		return types.Signal{}, &StrategyError{
			Strategy: b.strategy.Name(),
			Symbol:   w.Symbol,
			Time:     w.Last().Timestamp,
			Err:      ierr,
		}
	}
	signal, eerr := b.strategy.Evaluate(w, b.ledger.Account(), b.ledger.OpenPositions())
	if eerr != nil {
		return types.Signal{}, &StrategyError{
			Strategy: b.strategy.Name(),
			Symbol:   w.Symbol,
			Time:     w.Last().Timestamp,
			Err:      eerr,
		}
	}
	return signal, nil
}

func initProgressBar(maxTicks int) *progressbar.ProgressBar {
	return progressbar.NewOptions(maxTicks,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription("Backtesting in progress..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
