package strategies

import (
	"fmt"
	"math"

	"backsim/internal/engine"
	"backsim/internal/indicators"
	"backsim/types"
)

var _ engine.Strategy = (*MomentumBreakout)(nil)

// MomentumBreakout trades fresh range breakouts confirmed by rate of
// change and a volume surge. Longs on a break above the prior N-bar
// high, shorts on a break below the prior N-bar low.
type MomentumBreakout struct {
	breakoutPeriod int
	rocPeriod      int
	volumePeriod   int
	volumeSurge    float64
}

func NewMomentumBreakout() *MomentumBreakout {
	return &MomentumBreakout{
		breakoutPeriod: 20,
		rocPeriod:      10,
		volumePeriod:   20,
		volumeSurge:    1.2,
	}
}

func (s *MomentumBreakout) Name() string { return "momentum-breakout" }

func (s *MomentumBreakout) RequiredBars() int { return 2 * s.breakoutPeriod }

func (s *MomentumBreakout) ComputeIndicators(w *types.Window) error {
	closes := w.Closes()
	w.Indicators = map[string][]float64{
		"roll_high": indicators.RollingMax(w.Highs(), s.breakoutPeriod),
		"roll_low":  indicators.RollingMin(w.Lows(), s.breakoutPeriod),
		"roc":       indicators.ROC(closes, s.rocPeriod),
		"sma":       indicators.SMA(closes, s.breakoutPeriod),
		"vol_sma":   indicators.SMA(w.Volumes(), s.volumePeriod),
	}
	return nil
}

func (s *MomentumBreakout) Evaluate(w *types.Window, _ types.Account, _ []types.Position) (types.Signal, error) {
	last := w.Last()
	close := last.Close.InexactFloat64()
	volume := last.Volume.InexactFloat64()

	// Prior bar's channel bounds, so the current bar can break them.
	prevHigh, ok1 := w.Ind("roll_high", 1)
	prevLow, ok2 := w.Ind("roll_low", 1)
	roc, ok3 := w.Ind("roc", 0)
	sma, ok4 := w.Ind("sma", 0)
	volSMA, ok5 := w.Ind("vol_sma", 0)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 ||
		math.IsNaN(prevHigh) || math.IsNaN(prevLow) || math.IsNaN(roc) ||
		math.IsNaN(sma) || math.IsNaN(volSMA) {
		return types.Flat(w.Symbol, last.Timestamp, "warmup"), nil
	}

	volumeSurge := volume > s.volumeSurge*volSMA

	longVotes := votes(
		close > prevHigh,
		roc > 0.01,
		volumeSurge,
		close > sma,
	)
	if close > prevHigh && longVotes >= 3 {
		rationale := fmt.Sprintf("breakout above %.2f, roc %.3f, %d/4 conditions", prevHigh, roc, longVotes)
		return types.NewSignal(w.Symbol, last.Timestamp, types.ActionLong, 0.55+0.1*float64(longVotes), rationale), nil
	}

	shortVotes := votes(
		close < prevLow,
		roc < -0.01,
		volumeSurge,
		close < sma,
	)
	if close < prevLow && shortVotes >= 3 {
		rationale := fmt.Sprintf("breakdown below %.2f, roc %.3f, %d/4 conditions", prevLow, roc, shortVotes)
		return types.NewSignal(w.Symbol, last.Timestamp, types.ActionShort, 0.55+0.1*float64(shortVotes), rationale), nil
	}

	return types.Flat(w.Symbol, last.Timestamp, "no breakout"), nil
}

func votes(conditions ...bool) int {
	n := 0
	for _, c := range conditions {
		if c {
			n++
		}
	}
	return n
}
