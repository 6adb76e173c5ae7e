package strategies

import (
	"fmt"
	"math"

	"backsim/internal/engine"
	"backsim/internal/indicators"
	"backsim/types"
)

var _ engine.Strategy = (*MeanReversion)(nil)

// MeanReversion fades statistical extremes: it buys when price is
// stretched far below its rolling mean with an oversold RSI, and sells
// short on the mirror condition. Strength grows with the stretch.
type MeanReversion struct {
	meanPeriod int
	rsiPeriod  int
	entryZ     float64
}

func NewMeanReversion() *MeanReversion {
	return &MeanReversion{
		meanPeriod: 20,
		rsiPeriod:  14,
		entryZ:     2.0,
	}
}

func (s *MeanReversion) Name() string { return "mean-reversion" }

func (s *MeanReversion) RequiredBars() int { return 2 * s.meanPeriod }

func (s *MeanReversion) ComputeIndicators(w *types.Window) error {
	closes := w.Closes()
	mean, std := indicators.MeanStd(closes, s.meanPeriod)
	w.Indicators = map[string][]float64{
		"mean": mean,
		"std":  std,
		"rsi":  indicators.RSI(closes, s.rsiPeriod),
	}
	return nil
}

func (s *MeanReversion) Evaluate(w *types.Window, _ types.Account, _ []types.Position) (types.Signal, error) {
	last := w.Last()
	close := last.Close.InexactFloat64()

	mean, ok1 := w.Ind("mean", 0)
	std, ok2 := w.Ind("std", 0)
	rsi, ok3 := w.Ind("rsi", 0)
	if !ok1 || !ok2 || !ok3 || math.IsNaN(mean) || math.IsNaN(std) || math.IsNaN(rsi) {
		return types.Flat(w.Symbol, last.Timestamp, "warmup"), nil
	}
	if std == 0 {
		return types.Flat(w.Symbol, last.Timestamp, "zero variance"), nil
	}

	z := (close - mean) / std
	// Reversal bar: closed against the stretch.
	reversal := last.Close.GreaterThan(last.Open)

	if z < -s.entryZ && rsi < 30 {
		rationale := fmt.Sprintf("z-score %.2f below -%.1f, rsi %.1f", z, s.entryZ, rsi)
		return types.NewSignal(w.Symbol, last.Timestamp, types.ActionLong, s.strength(-z, reversal), rationale), nil
	}
	if z > s.entryZ && rsi > 70 {
		rationale := fmt.Sprintf("z-score %.2f above %.1f, rsi %.1f", z, s.entryZ, rsi)
		return types.NewSignal(w.Symbol, last.Timestamp, types.ActionShort, s.strength(z, !reversal), rationale), nil
	}

	return types.Flat(w.Symbol, last.Timestamp, "inside band"), nil
}

// strength starts at 0.7 at the entry threshold and grows with the
// stretch beyond it; a reversal bar adds a small boost.
func (s *MeanReversion) strength(stretch float64, reversal bool) float64 {
	v := 0.7 + (stretch-s.entryZ)*0.2
	if reversal {
		v += 0.05
	}
	return v
}
