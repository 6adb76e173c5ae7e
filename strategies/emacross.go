package strategies

import (
	"fmt"
	"math"

	"backsim/internal/engine"
	"backsim/internal/indicators"
	"backsim/types"
)

var _ engine.Strategy = (*EMACross)(nil)

// EMACross is a triple exponential moving average alignment strategy:
// it enters long on the tick where the fast EMA crosses above the mid
// EMA while the full stack is aligned (fast > mid > slow), and short on
// the mirror cross. Strength grows with the fast/slow separation.
type EMACross struct {
	fast int
	mid  int
	slow int
}

func NewEMACross() *EMACross {
	return &EMACross{fast: 5, mid: 9, slow: 21}
}

func (s *EMACross) Name() string { return "ema-cross" }

func (s *EMACross) RequiredBars() int { return 3 * s.slow }

func (s *EMACross) ComputeIndicators(w *types.Window) error {
	closes := w.Closes()
	w.Indicators = map[string][]float64{
		"ema_fast": indicators.EMA(closes, s.fast),
		"ema_mid":  indicators.EMA(closes, s.mid),
		"ema_slow": indicators.EMA(closes, s.slow),
	}
	return nil
}

func (s *EMACross) Evaluate(w *types.Window, _ types.Account, _ []types.Position) (types.Signal, error) {
	last := w.Last()

	fast, ok1 := w.Ind("ema_fast", 0)
	mid, ok2 := w.Ind("ema_mid", 0)
	slow, ok3 := w.Ind("ema_slow", 0)
	prevFast, ok4 := w.Ind("ema_fast", 1)
	prevMid, ok5 := w.Ind("ema_mid", 1)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 ||
		math.IsNaN(fast) || math.IsNaN(mid) || math.IsNaN(slow) ||
		math.IsNaN(prevFast) || math.IsNaN(prevMid) {
		return types.Flat(w.Symbol, last.Timestamp, "warmup"), nil
	}

	crossedUp := prevFast <= prevMid && fast > mid
	crossedDown := prevFast >= prevMid && fast < mid
	separation := math.Abs(fast-slow) / slow

	if crossedUp && fast > mid && mid > slow {
		rationale := fmt.Sprintf("fast ema crossed above mid, stack aligned, separation %.4f", separation)
		return types.NewSignal(w.Symbol, last.Timestamp, types.ActionLong, s.strength(separation), rationale), nil
	}
	if crossedDown && fast < mid && mid < slow {
		rationale := fmt.Sprintf("fast ema crossed below mid, stack aligned, separation %.4f", separation)
		return types.NewSignal(w.Symbol, last.Timestamp, types.ActionShort, s.strength(separation), rationale), nil
	}

	return types.Flat(w.Symbol, last.Timestamp, "no aligned cross"), nil
}

func (s *EMACross) strength(separation float64) float64 {
	return 0.7 + separation*20
}
