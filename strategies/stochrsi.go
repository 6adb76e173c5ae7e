package strategies

import (
	"fmt"
	"math"

	"backsim/internal/engine"
	"backsim/internal/indicators"
	"backsim/types"
)

var _ engine.Strategy = (*StochRSI)(nil)

// StochRSI combines the stochastic oscillator with RSI confirmation:
// long when %K crosses above %D deep in oversold territory with RSI
// agreeing, short on the mirror setup. Conditions vote; three of four
// are required.
type StochRSI struct {
	kPeriod   int
	kSmooth   int
	dPeriod   int
	rsiPeriod int

	oversold   float64
	overbought float64
}

func NewStochRSI() *StochRSI {
	return &StochRSI{
		kPeriod:    14,
		kSmooth:    3,
		dPeriod:    3,
		rsiPeriod:  14,
		oversold:   20,
		overbought: 80,
	}
}

func (s *StochRSI) Name() string { return "stoch-rsi" }

func (s *StochRSI) RequiredBars() int { return 3 * s.kPeriod }

func (s *StochRSI) ComputeIndicators(w *types.Window) error {
	closes := w.Closes()
	k, d := indicators.Stoch(w.Highs(), w.Lows(), closes, s.kPeriod, s.kSmooth, s.dPeriod)
	w.Indicators = map[string][]float64{
		"stoch_k": k,
		"stoch_d": d,
		"rsi":     indicators.RSI(closes, s.rsiPeriod),
	}
	return nil
}

func (s *StochRSI) Evaluate(w *types.Window, _ types.Account, _ []types.Position) (types.Signal, error) {
	last := w.Last()

	k, ok1 := w.Ind("stoch_k", 0)
	d, ok2 := w.Ind("stoch_d", 0)
	prevK, ok3 := w.Ind("stoch_k", 1)
	prevD, ok4 := w.Ind("stoch_d", 1)
	rsi, ok5 := w.Ind("rsi", 0)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 ||
		math.IsNaN(k) || math.IsNaN(d) || math.IsNaN(prevK) || math.IsNaN(prevD) || math.IsNaN(rsi) {
		return types.Flat(w.Symbol, last.Timestamp, "warmup"), nil
	}

	crossedUp := prevK <= prevD && k > d
	crossedDown := prevK >= prevD && k < d

	longVotes := votes(
		crossedUp,
		k < s.oversold,
		d < s.oversold,
		rsi < 35,
	)
	if crossedUp && longVotes >= 3 {
		rationale := fmt.Sprintf("stoch cross up at k %.1f, rsi %.1f, %d/4 conditions", k, rsi, longVotes)
		return types.NewSignal(w.Symbol, last.Timestamp, types.ActionLong, 0.55+0.1*float64(longVotes), rationale), nil
	}

	shortVotes := votes(
		crossedDown,
		k > s.overbought,
		d > s.overbought,
		rsi > 65,
	)
	if crossedDown && shortVotes >= 3 {
		rationale := fmt.Sprintf("stoch cross down at k %.1f, rsi %.1f, %d/4 conditions", k, rsi, shortVotes)
		return types.NewSignal(w.Symbol, last.Timestamp, types.ActionShort, 0.55+0.1*float64(shortVotes), rationale), nil
	}

	return types.Flat(w.Symbol, last.Timestamp, "no extreme cross"), nil
}
