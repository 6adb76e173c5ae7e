package strategies

import (
	"fmt"
	"math"

	"backsim/internal/engine"
	"backsim/internal/indicators"
	"backsim/types"
)

var _ engine.Strategy = (*VWAPBounce)(nil)

// VWAPBounce trades pullbacks to the volume-weighted average price in
// the direction of the prevailing side of VWAP: price holding above
// VWAP that dips to touch it and closes away again is a long, the
// mirror a short.
type VWAPBounce struct {
	volumePeriod int
	// touchPct is how close (fractionally) the bar's extreme must come
	// to VWAP to count as a touch.
	touchPct float64
}

func NewVWAPBounce() *VWAPBounce {
	return &VWAPBounce{volumePeriod: 20, touchPct: 0.002}
}

func (s *VWAPBounce) Name() string { return "vwap-bounce" }

func (s *VWAPBounce) RequiredBars() int { return 2 * s.volumePeriod }

func (s *VWAPBounce) ComputeIndicators(w *types.Window) error {
	w.Indicators = map[string][]float64{
		"vwap":    indicators.VWAP(w.Highs(), w.Lows(), w.Closes(), w.Volumes()),
		"vol_sma": indicators.SMA(w.Volumes(), s.volumePeriod),
	}
	return nil
}

func (s *VWAPBounce) Evaluate(w *types.Window, _ types.Account, _ []types.Position) (types.Signal, error) {
	last := w.Last()
	close := last.Close.InexactFloat64()
	low := last.Low.InexactFloat64()
	high := last.High.InexactFloat64()

	vwap, ok1 := w.Ind("vwap", 0)
	volSMA, ok2 := w.Ind("vol_sma", 0)
	if !ok1 || !ok2 || math.IsNaN(vwap) || math.IsNaN(volSMA) || vwap == 0 {
		return types.Flat(w.Symbol, last.Timestamp, "warmup"), nil
	}

	volumeConfirm := last.Volume.InexactFloat64() > volSMA

	longVotes := votes(
		close > vwap,
		low <= vwap*(1+s.touchPct),
		last.Close.GreaterThan(last.Open),
		volumeConfirm,
	)
	if close > vwap && longVotes >= 3 {
		rationale := fmt.Sprintf("bounce off vwap %.2f from above, %d/4 conditions", vwap, longVotes)
		return types.NewSignal(w.Symbol, last.Timestamp, types.ActionLong, 0.55+0.1*float64(longVotes), rationale), nil
	}

	shortVotes := votes(
		close < vwap,
		high >= vwap*(1-s.touchPct),
		last.Close.LessThan(last.Open),
		volumeConfirm,
	)
	if close < vwap && shortVotes >= 3 {
		rationale := fmt.Sprintf("rejection at vwap %.2f from below, %d/4 conditions", vwap, shortVotes)
		return types.NewSignal(w.Symbol, last.Timestamp, types.ActionShort, 0.55+0.1*float64(shortVotes), rationale), nil
	}

	return types.Flat(w.Symbol, last.Timestamp, "no vwap setup"), nil
}
