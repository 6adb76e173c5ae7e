package types

// Window is the causal slice of bars handed to a strategy at one tick:
// every bar's timestamp is <= the evaluation timestamp, bounded to the
// lookback the strategy declares. Strategies enrich it with named
// indicator series before evaluating; indicator values are float64
// because statistical indicator math does not need exact decimals.
type Window struct {
	Symbol string
	Bars   []Bar
	// Indicators maps a series name (e.g. "rsi", "ema_9") to values
	// aligned index-for-index with Bars. Shorter series are aligned to
	// the tail.
	Indicators map[string][]float64
}

// Last returns the most recent bar of the window.
func (w *Window) Last() Bar {
	return w.Bars[len(w.Bars)-1]
}

// Closes extracts the close series as float64 for indicator input.
func (w *Window) Closes() []float64 {
	out := make([]float64, len(w.Bars))
	for i, b := range w.Bars {
		out[i] = b.Close.InexactFloat64()
	}
	return out
}

// Highs extracts the high series as float64.
func (w *Window) Highs() []float64 {
	out := make([]float64, len(w.Bars))
	for i, b := range w.Bars {
		out[i] = b.High.InexactFloat64()
	}
	return out
}

// Lows extracts the low series as float64.
func (w *Window) Lows() []float64 {
	out := make([]float64, len(w.Bars))
	for i, b := range w.Bars {
		out[i] = b.Low.InexactFloat64()
	}
	return out
}

// Volumes extracts the volume series as float64.
func (w *Window) Volumes() []float64 {
	out := make([]float64, len(w.Bars))
	for i, b := range w.Bars {
		out[i] = b.Volume.InexactFloat64()
	}
	return out
}

// Ind returns the named indicator value at offset back from the latest
// bar (0 = latest). The second return is false when the series is
// missing or too short.
func (w *Window) Ind(name string, back int) (float64, bool) {
	s, ok := w.Indicators[name]
	if !ok || len(s) <= back {
		return 0, false
	}
	return s[len(s)-1-back], true
}
