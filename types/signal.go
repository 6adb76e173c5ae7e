package types

import "time"

// Signal is a directional trading recommendation with a confidence
// strength in [0,1]. Signals are produced fresh each evaluation and are
// never mutated.
type Signal struct {
	Symbol    string
	Timestamp time.Time
	Action    SignalAction
	Strength  float64
	Rationale string
}

func NewSignal(symbol string, ts time.Time, action SignalAction, strength float64, rationale string) Signal {
	if strength < 0 {
		strength = 0
	}
	if strength > 1 {
		strength = 1
	}
	return Signal{
		Symbol:    symbol,
		Timestamp: ts,
		Action:    action,
		Strength:  strength,
		Rationale: rationale,
	}
}

// Flat is the neutral signal used when a strategy has nothing to say for
// a tick.
func Flat(symbol string, ts time.Time, rationale string) Signal {
	return Signal{Symbol: symbol, Timestamp: ts, Action: ActionFlat, Rationale: rationale}
}
