package engine

import (
	"context"
	"time"

	"backsim/types"
)

// BarSource supplies ordered OHLCV history. Implementations must return
// an error wrapping ErrDataUnavailable, never a silent empty slice, when
// a symbol has no usable history for the range; the engine uses that to
// distinguish "no data" from a gap.
type BarSource interface {
	GetBars(ctx context.Context, symbol string, interval types.Interval, start, end time.Time) ([]types.Bar, error)
}

// Strategy is the pluggable signal generator. Both methods must be
// deterministic and side-effect-free: ComputeIndicators enriches the
// causal window with named series, Evaluate turns the enriched window
// into a signal. Strategies never see a bar past the evaluation
// timestamp.
type Strategy interface {
	Name() string
	// RequiredBars is the minimum window length the strategy needs; the
	// orchestrator skips evaluation until the window is that long, and
	// bounds the window to it.
	RequiredBars() int
	ComputeIndicators(w *types.Window) error
	Evaluate(w *types.Window, account types.Account, open []types.Position) (types.Signal, error)
}
