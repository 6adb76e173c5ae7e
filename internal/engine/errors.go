package engine

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDataUnavailable is returned by bar sources when a symbol has no
	// usable history for the requested range. The engine excludes the
	// symbol from the run instead of aborting.
	ErrDataUnavailable = errors.New("bar history unavailable")

	ErrInsufficientCash = errors.New("insufficient cash to reserve margin")
	ErrNoSymbols        = errors.New("no symbols with usable bar history")
)

// RejectReason classifies a risk-sizer rejection. Rejections are typed
// outcomes, not errors: they are expected, non-fatal, and logged at
// debug level for post-run analysis.
type RejectReason string

const (
	RejectPositionTooSmall RejectReason = "position_too_small"
	RejectLimitReached     RejectReason = "limit_reached"
	RejectCircuitBreaker   RejectReason = "circuit_breaker_tripped"
	RejectUnfavorableRR    RejectReason = "unfavorable_risk_reward"
)

// Rejection carries the reason a candidate signal was not sized into an
// order.
type Rejection struct {
	Reason RejectReason
	Detail string
}

func reject(reason RejectReason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// StrategyError wraps a failure (or recovered panic) inside a strategy
// evaluation. It is recoverable: the orchestrator treats the tick as
// flat and counts the failure as a diagnostic.
type StrategyError struct {
	Strategy string
	Symbol   string
	Time     time.Time
	Err      error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("strategy %s failed on %s at %s: %v", e.Strategy, e.Symbol, e.Time.Format(time.RFC3339), e.Err)
}

func (e *StrategyError) Unwrap() error { return e.Err }

// InvariantViolation is fatal: equity conservation, look-ahead or
// timestamp ordering broke, which would silently invalidate every
// downstream metric. The run aborts immediately.
type InvariantViolation struct {
	Invariant string
	Time      time.Time
	Detail    string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant %q violated at %s: %s", e.Invariant, e.Time.Format(time.RFC3339), e.Detail)
}

// ConfigError reports an invalid run configuration before the run
// starts.
type ConfigError struct {
	Field  string
	Detail string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Detail)
}
