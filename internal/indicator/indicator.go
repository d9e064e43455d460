// Package indicator provides technical indicator calculations over bar data.
//
// Each indicator is a streaming state machine: feed bars oldest-first through
// Update and read Value once Ready reports true. Compute runs the fixed
// scanner set (EMA 9/21/50, RSI 14, ATR 14, 20-bar average volume) over a
// whole series and returns one Snapshot per bar.
package indicator

import (
	"strconv"

	"intraday-scanner/internal/model"
)

// Indicator is the interface for all technical indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "EMA", "RSI").
	Name() string

	// Update feeds the next bar and recalculates.
	Update(bar model.Bar)

	// Value returns the current calculated value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool
}

// Value is an indicator reading that may be undefined during warm-up.
// A zero Value is undefined.
type Value struct {
	V  float64
	OK bool
}

// Defined wraps a computed number.
func Defined(v float64) Value { return Value{V: v, OK: true} }

// Current reads an indicator as a Value, undefined until the indicator is ready.
func Current(ind Indicator) Value {
	if !ind.Ready() {
		return Value{}
	}
	return Defined(ind.Value())
}

// Or returns the reading, or fallback when undefined.
func (v Value) Or(fallback float64) float64 {
	if !v.OK {
		return fallback
	}
	return v.V
}

func (v Value) String() string {
	if !v.OK {
		return "undefined"
	}
	return strconv.FormatFloat(v.V, 'f', 4, 64)
}
