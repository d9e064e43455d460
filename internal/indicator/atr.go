package indicator

import (
	"math"

	"intraday-scanner/internal/model"
)

// ATR calculates Average True Range with Wilder smoothing.
// True range is max(high-low, |high-prevClose|, |low-prevClose|); the first
// bar has no previous close so its true range is high-low. Ready after
// period bars.
type ATR struct {
	smma      *SMMA
	prevClose float64
	seen      bool
}

// NewATR creates a new ATR indicator with the given period (typically 14).
func NewATR(period int) *ATR {
	return &ATR{smma: NewSMMA(period)}
}

func (a *ATR) Name() string { return "ATR" }

func (a *ATR) Update(bar model.Bar) {
	a.smma.Add(TrueRange(bar, a.prevClose, a.seen))
	a.prevClose = bar.Close
	a.seen = true
}

// TrueRange returns the true range of bar given the previous close.
// When hasPrev is false the range is high-low.
func TrueRange(bar model.Bar, prevClose float64, hasPrev bool) float64 {
	tr := bar.High - bar.Low
	if !hasPrev {
		return tr
	}
	return math.Max(tr, math.Max(math.Abs(bar.High-prevClose), math.Abs(bar.Low-prevClose)))
}

func (a *ATR) Value() float64 { return a.smma.Value() }
func (a *ATR) Ready() bool    { return a.smma.Ready() }
