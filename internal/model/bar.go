package model

import (
	"errors"
	"time"
)

// MinBars is the shortest series the scanner will evaluate. EMA-50 needs
// 50 closes to seed, plus a few bars so the trend reading is not the seed itself.
const MinBars = 55

// ErrNoData is returned by providers when the upstream has nothing for a symbol.
var ErrNoData = errors.New("no data")

// Bar represents one OHLCV candle for a single instrument.
// Prices are in rupees; bars are produced by a provider and never mutated.
type Bar struct {
	TS     time.Time `json:"ts"` // bucket start time
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Series is an ordered run of bars for one symbol, oldest first,
// with strictly increasing timestamps.
type Series struct {
	Symbol string `json:"symbol"`
	Bars   []Bar  `json:"bars"`
}

// Len returns the number of bars.
func (s Series) Len() int { return len(s.Bars) }

// Empty reports whether the series carries no bars.
func (s Series) Empty() bool { return len(s.Bars) == 0 }

// Last returns the most recent bar.
func (s Series) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}
