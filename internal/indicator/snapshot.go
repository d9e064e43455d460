package indicator

import "intraday-scanner/internal/model"

// Periods of the fixed indicator set the scanner evaluates.
const (
	FastEMAPeriod   = 9
	MidEMAPeriod    = 21
	SlowEMAPeriod   = 50
	RSIPeriod       = 14
	ATRPeriod       = 14
	AvgVolumePeriod = 20
)

// Snapshot holds every indicator reading at one bar.
type Snapshot struct {
	EMA9     Value
	EMA21    Value
	EMA50    Value
	RSI14    Value
	ATR14    Value
	AvgVol20 Value
}

// Set advances the scanner's indicators together, one bar at a time.
type Set struct {
	ema9   *EMA
	ema21  *EMA
	ema50  *EMA
	rsi    *RSI
	atr    *ATR
	avgVol *SMA
}

// NewSet creates an empty indicator set.
func NewSet() *Set {
	return &Set{
		ema9:   NewEMA(FastEMAPeriod),
		ema21:  NewEMA(MidEMAPeriod),
		ema50:  NewEMA(SlowEMAPeriod),
		rsi:    NewRSI(RSIPeriod),
		atr:    NewATR(ATRPeriod),
		avgVol: NewVolumeSMA(AvgVolumePeriod),
	}
}

// Update feeds one bar to every indicator and returns the readings after it.
func (s *Set) Update(bar model.Bar) Snapshot {
	for _, ind := range s.all() {
		ind.Update(bar)
	}
	return s.Snapshot()
}

// Snapshot returns the current readings without advancing.
func (s *Set) Snapshot() Snapshot {
	return Snapshot{
		EMA9:     Current(s.ema9),
		EMA21:    Current(s.ema21),
		EMA50:    Current(s.ema50),
		RSI14:    Current(s.rsi),
		ATR14:    Current(s.atr),
		AvgVol20: Current(s.avgVol),
	}
}

func (s *Set) all() []Indicator {
	return []Indicator{s.ema9, s.ema21, s.ema50, s.rsi, s.atr, s.avgVol}
}

// Compute runs the indicator set over bars (oldest first) and returns one
// Snapshot per bar, aligned by index. Short input yields undefined readings,
// never an error.
func Compute(bars []model.Bar) []Snapshot {
	out := make([]Snapshot, len(bars))
	set := NewSet()
	for i, b := range bars {
		out[i] = set.Update(b)
	}
	return out
}

// Latest returns the readings after the final bar. ok is false for no bars.
func Latest(bars []model.Bar) (snap Snapshot, ok bool) {
	if len(bars) == 0 {
		return Snapshot{}, false
	}
	set := NewSet()
	for _, b := range bars {
		set.Update(b)
	}
	return set.Snapshot(), true
}
