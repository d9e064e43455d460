package indicator

import "intraday-scanner/internal/model"

// Source picks the input an indicator reads from a bar.
type Source func(model.Bar) float64

// Close and Volume are the two sources the scanner uses.
func Close(b model.Bar) float64  { return b.Close }
func Volume(b model.Bar) float64 { return b.Volume }

// SMA calculates Simple Moving Average over a rolling window.
// Uses a preallocated circular buffer for a zero-allocation hot path.
type SMA struct {
	name    string
	source  Source
	period  int
	buf     []float64 // preallocated circular buffer
	idx     int       // current write position
	count   int       // total values received
	sum     float64
	current float64
}

// NewSMA creates a new SMA over closes with the given period.
func NewSMA(period int) *SMA {
	return newSMA("SMA", Close, period)
}

// NewVolumeSMA creates a rolling mean of bar volume.
func NewVolumeSMA(period int) *SMA {
	return newSMA("AVGVOL", Volume, period)
}

func newSMA(name string, src Source, period int) *SMA {
	return &SMA{
		name:   name,
		source: src,
		period: period,
		buf:    make([]float64, period),
	}
}

func (s *SMA) Name() string { return s.name }

func (s *SMA) Update(bar model.Bar) {
	v := s.source(bar)

	if s.count >= s.period {
		// Subtract the oldest value being overwritten
		s.sum -= s.buf[s.idx]
	}

	s.buf[s.idx] = v
	s.sum += v
	s.idx = (s.idx + 1) % s.period
	s.count++

	if s.count >= s.period {
		s.current = s.sum / float64(s.period)
	}
}

func (s *SMA) Value() float64 { return s.current }
func (s *SMA) Ready() bool    { return s.count >= s.period }
