package scanner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"intraday-scanner/internal/model"
)

var day1 = time.Date(2026, 3, 2, 9, 15, 0, 0, time.FixedZone("IST", 5*3600+30*60))

// zigzag builds n bars stepping +1, +1, -1 from 100. From 60 bars on this
// is a strong uptrend with RSI between 60 and 80. The last bar's volume is
// lastVol; every other bar trades 1000.
func zigzag(symbol string, n int, lastVol float64) model.Series {
	steps := []float64{1, 1, -1}
	bars := make([]model.Bar, n)
	c := 100.0
	for i := 0; i < n; i++ {
		if i > 0 {
			c += steps[(i-1)%3]
		}
		bars[i] = model.Bar{
			TS:     day1.Add(time.Duration(i) * 5 * time.Minute),
			Open:   c,
			High:   c + 0.5,
			Low:    c - 0.5,
			Close:  c,
			Volume: 1000,
		}
	}
	if n > 0 {
		bars[n-1].Volume = lastVol
	}
	return model.Series{Symbol: symbol, Bars: bars}
}

// falling builds n strictly decreasing bars.
func falling(symbol string, n int) model.Series {
	bars := make([]model.Bar, n)
	for i := range bars {
		c := 500 - float64(i)
		bars[i] = model.Bar{
			TS:     day1.Add(time.Duration(i) * 5 * time.Minute),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		}
	}
	return model.Series{Symbol: symbol, Bars: bars}
}

// flat builds n bars that never move, as a halted stock prints.
func flat(symbol string, n int) model.Series {
	bars := make([]model.Bar, n)
	for i := range bars {
		bars[i] = model.Bar{
			TS:     day1.Add(time.Duration(i) * 5 * time.Minute),
			Open:   100,
			High:   100,
			Low:    100,
			Close:  100,
			Volume: 1000,
		}
	}
	return model.Series{Symbol: symbol, Bars: bars}
}

// fakeProvider serves canned series and errors, and records concurrency.
type fakeProvider struct {
	series map[string]model.Series
	errs   map[string]error
	panics map[string]bool
	delay  time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	mu    sync.Mutex
	calls []string
}

func newFake() *fakeProvider {
	return &fakeProvider{
		series: map[string]model.Series{},
		errs:   map[string]error{},
		panics: map[string]bool{},
	}
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) FetchHistory(ctx context.Context, symbol, lookback, interval string) (model.Series, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		prev := f.maxInFlight.Load()
		if cur <= prev || f.maxInFlight.CompareAndSwap(prev, cur) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, symbol+"|"+lookback+"|"+interval)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return model.Series{}, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.panics[symbol] {
		panic("boom")
	}
	if err := f.errs[symbol]; err != nil {
		return model.Series{}, err
	}
	return f.series[symbol], nil
}
