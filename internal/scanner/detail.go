package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"intraday-scanner/internal/markethours"
	"intraday-scanner/internal/model"
)

// ErrNotFound is returned by Lookup.Detail when the provider has no bars.
var ErrNotFound = errors.New("stock data not found")

// Lookup serves single-symbol quote views. It shares the provider with the
// scanner but none of the signal pipeline.
type Lookup struct {
	cfg      Config
	provider model.Provider
}

// NewLookup creates a Lookup reading the same lookback and interval as cfg.
func NewLookup(cfg Config, p model.Provider) *Lookup {
	return &Lookup{cfg: cfg.withDefaults(), provider: p}
}

// Detail fetches symbol and builds its quote view. An empty series (or a
// provider ErrNoData) is ErrNotFound; any other provider error is wrapped.
func (l *Lookup) Detail(ctx context.Context, symbol string) (model.Detail, error) {
	symbol = model.CleanSymbol(symbol)

	ctx, cancel := context.WithTimeout(ctx, l.cfg.FetchTimeout)
	defer cancel()

	series, err := l.provider.FetchHistory(ctx, symbol, l.cfg.Lookback, l.cfg.Interval)
	if err != nil {
		if errors.Is(err, model.ErrNoData) {
			return model.Detail{}, ErrNotFound
		}
		return model.Detail{}, fmt.Errorf("fetch %s: %w", symbol, err)
	}
	return BuildDetail(symbol, l.provider.Name(), series)
}

// BuildDetail derives the quote view from a series. The previous close is
// the second-to-last bar, or the last bar when only one exists. The chart
// holds the closes of the last bar's IST calendar day.
func BuildDetail(symbol, source string, series model.Series) (model.Detail, error) {
	last, ok := series.Last()
	if !ok {
		return model.Detail{}, ErrNotFound
	}

	prev := last.Close
	if n := series.Len(); n > 1 {
		prev = series.Bars[n-2].Close
	}

	change := last.Close - prev
	changePct := 0.0
	if prev != 0 {
		changePct = change / prev * 100
	}

	return model.Detail{
		Symbol:    model.CleanSymbol(symbol),
		LTP:       last.Close,
		PrevClose: prev,
		Change:    change,
		ChangePct: changePct,
		Source:    source,
		Chart:     sessionChart(series.Bars, last.TS),
	}, nil
}

func sessionChart(bars []model.Bar, day time.Time) []model.ChartPoint {
	chart := make([]model.ChartPoint, 0, 80)
	for _, b := range bars {
		if markethours.SameSession(b.TS, day) {
			chart = append(chart, model.ChartPoint{TS: b.TS, Price: b.Close})
		}
	}
	return chart
}
