package provider

import (
	"context"
	"log/slog"
	"time"

	"intraday-scanner/internal/markethours"
	"intraday-scanner/internal/model"
)

// Archive writes every successfully fetched series through to a BarWriter.
// Archive failures are logged and never fail the fetch.
type Archive struct {
	inner  model.Provider
	writer model.BarWriter
}

// NewArchive wraps p so its results are saved to w.
func NewArchive(p model.Provider, w model.BarWriter) *Archive {
	return &Archive{inner: p, writer: w}
}

func (a *Archive) Name() string { return a.inner.Name() }

func (a *Archive) FetchHistory(ctx context.Context, symbol, lookback, interval string) (model.Series, error) {
	s, err := a.inner.FetchHistory(ctx, symbol, lookback, interval)
	if err != nil || s.Empty() {
		return s, err
	}
	if err := a.writer.SaveBars(ctx, interval, s); err != nil {
		slog.Warn("archive save failed", "symbol", s.Symbol, "err", err)
	}
	return s, nil
}

// Replay serves history from the bar archive instead of the network, for
// offline scans and after-hours debugging. The lookback window is anchored
// at the newest archived session, not the wall clock, so yesterday's
// archive still yields a full window.
type Replay struct {
	reader model.BarReader
}

// NewReplay creates a provider reading from r.
func NewReplay(r model.BarReader) *Replay {
	return &Replay{reader: r}
}

func (r *Replay) Name() string { return "sqlite" }

func (r *Replay) FetchHistory(ctx context.Context, symbol, lookback, interval string) (model.Series, error) {
	all, err := r.reader.ReadBars(ctx, symbol, interval, time.Time{})
	if err != nil {
		return model.Series{}, err
	}
	last, ok := all.Last()
	if !ok {
		return model.Series{}, model.ErrNoData
	}

	days, err := lookbackDays(lookback)
	if err != nil {
		return model.Series{}, err
	}
	from := markethours.TradingDaysBack(last.TS, days)

	out := model.Series{Symbol: all.Symbol}
	for _, b := range all.Bars {
		if !b.TS.Before(from) {
			out.Bars = append(out.Bars, b)
		}
	}
	return out, nil
}
