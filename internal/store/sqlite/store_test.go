package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intraday-scanner/internal/model"
)

func openPair(t *testing.T) (*Writer, *Reader) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bars.db")
	w, err := New(WriterConfig{DBPath: path})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	r, err := NewReader(path)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return w, r
}

func bars(start time.Time, closes ...float64) []model.Bar {
	out := make([]model.Bar, len(closes))
	for i, c := range closes {
		out[i] = model.Bar{TS: start.Add(time.Duration(i) * 5 * time.Minute), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 100}
	}
	return out
}

func TestSaveAndReadBars(t *testing.T) {
	ctx := context.Background()
	w, r := openPair(t)
	start := time.Date(2026, 3, 2, 3, 45, 0, 0, time.UTC)

	require.NoError(t, w.SaveBars(ctx, "5m", model.Series{Symbol: "INFY.NS", Bars: bars(start, 10, 11, 12)}))

	got, err := r.ReadBars(ctx, "infy", "5m", start.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "INFY", got.Symbol)
	require.Len(t, got.Bars, 2)
	assert.Equal(t, 11.0, got.Bars[0].Close)
	assert.True(t, got.Bars[1].TS.Equal(start.Add(10*time.Minute)))

	last, err := w.LastTimestamp(ctx, "INFY", "5m")
	require.NoError(t, err)
	assert.True(t, last.Equal(start.Add(10*time.Minute)))
}

func TestSaveBars_ReplacesExisting(t *testing.T) {
	ctx := context.Background()
	w, r := openPair(t)
	start := time.Date(2026, 3, 2, 3, 45, 0, 0, time.UTC)

	require.NoError(t, w.SaveBars(ctx, "5m", model.Series{Symbol: "TCS", Bars: bars(start, 10, 11)}))
	require.NoError(t, w.SaveBars(ctx, "5m", model.Series{Symbol: "TCS", Bars: bars(start.Add(5*time.Minute), 99, 12)}))

	got, err := r.ReadBars(ctx, "TCS", "5m", time.Time{})
	require.NoError(t, err)
	require.Len(t, got.Bars, 3)
	assert.Equal(t, []float64{10, 99, 12}, []float64{got.Bars[0].Close, got.Bars[1].Close, got.Bars[2].Close})
}

func TestReadBars_IntervalsAreSeparate(t *testing.T) {
	ctx := context.Background()
	w, r := openPair(t)
	start := time.Date(2026, 3, 2, 3, 45, 0, 0, time.UTC)

	require.NoError(t, w.SaveBars(ctx, "5m", model.Series{Symbol: "SBIN", Bars: bars(start, 1, 2)}))
	require.NoError(t, w.SaveBars(ctx, "15m", model.Series{Symbol: "HDFCBANK", Bars: bars(start, 3)}))

	got, err := r.ReadBars(ctx, "SBIN", "15m", time.Time{})
	require.NoError(t, err)
	assert.True(t, got.Empty())

	syms, err := r.Symbols(ctx, "5m")
	require.NoError(t, err)
	assert.Equal(t, []string{"SBIN"}, syms)

	ts, err := w.LastTimestamp(ctx, "NOPE", "5m")
	require.NoError(t, err)
	assert.True(t, ts.IsZero())
}
