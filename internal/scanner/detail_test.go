package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intraday-scanner/internal/model"
)

func twoSessions() model.Series {
	utc := func(d, h, m int) time.Time { return time.Date(2026, 3, d, h, m, 0, 0, time.UTC) }
	return model.Series{Symbol: "TCS", Bars: []model.Bar{
		// Mar 2 IST session
		{TS: utc(2, 3, 45), Close: 100},
		{TS: utc(2, 9, 55), Close: 101},
		// Mar 3 IST session; 19:00 UTC on Mar 2 would already be Mar 3 IST
		{TS: utc(3, 3, 45), Close: 102},
		{TS: utc(3, 3, 50), Close: 99},
		{TS: utc(3, 3, 55), Close: 104},
	}}
}

func TestBuildDetail(t *testing.T) {
	d, err := BuildDetail("tcs.ns", "fake", twoSessions())
	require.NoError(t, err)

	assert.Equal(t, "TCS", d.Symbol)
	assert.Equal(t, "fake", d.Source)
	assert.Equal(t, 104.0, d.LTP)
	assert.Equal(t, 99.0, d.PrevClose)
	assert.InDelta(t, 5.0, d.Change, 1e-9)
	assert.InDelta(t, 5.0505, d.ChangePct, 1e-4)

	require.Len(t, d.Chart, 3)
	assert.Equal(t, 102.0, d.Chart[0].Price)
	assert.Equal(t, 104.0, d.Chart[2].Price)
}

func TestBuildDetail_SessionBoundaryIsIST(t *testing.T) {
	// 18:45 UTC on Mar 2 is 00:15 IST on Mar 3, the same session as the last bar.
	s := model.Series{Bars: []model.Bar{
		{TS: time.Date(2026, 3, 2, 18, 15, 0, 0, time.UTC), Close: 1},
		{TS: time.Date(2026, 3, 2, 18, 45, 0, 0, time.UTC), Close: 2},
		{TS: time.Date(2026, 3, 3, 4, 0, 0, 0, time.UTC), Close: 3},
	}}
	d, err := BuildDetail("X", "fake", s)
	require.NoError(t, err)
	require.Len(t, d.Chart, 2)
	assert.Equal(t, 2.0, d.Chart[0].Price)
}

func TestBuildDetail_SingleBar(t *testing.T) {
	s := model.Series{Bars: []model.Bar{{TS: day1, Close: 250}}}
	d, err := BuildDetail("INFY", "fake", s)
	require.NoError(t, err)
	assert.Equal(t, 250.0, d.PrevClose)
	assert.Zero(t, d.Change)
	assert.Zero(t, d.ChangePct)
	assert.Len(t, d.Chart, 1)
}

func TestLookup_NotFoundAndInternal(t *testing.T) {
	p := newFake()
	p.series["EMPTY"] = model.Series{}
	p.errs["GONE"] = model.ErrNoData
	p.errs["BROKEN"] = errors.New("upstream 502")

	l := NewLookup(DefaultConfig(), p)

	_, err := l.Detail(context.Background(), "EMPTY")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.Detail(context.Background(), "GONE")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.Detail(context.Background(), "BROKEN")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.ErrorContains(t, err, "upstream 502")
}

func TestLookup_StripsSuffixAndIsIdempotent(t *testing.T) {
	p := newFake()
	p.series["TCS"] = twoSessions()
	l := NewLookup(DefaultConfig(), p)

	a, err := l.Detail(context.Background(), "tcs.NS")
	require.NoError(t, err)
	b, err := l.Detail(context.Background(), "TCS")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, "TCS|5d|5m", p.calls[0])
}
