package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intraday-scanner/internal/model"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := New(Config{Addr: mr.Addr(), TTL: ttl})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func sampleResult(tier model.RiskTier) model.ScanResult {
	return model.ScanResult{
		Risk: tier,
		Signals: []model.Signal{{
			Symbol:     "TCS",
			Direction:  model.DirectionBuy,
			Price:      3500.5,
			Confidence: 82,
			Reason:     "Trend + Momentum | RSI: 62",
			Risk:       tier,
		}},
		GeneratedAt: time.Date(2026, 3, 2, 5, 0, 0, 0, time.UTC),
		Scanned:     20,
	}
}

func TestCache_SetGet(t *testing.T) {
	c, mr := newTestCache(t, 30*time.Second)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, model.RiskMedium)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, sampleResult(model.RiskMedium)))
	assert.True(t, mr.Exists("scan:MEDIUM"))
	assert.Equal(t, 30*time.Second, mr.TTL("scan:MEDIUM"))

	got, ok, err := c.Get(ctx, model.RiskMedium)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "TCS", got.Signals[0].Symbol)
	assert.Equal(t, 20, got.Scanned)
	assert.True(t, got.GeneratedAt.Equal(sampleResult(model.RiskMedium).GeneratedAt))

	// tiers are cached independently
	_, ok, _ = c.Get(ctx, model.RiskLow)
	assert.False(t, ok)
}

func TestCache_Expires(t *testing.T) {
	c, mr := newTestCache(t, 30*time.Second)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, sampleResult(model.RiskHigh)))

	mr.FastForward(29 * time.Second)
	_, ok, _ := c.Get(ctx, model.RiskHigh)
	assert.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, _ = c.Get(ctx, model.RiskHigh)
	assert.False(t, ok)
}

func TestCache_CorruptEntryIsMiss(t *testing.T) {
	c, mr := newTestCache(t, 0)
	assert.Equal(t, defaultCacheTTL, c.TTL())
	mr.Set("scan:LOW", "{not json")
	_, ok, err := c.Get(context.Background(), model.RiskLow)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewWithClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), time.Second)
	defer c.Close()
	mr.Close()

	_, _, err := c.Get(context.Background(), model.RiskLow)
	assert.Error(t, err)
}

func TestNew_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err := New(Config{Addr: addr})
	assert.Error(t, err)
}

func TestCache_PublishSubscribe(t *testing.T) {
	c, _ := newTestCache(t, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan model.ScanResult, 1)
	require.NoError(t, c.Subscribe(ctx, func(r model.ScanResult) { got <- r }))
	require.NoError(t, c.Publish(ctx, sampleResult(model.RiskLow)))

	select {
	case r := <-got:
		assert.Equal(t, model.RiskLow, r.Risk)
		assert.Len(t, r.Signals, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}
