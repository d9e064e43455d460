package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intraday-scanner/config"
	"intraday-scanner/internal/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Symbols = []string{"TCS", "INFY"}
	return cfg
}

func seedBars(t *testing.T, bars *Bars, symbol string, n int) {
	t.Helper()
	start := time.Date(2026, 3, 2, 3, 45, 0, 0, time.UTC)
	s := model.Series{Symbol: symbol}
	for i := 0; i < n; i++ {
		c := 100 + float64(i%3)
		s.Bars = append(s.Bars, model.Bar{TS: start.Add(time.Duration(i) * 5 * time.Minute), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000})
	}
	require.NoError(t, bars.Writer.SaveBars(context.Background(), "5m", s))
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workers = 0
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNew_UnreachableRedisFails(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig(t)
	cfg.RedisAddr = addr
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestService_ReplayProviderEndToEnd(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Provider = "sqlite"
	cfg.SQLitePath = filepath.Join(t.TempDir(), "data", "bars.db")
	cfg.RedisAddr = mr.Addr()

	svc, err := New(cfg)
	require.NoError(t, err)
	defer svc.Close()
	seedBars(t, svc.bars, "TCS", 60)

	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	var h map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	resp.Body.Close()
	assert.Equal(t, "sqlite (Go)", h["backend"])

	resp, err = http.Get(srv.URL + "/api/stock/TCS")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/stock/INFY")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/scan?risk=HIGH")
	require.NoError(t, err)
	resp.Body.Close()
	assert.True(t, mr.Exists("scan:HIGH"))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBuildProvider(t *testing.T) {
	cfg := testConfig(t)

	p, cb, err := BuildProvider(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "yahoo", p.Name())
	assert.NotNil(t, cb)

	cfg.Provider = "sqlite"
	_, _, err = BuildProvider(cfg, nil)
	assert.Error(t, err)

	cfg.Provider = "carrier-pigeon"
	_, _, err = BuildProvider(cfg, nil)
	assert.Error(t, err)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()

	cfg := testConfig(t)
	cfg.HTTPAddr = addr
	cfg.ScanCron = "0 */5 * * * *"
	svc, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return")
	}
}
