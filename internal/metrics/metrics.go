package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the scanner.
type Metrics struct {
	ScansTotal   *prometheus.CounterVec // labels: risk
	ScanDur      prometheus.Histogram
	SymbolsTotal *prometheus.CounterVec // labels: outcome
	SignalsTotal *prometheus.CounterVec // labels: risk

	// Provider
	FetchDur *prometheus.HistogramVec // labels: provider

	// Scan result cache
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Circuit breaker around the provider
	BreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	BreakerTrips prometheus.Counter

	// Background scans and alerts
	AlertsTotal *prometheus.CounterVec // labels: notifier
	WSClients   prometheus.Gauge

	// Market session
	MarketState prometheus.Gauge // 0=closed, 1=open
}

// NewMetrics creates all metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ScansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_scans_total",
			Help: "Scans run (by risk tier)",
		}, []string{"risk"}),
		ScanDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_scan_duration_seconds",
			Help:    "Wall time of a full universe scan",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SymbolsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_symbols_total",
			Help: "Per-symbol pipeline outcomes (signal, no_signal, short_series, warmup, provider_error, panic)",
		}, []string{"outcome"}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_signals_total",
			Help: "BUY signals emitted (by risk tier)",
		}, []string{"risk"}),

		FetchDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scanner_provider_fetch_duration_seconds",
			Help:    "Provider history fetch latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_cache_hits_total",
			Help: "Scan requests served from the result cache",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_cache_misses_total",
			Help: "Scan requests that ran a fresh scan",
		}),

		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_provider_circuit_breaker_state",
			Help: "Provider circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		BreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_provider_circuit_breaker_trips_total",
			Help: "Times the provider circuit breaker tripped open",
		}),

		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_alerts_total",
			Help: "Signal alerts delivered (by notifier)",
		}, []string{"notifier"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_ws_clients",
			Help: "Connected WebSocket subscribers",
		}),

		MarketState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_market_state",
			Help: "Market session state (0=closed, 1=open)",
		}),
	}

	reg.MustRegister(
		m.ScansTotal,
		m.ScanDur,
		m.SymbolsTotal,
		m.SignalsTotal,
		m.FetchDur,
		m.CacheHits,
		m.CacheMisses,
		m.BreakerState,
		m.BreakerTrips,
		m.AlertsTotal,
		m.WSClients,
		m.MarketState,
	)

	return m
}

// HealthStatus tracks dependency liveness for the /healthz endpoint.
type HealthStatus struct {
	mu sync.RWMutex

	Provider       string    `json:"provider"`
	LastScanAt     time.Time `json:"last_scan_at"`
	RedisEnabled   bool      `json:"redis_enabled"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteEnabled  bool      `json:"sqlite_enabled"`
	SQLiteOK       bool      `json:"sqlite_ok"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus(provider string) *HealthStatus {
	return &HealthStatus{
		Provider:  provider,
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetLastScan(t time.Time) {
	h.mu.Lock()
	h.LastScanAt = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisEnabled = true
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the bar archive and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteEnabled = true
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// Probe runs one round of dependency checks. Nil clients are skipped.
func (h *HealthStatus) Probe(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB) {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if rdb != nil {
		h.CheckRedis(probeCtx, rdb)
	}
	if sqlDB != nil {
		h.CheckSQLite(probeCtx, sqlDB)
	}
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	h.Probe(ctx, rdb, sqlDB)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.Probe(ctx, rdb, sqlDB)
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint. Optional stores only degrade
// health when they are configured and failing.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	redisDown := h.RedisEnabled && !h.RedisConnected
	sqliteDown := h.SQLiteEnabled && !h.SQLiteOK
	if redisDown || sqliteDown {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	lastScan := ""
	if !h.LastScanAt.IsZero() {
		lastScan = h.LastScanAt.Format(time.RFC3339)
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		Provider        string  `json:"provider"`
		LastScanAt      string  `json:"last_scan_at"`
		RedisEnabled    bool    `json:"redis_enabled"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteEnabled   bool    `json:"sqlite_enabled"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		Provider:        h.Provider,
		LastScanAt:      lastScan,
		RedisEnabled:    h.RedisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteEnabled:   h.SQLiteEnabled,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}
