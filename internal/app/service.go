// Package app wires the scanner service: provider chain, stores, metrics,
// HTTP API, WebSocket hub and background scheduler.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"intraday-scanner/config"
	"intraday-scanner/internal/gateway"
	"intraday-scanner/internal/metrics"
	"intraday-scanner/internal/model"
	"intraday-scanner/internal/notification"
	"intraday-scanner/internal/provider"
	"intraday-scanner/internal/scanner"
	"intraday-scanner/internal/scheduler"
	redisstore "intraday-scanner/internal/store/redis"
	sqlitestore "intraday-scanner/internal/store/sqlite"
)

// Service is the top-level orchestrator for the scanner.
// It wires all dependencies, manages lifecycle, and coordinates goroutines.
type Service struct {
	cfg *config.Config

	reg    *prometheus.Registry
	prom   *metrics.Metrics
	health *metrics.HealthStatus

	provider model.Provider
	breaker  *provider.CircuitBreaker
	cache    *redisstore.Cache
	bars     *Bars

	scanner  *scanner.Scanner
	lookup   *scanner.Lookup
	hub      *gateway.Hub
	notifier *notification.Multi
}

// Bars is the optional SQLite bar archive.
type Bars struct {
	Writer *sqlitestore.Writer
	Reader *sqlitestore.Reader
}

// OpenBars opens the archive at path, creating its directory.
func OpenBars(path string) (*Bars, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: path})
	if err != nil {
		return nil, err
	}
	r, err := sqlitestore.NewReader(path)
	if err != nil {
		w.Close()
		return nil, err
	}
	return &Bars{Writer: w, Reader: r}, nil
}

// Close closes both connections.
func (b *Bars) Close() {
	b.Reader.Close()
	b.Writer.Close()
}

// BuildProvider assembles the provider chain for cfg:
// source → (archive write-through) → circuit breaker.
// bars may be nil unless cfg.Provider is "sqlite".
func BuildProvider(cfg *config.Config, bars *Bars) (model.Provider, *provider.CircuitBreaker, error) {
	var base model.Provider
	switch cfg.Provider {
	case "yahoo":
		base = provider.NewYahoo(cfg.YahooProxy)
	case "smartapi":
		base = provider.NewSmartAPI(provider.SmartAPIConfig{
			APIKey:     cfg.AngelAPIKey,
			ClientCode: cfg.AngelClientCode,
			Password:   cfg.AngelPassword,
			TOTPSecret: cfg.AngelTOTPSecret,
		})
	case "sqlite":
		if bars == nil {
			return nil, nil, errors.New("provider sqlite needs the bar archive")
		}
		base = provider.NewReplay(bars.Reader)
	default:
		return nil, nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	if bars != nil && cfg.Provider != "sqlite" {
		base = provider.NewArchive(base, bars.Writer)
	}

	cb := provider.NewCircuitBreaker(cfg.BreakerMaxFailures, cfg.BreakerReset())
	return provider.NewGuarded(base, cb), cb, nil
}

// ScannerConfig maps the service config onto the scan pipeline.
func ScannerConfig(cfg *config.Config) scanner.Config {
	return scanner.Config{
		Workers:      cfg.Workers,
		FetchTimeout: cfg.FetchTimeout(),
		Lookback:     cfg.Lookback,
		Interval:     cfg.Interval,
	}
}

// New creates a Service from cfg. It opens the configured stores; a store
// that is configured but unreachable is an error.
func New(cfg *config.Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	svc := &Service{cfg: cfg, reg: prometheus.NewRegistry()}
	svc.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	svc.prom = metrics.NewMetrics(svc.reg)
	svc.health = metrics.NewHealthStatus(cfg.Provider)

	var err error
	if cfg.SQLitePath != "" {
		if svc.bars, err = OpenBars(cfg.SQLitePath); err != nil {
			return nil, fmt.Errorf("bar archive: %w", err)
		}
	}
	if cfg.RedisAddr != "" {
		svc.cache, err = redisstore.New(redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			TTL:      cfg.ScanCacheTTL(),
		})
		if err != nil {
			svc.Close()
			return nil, fmt.Errorf("scan cache: %w", err)
		}
	}

	svc.provider, svc.breaker, err = BuildProvider(cfg, svc.bars)
	if err != nil {
		svc.Close()
		return nil, err
	}
	svc.breaker.OnStateChange = func(from, to provider.State) {
		svc.prom.BreakerState.Set(float64(to))
		if to == provider.StateOpen {
			svc.prom.BreakerTrips.Inc()
		}
		slog.Warn("provider circuit breaker", "provider", cfg.Provider, "from", from.String(), "to", to.String())
	}

	scfg := ScannerConfig(cfg)
	svc.scanner = scanner.New(scfg, svc.provider, cfg.Symbols,
		scanner.WithMetrics(svc.prom),
		scanner.WithLogger(slog.Default()),
	)
	svc.lookup = scanner.NewLookup(scfg, svc.provider)
	svc.hub = gateway.NewHub(svc.prom)
	svc.notifier = svc.buildNotifier()

	slog.Info("scanner configured",
		"provider", cfg.Provider,
		"symbols", len(cfg.Symbols),
		"workers", cfg.Workers,
		"redis", cfg.RedisAddr != "",
		"sqlite", cfg.SQLitePath != "",
		"cron", cfg.ScanCron,
	)
	return svc, nil
}

func (svc *Service) buildNotifier() *notification.Multi {
	ns := []notification.Notifier{notification.NewLogNotifier()}
	if svc.cfg.TelegramToken != "" {
		ns = append(ns, notification.NewTelegramNotifier(svc.cfg.TelegramToken, svc.cfg.TelegramChatID))
	}
	if svc.cfg.WebhookURL != "" {
		ns = append(ns, notification.NewWebhookNotifier(svc.cfg.WebhookURL))
	}
	return notification.NewMulti(func(name string, err error) {
		if err == nil {
			svc.prom.AlertsTotal.WithLabelValues(name).Inc()
		}
	}, ns...)
}

// Handler returns the HTTP API.
func (svc *Service) Handler() http.Handler {
	var cache model.ScanCache
	if svc.cache != nil {
		cache = svc.cache
	}
	return gateway.NewServer(gateway.Deps{
		Scanner:   svc.scanner,
		Lookup:    svc.lookup,
		Cache:     cache,
		Metrics:   svc.prom,
		Health:    svc.health,
		Gatherer:  svc.reg,
		Hub:       svc.hub,
		Backend:   svc.provider.Name(),
		StaticDir: svc.cfg.StaticDir,
	}).Handler()
}

// Scanner exposes the scan pipeline.
func (svc *Service) Scanner() *scanner.Scanner { return svc.scanner }

func (svc *Service) redisClient() *goredis.Client {
	if svc.cache == nil {
		return nil
	}
	return svc.cache.Client()
}

func (svc *Service) sqlDB() *sql.DB {
	if svc.bars == nil {
		return nil
	}
	return svc.bars.Writer.DB()
}

// newScheduler builds the background scanner. Results go through Redis
// pub/sub when a cache is configured so every instance's hub sees them.
func (svc *Service) newScheduler(ctx context.Context) *scheduler.Scheduler {
	var pub scheduler.Publisher = svc.hub
	opts := []scheduler.Option{scheduler.WithNotifier(svc.notifier)}
	if svc.cache != nil {
		pub = svc.cache
		opts = append(opts, scheduler.WithCache(svc.cache))
	}
	opts = append(opts, scheduler.WithPublisher(lastScan{pub, svc.health}))
	return scheduler.New(ctx, svc.cfg.ScanCron, model.ParseRiskTier(svc.cfg.BackgroundRisk), svc.scanner, opts...)
}

// lastScan records the scan time on the health status before forwarding.
type lastScan struct {
	next   scheduler.Publisher
	health *metrics.HealthStatus
}

func (l lastScan) Publish(ctx context.Context, res model.ScanResult) error {
	l.health.SetLastScan(res.GeneratedAt)
	return l.next.Publish(ctx, res)
}

// Run starts all subsystems and blocks until ctx is cancelled or the HTTP
// server fails.
func (svc *Service) Run(ctx context.Context) error {
	slog.Info("starting intraday scanner", "addr", svc.cfg.HTTPAddr)

	svc.health.StartLivenessChecker(ctx, svc.redisClient(), svc.sqlDB(), 15*time.Second)
	go svc.hub.StartMarketBroadcast(ctx, 30*time.Second)

	if svc.cache != nil {
		if err := svc.cache.Subscribe(ctx, func(res model.ScanResult) {
			svc.hub.Publish(ctx, res)
		}); err != nil {
			return err
		}
	}

	var sched *scheduler.Scheduler
	if svc.cfg.ScanCron != "" {
		sched = svc.newScheduler(ctx)
		if err := sched.Start(); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              svc.cfg.HTTPAddr,
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("serving", "addr", svc.cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		slog.Error("http server failed", "err", runErr)
	}

	// ---- Graceful shutdown ----
	slog.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("http shutdown", "err", err)
	}
	if sched != nil {
		sched.Stop()
	}
	svc.Close()
	slog.Info("shutdown complete")
	return runErr
}

// Close ends the provider session and releases stores. It is safe to call
// on a partially built Service.
func (svc *Service) Close() {
	if svc.provider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := provider.CloseSession(ctx, svc.provider); err != nil {
			slog.Warn("provider logout failed", "err", err)
		}
		cancel()
	}
	if svc.cache != nil {
		svc.cache.Close()
		svc.cache = nil
	}
	if svc.bars != nil {
		svc.bars.Close()
		svc.bars = nil
	}
}
