// Package scheduler runs background scans on a cron spec while the NSE
// session is open, keeps the scan cache warm, pushes results to live
// subscribers and alerts on new signals.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"intraday-scanner/internal/markethours"
	"intraday-scanner/internal/model"
	"intraday-scanner/internal/notification"
)

// Scanner runs one scan for a tier.
type Scanner interface {
	Scan(ctx context.Context, tier model.RiskTier) model.ScanResult
}

// Publisher receives every background scan result.
type Publisher interface {
	Publish(ctx context.Context, res model.ScanResult) error
}

// Scheduler manages the background scan job.
type Scheduler struct {
	cron    *cron.Cron
	spec    string
	tier    model.RiskTier
	scanner Scanner

	cache     model.ScanCache
	publisher Publisher
	notifier  notification.Notifier
	now       func() time.Time

	mu      sync.Mutex
	alerted map[string]time.Time // symbol → session date of the last alert
	running bool

	ctx context.Context
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithCache stores each background result so API reads hit a warm cache.
func WithCache(c model.ScanCache) Option { return func(s *Scheduler) { s.cache = c } }

// WithPublisher forwards each background result.
func WithPublisher(p Publisher) Option { return func(s *Scheduler) { s.publisher = p } }

// WithNotifier alerts on signals not yet seen in the current session.
func WithNotifier(n notification.Notifier) Option { return func(s *Scheduler) { s.notifier = n } }

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }

// New creates a scheduler that scans tier on spec (six-field cron with seconds,
// e.g. "0 */5 * * * *"). Jobs run with ctx and stop when it is cancelled.
func New(ctx context.Context, spec string, tier model.RiskTier, sc Scanner, opts ...Option) *Scheduler {
	s := &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithLocation(markethours.IST)),
		spec:    spec,
		tier:    tier,
		scanner: sc,
		now:     time.Now,
		alerted: make(map[string]time.Time),
		ctx:     ctx,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start registers the scan job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.tick); err != nil {
		return fmt.Errorf("register scan job %q: %w", s.spec, err)
	}
	s.cron.Start()
	slog.Info("scheduler started", "spec", s.spec, "risk", s.tier)
	return nil
}

// Stop stops the cron loop and waits for a running scan to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("scheduler stopped")
}

func (s *Scheduler) tick() {
	s.RunOnce(s.ctx)
}

// RunOnce performs one background scan. It is a no-op outside market hours
// and when a previous scan is still running. ok reports whether a scan ran.
func (s *Scheduler) RunOnce(ctx context.Context) (res model.ScanResult, ok bool) {
	now := s.now()
	if !markethours.IsMarketOpen(now) {
		slog.Debug("market closed, skipping background scan", "status", markethours.StatusString(now))
		return model.ScanResult{}, false
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		slog.Warn("previous background scan still running, skipping")
		return model.ScanResult{}, false
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	res = s.scanner.Scan(ctx, s.tier)

	if s.cache != nil {
		if err := s.cache.Set(ctx, res); err != nil {
			slog.Warn("scan cache write failed", "risk", s.tier, "err", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, res); err != nil {
			slog.Warn("publish scan result failed", "risk", s.tier, "err", err)
		}
	}
	if s.notifier != nil {
		s.alert(ctx, now, res.Signals)
	}
	return res, true
}

// alert sends each signal whose symbol has not been alerted in this session.
func (s *Scheduler) alert(ctx context.Context, now time.Time, signals []model.Signal) {
	session := markethours.SessionDate(now)

	var fresh []model.Signal
	s.mu.Lock()
	for sym, day := range s.alerted {
		if !day.Equal(session) {
			delete(s.alerted, sym)
		}
	}
	for _, sig := range signals {
		if _, seen := s.alerted[sig.Symbol]; seen {
			continue
		}
		s.alerted[sig.Symbol] = session
		fresh = append(fresh, sig)
	}
	s.mu.Unlock()

	for _, sig := range fresh {
		if err := s.notifier.Send(ctx, notification.SignalAlert(sig)); err != nil {
			slog.Warn("signal alert failed", "symbol", sig.Symbol, "err", err)
		}
	}
}
