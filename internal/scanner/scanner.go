// Package scanner fans the per-symbol signal pipeline out over the symbol
// universe and reduces the results into one ranked ScanResult.
//
// Each symbol runs fetch → indicators → evaluate → price on one worker.
// Failures stay inside the symbol's Outcome; a scan never aborts because
// one symbol misbehaved.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"intraday-scanner/internal/indicator"
	"intraday-scanner/internal/logger"
	"intraday-scanner/internal/metrics"
	"intraday-scanner/internal/model"
	"intraday-scanner/internal/strategy"
)

const (
	defaultWorkers      = 5
	defaultFetchTimeout = 10 * time.Second
	defaultLookback     = "5d"
	defaultInterval     = "5m"
)

// Config controls pool size and how much history is fetched per symbol.
type Config struct {
	Workers      int
	FetchTimeout time.Duration
	Lookback     string
	Interval     string
}

// DefaultConfig returns 5 workers, a 10s fetch timeout and 5 days of 5m bars.
func DefaultConfig() Config {
	return Config{
		Workers:      defaultWorkers,
		FetchTimeout: defaultFetchTimeout,
		Lookback:     defaultLookback,
		Interval:     defaultInterval,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	if c.Lookback == "" {
		c.Lookback = d.Lookback
	}
	if c.Interval == "" {
		c.Interval = d.Interval
	}
	return c
}

// SkipReason says why a symbol produced no signal.
type SkipReason string

const (
	SkipNone          SkipReason = ""
	SkipNoData        SkipReason = "no_data"
	SkipShortSeries   SkipReason = "short_series"
	SkipWarmup        SkipReason = "warmup"
	SkipNoSignal      SkipReason = "no_signal"
	SkipProviderError SkipReason = "provider_error"
	SkipPanic         SkipReason = "panic"
	SkipCancelled     SkipReason = "cancelled"
)

// Outcome is one symbol's pipeline result: a Signal, or the reason there is none.
type Outcome struct {
	Symbol string
	Signal *model.Signal
	Skip   SkipReason
	Err    error
}

// Failed reports whether the outcome counts as a per-symbol failure.
func (o Outcome) Failed() bool {
	return o.Skip == SkipProviderError || o.Skip == SkipPanic
}

func (o Outcome) label() string {
	if o.Signal != nil {
		return "signal"
	}
	return string(o.Skip)
}

// Scanner runs the signal pipeline across a fixed symbol universe.
type Scanner struct {
	cfg      Config
	provider model.Provider
	universe []string
	prom     *metrics.Metrics // may be nil
	log      *slog.Logger
	now      func() time.Time
}

// Option customizes a Scanner.
type Option func(*Scanner)

// WithMetrics records scan metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scanner) { s.prom = m }
}

// WithLogger replaces the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) { s.log = l }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

// New creates a Scanner over universe. Symbols are scanned and tie-ranked
// in the order given.
func New(cfg Config, p model.Provider, universe []string, opts ...Option) *Scanner {
	if p == nil {
		panic("scanner: provider must not be nil")
	}
	s := &Scanner{
		cfg:      cfg.withDefaults(),
		provider: p,
		universe: append([]string(nil), universe...),
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Universe returns the configured symbols.
func (s *Scanner) Universe() []string {
	return append([]string(nil), s.universe...)
}

// Provider returns the data source the scanner reads from.
func (s *Scanner) Provider() model.Provider { return s.provider }

// Scan runs one scan for tier and returns signals ranked by confidence,
// highest first; equal confidences keep universe order. An unrecognized
// tier qualifies nothing and is not an error.
func (s *Scanner) Scan(ctx context.Context, tier model.RiskTier) model.ScanResult {
	start := s.now()
	res := model.ScanResult{Risk: tier, Signals: []model.Signal{}, GeneratedAt: start}

	if !tier.Known() {
		s.log.Debug("unknown risk tier, nothing qualifies", "risk", string(tier))
		return res
	}

	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID("scan-"+string(tier), start))
	outcomes := s.Outcomes(ctx, tier)

	for _, o := range outcomes {
		res.Scanned++
		if o.Failed() {
			res.Failed++
		}
		if o.Signal != nil {
			res.Signals = append(res.Signals, *o.Signal)
		}
	}
	Rank(res.Signals)

	elapsed := time.Since(start)
	if s.prom != nil {
		s.prom.ScansTotal.WithLabelValues(string(tier)).Inc()
		s.prom.ScanDur.Observe(elapsed.Seconds())
		s.prom.SignalsTotal.WithLabelValues(string(tier)).Add(float64(len(res.Signals)))
	}
	s.log.Info("scan complete",
		append(logger.LogWithTrace(ctx),
			"risk", string(tier),
			"scanned", res.Scanned,
			"signals", len(res.Signals),
			"failed", res.Failed,
			"duration", elapsed.Round(time.Millisecond).String(),
		)...)
	return res
}

// Rank sorts signals by confidence, highest first. The sort is stable.
func Rank(signals []model.Signal) {
	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Confidence > signals[j].Confidence
	})
}

// Outcomes runs every symbol's pipeline on the worker pool and returns the
// outcomes in universe order. It returns once every pipeline has finished.
func (s *Scanner) Outcomes(ctx context.Context, tier model.RiskTier) []Outcome {
	type indexed struct {
		idx int
		out Outcome
	}

	n := len(s.universe)
	jobs := make(chan int)
	results := make(chan indexed, n)

	workers := s.cfg.Workers
	if workers > n {
		workers = n
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results <- indexed{idx, s.runSafe(ctx, s.universe[idx], tier)}
			}
		}()
	}

	// Feed until done or cancelled; unsent symbols are marked cancelled below.
	sent := 0
feed:
	for ; sent < n; sent++ {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- sent:
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	outcomes := make([]Outcome, n)
	for r := range results {
		outcomes[r.idx] = r.out
	}
	for i := sent; i < n; i++ {
		outcomes[i] = Outcome{Symbol: s.universe[i], Skip: SkipCancelled, Err: ctx.Err()}
	}
	return outcomes
}

// runSafe runs one pipeline and converts a panic into a failed Outcome.
func (s *Scanner) runSafe(ctx context.Context, symbol string, tier model.RiskTier) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Symbol: symbol, Skip: SkipPanic, Err: fmt.Errorf("panic: %v", r)}
			s.log.Error("pipeline panic", append(logger.LogWithTrace(ctx), "symbol", symbol, "panic", r)...)
		}
		if s.prom != nil {
			s.prom.SymbolsTotal.WithLabelValues(out.label()).Inc()
		}
	}()
	return s.run(ctx, symbol, tier)
}

func (s *Scanner) run(ctx context.Context, symbol string, tier model.RiskTier) Outcome {
	series, err := s.fetch(ctx, symbol)
	if err != nil {
		if errors.Is(err, model.ErrNoData) {
			return Outcome{Symbol: symbol, Skip: SkipNoData}
		}
		s.log.Warn("fetch failed", append(logger.LogWithTrace(ctx), "symbol", symbol, "err", err)...)
		return Outcome{Symbol: symbol, Skip: SkipProviderError, Err: err}
	}
	return Evaluate(symbol, series, tier, s.now())
}

func (s *Scanner) fetch(ctx context.Context, symbol string) (model.Series, error) {
	fctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	series, err := s.provider.FetchHistory(fctx, symbol, s.cfg.Lookback, s.cfg.Interval)
	if s.prom != nil {
		s.prom.FetchDur.WithLabelValues(s.provider.Name()).Observe(time.Since(start).Seconds())
	}
	return series, err
}

// Evaluate runs the pure part of the pipeline on an already fetched series.
func Evaluate(symbol string, series model.Series, tier model.RiskTier, now time.Time) Outcome {
	if series.Empty() {
		return Outcome{Symbol: symbol, Skip: SkipNoData}
	}
	if series.Len() < model.MinBars {
		return Outcome{Symbol: symbol, Skip: SkipShortSeries}
	}

	last, _ := series.Last()
	snap, _ := indicator.Latest(series.Bars)
	in := strategy.InputsAt(last, snap)

	d := strategy.Evaluate(in, tier)
	if !d.Qualifies {
		if d.Reason == strategy.ReasonWarmup {
			return Outcome{Symbol: symbol, Skip: SkipWarmup}
		}
		return Outcome{Symbol: symbol, Skip: SkipNoSignal}
	}

	sig := strategy.BuildSignal(symbol, in, d, tier, now)
	return Outcome{Symbol: symbol, Signal: &sig}
}
