package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"

	"intraday-scanner/internal/model"
	"intraday-scanner/pkg/smartconnect"
)

// SmartAPIConfig holds Angel One credentials.
type SmartAPIConfig struct {
	APIKey     string
	ClientCode string
	Password   string // trading PIN
	TOTPSecret string // base32 seed from the Angel One 2FA enrolment
	RootURL    string // optional, for tests
	Exchange   string // default NSE
}

// SmartAPI fetches historical candles from Angel One SmartAPI. It logs in
// lazily on first use with a TOTP generated from the configured secret. When
// the session token expires mid-scan it is refreshed once, with the refresh
// token first and a fresh login as fallback, no matter how many workers saw
// the expiry.
type SmartAPI struct {
	cfg SmartAPIConfig
	sc  *smartconnect.SmartConnect
	now func() time.Time

	mu     sync.Mutex
	gen    uint64            // bumped on every new or refreshed session; 0 = none
	tokens map[string]string // symbol → symboltoken
}

// NewSmartAPI creates the provider. No network calls are made until the first fetch.
func NewSmartAPI(cfg SmartAPIConfig) *SmartAPI {
	if cfg.Exchange == "" {
		cfg.Exchange = "NSE"
	}
	return &SmartAPI{
		cfg:    cfg,
		sc:     smartconnect.New(smartconnect.Config{APIKey: cfg.APIKey, RootURL: cfg.RootURL}),
		now:    time.Now,
		tokens: make(map[string]string),
	}
}

func (s *SmartAPI) Name() string { return "smartapi" }

func (s *SmartAPI) login(ctx context.Context) error {
	code, err := totp.GenerateCode(s.cfg.TOTPSecret, s.now())
	if err != nil {
		return fmt.Errorf("smartapi totp: %w", err)
	}
	if err := s.sc.GenerateSession(ctx, s.cfg.ClientCode, s.cfg.Password, code); err != nil {
		return fmt.Errorf("smartapi: %w", err)
	}
	slog.Info("smartapi session established", "client", s.cfg.ClientCode)
	return nil
}

// session returns the current session generation, logging in if there is none.
func (s *SmartAPI) session(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != 0 {
		return s.gen, nil
	}
	if err := s.login(ctx); err != nil {
		return 0, err
	}
	s.gen++
	return s.gen, nil
}

// refresh replaces the session generation stale after the API rejected its
// token. Callers holding an older generation reuse whatever replaced it.
func (s *SmartAPI) refresh(ctx context.Context, stale uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != stale {
		return s.gen, nil
	}
	if err := s.sc.RenewAccessToken(ctx); err != nil {
		slog.Warn("smartapi token renewal failed, logging in again", "err", err)
		if err := s.login(ctx); err != nil {
			return 0, err
		}
	}
	s.gen++
	return s.gen, nil
}

// Logout terminates the session, if one was established.
func (s *SmartAPI) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == 0 {
		return nil
	}
	s.gen = 0
	if err := s.sc.TerminateSession(ctx); err != nil {
		return fmt.Errorf("smartapi logout: %w", err)
	}
	slog.Info("smartapi session terminated", "client", s.cfg.ClientCode)
	return nil
}

// symbolToken resolves and caches the exchange token for an equity symbol,
// preferring the "-EQ" series.
func (s *SmartAPI) symbolToken(ctx context.Context, symbol string) (string, error) {
	s.mu.Lock()
	tok, ok := s.tokens[symbol]
	s.mu.Unlock()
	if ok {
		return tok, nil
	}

	hits, err := s.sc.SearchScrip(ctx, s.cfg.Exchange, symbol)
	if err != nil {
		return "", err
	}
	for _, h := range hits {
		if strings.EqualFold(h.TradingSymbol, symbol+"-EQ") {
			tok = h.SymbolToken
			break
		}
	}
	if tok == "" {
		for _, h := range hits {
			if strings.EqualFold(h.TradingSymbol, symbol) {
				tok = h.SymbolToken
				break
			}
		}
	}
	if tok == "" {
		return "", fmt.Errorf("smartapi: no scrip for %s: %w", symbol, model.ErrNoData)
	}

	s.mu.Lock()
	s.tokens[symbol] = tok
	s.mu.Unlock()
	return tok, nil
}

func (s *SmartAPI) FetchHistory(ctx context.Context, symbol, lookback, interval string) (model.Series, error) {
	symbol = model.CleanSymbol(symbol)
	iv, ok := smartInterval[interval]
	if !ok {
		return model.Series{}, fmt.Errorf("smartapi: unsupported interval %q", interval)
	}
	now := s.now()
	from, err := windowStart(now, lookback)
	if err != nil {
		return model.Series{}, fmt.Errorf("smartapi: %w", err)
	}

	gen, err := s.session(ctx)
	if err != nil {
		return model.Series{}, err
	}
	candles, err := s.fetch(ctx, symbol, iv, from, now)
	if errors.Is(err, smartconnect.ErrTokenExpired) {
		if _, err = s.refresh(ctx, gen); err == nil {
			candles, err = s.fetch(ctx, symbol, iv, from, now)
		}
	}
	if err != nil {
		return model.Series{}, err
	}
	if len(candles) == 0 {
		return model.Series{}, fmt.Errorf("smartapi %s: %w", symbol, model.ErrNoData)
	}

	bars := make([]model.Bar, len(candles))
	for i, c := range candles {
		bars[i] = model.Bar{TS: c.TS.UTC(), Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume}
	}
	return model.Series{Symbol: symbol, Bars: bars}, nil
}

func (s *SmartAPI) fetch(ctx context.Context, symbol, interval string, from, to time.Time) ([]smartconnect.Candle, error) {
	tok, err := s.symbolToken(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return s.sc.GetCandleData(ctx, smartconnect.CandleParams{
		Exchange:    s.cfg.Exchange,
		SymbolToken: tok,
		Interval:    interval,
		From:        from,
		To:          to,
	})
}

// CloseSession logs out of any upstream session held by p or by a provider
// it decorates. Providers without a session are left alone.
func CloseSession(ctx context.Context, p model.Provider) error {
	for {
		switch v := p.(type) {
		case *SmartAPI:
			return v.Logout(ctx)
		case *Guarded:
			p = v.inner
		case *Archive:
			p = v.inner
		default:
			return nil
		}
	}
}
