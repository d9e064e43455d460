// Package smartconnect is a small client for the Angel One SmartAPI REST
// endpoints the scanner needs: password+TOTP login, token refresh, logout,
// scrip search and historical candles.
//
// Usage example:
//
//	sc := smartconnect.New(smartconnect.Config{APIKey: "your_api_key"})
//	if err := sc.GenerateSession(ctx, "CLIENTID", "PIN", totpCode); err != nil { ... }
//	candles, err := sc.GetCandleData(ctx, smartconnect.CandleParams{
//	    Exchange: "NSE", SymbolToken: "2885", Interval: "FIVE_MINUTE",
//	    From: from, To: to,
//	})
package smartconnect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// ---- Config & client ----

type Config struct {
	APIKey       string
	AccessToken  string
	RefreshToken string

	RootURL    string        // default: https://apiconnect.angelone.in
	Timeout    time.Duration // default: 7s
	HTTPClient *http.Client  // optional; overrides Timeout
	Debug      bool

	Accept         string // default: application/json
	UserType       string // default: USER
	SourceID       string // default: WEB
	ClientPublicIP string // default: 127.0.0.1
	ClientLocalIP  string // default: 127.0.0.1
	ClientMAC      string // default: 00:00:00:00:00:00
}

type SmartConnect struct {
	apiKey string

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	feedToken    string
	userID       string

	rootURL    string
	debug      bool
	httpClient *http.Client

	// header fields
	accept   string
	userType string
	sourceID string

	clientPublicIP string
	clientLocalIP  string
	clientMAC      string

	// Optional callback for 403 TokenException
	SessionExpiryHook func()
}

const defaultRoot = "https://apiconnect.angelone.in"

// ErrTokenExpired is returned when the API rejects the session token.
var ErrTokenExpired = errors.New("smartconnect: session token expired")

var routes = map[string]string{
	"api.login":        "/rest/auth/angelbroking/user/v1/loginByPassword",
	"api.logout":       "/rest/secure/angelbroking/user/v1/logout",
	"api.token":        "/rest/auth/angelbroking/jwt/v1/generateTokens",
	"api.candle.data":  "/rest/secure/angelbroking/historical/v1/getCandleData",
	"api.search.scrip": "/rest/secure/angelbroking/order/v1/searchScrip",
}

// New creates a client. It performs no network calls.
func New(cfg Config) *SmartConnect {
	if cfg.RootURL == "" {
		cfg.RootURL = defaultRoot
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 7 * time.Second
	}
	if cfg.Accept == "" {
		cfg.Accept = "application/json"
	}
	if cfg.UserType == "" {
		cfg.UserType = "USER"
	}
	if cfg.SourceID == "" {
		cfg.SourceID = "WEB"
	}
	cfg.ClientPublicIP = firstNonEmpty(cfg.ClientPublicIP, "127.0.0.1")
	cfg.ClientLocalIP = firstNonEmpty(cfg.ClientLocalIP, "127.0.0.1")
	cfg.ClientMAC = firstNonEmpty(cfg.ClientMAC, "00:00:00:00:00:00")

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &SmartConnect{
		apiKey:         cfg.APIKey,
		accessToken:    cfg.AccessToken,
		refreshToken:   cfg.RefreshToken,
		rootURL:        strings.TrimRight(cfg.RootURL, "/"),
		debug:          cfg.Debug,
		httpClient:     client,
		accept:         cfg.Accept,
		userType:       cfg.UserType,
		sourceID:       cfg.SourceID,
		clientPublicIP: cfg.ClientPublicIP,
		clientLocalIP:  cfg.ClientLocalIP,
		clientMAC:      cfg.ClientMAC,
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// ---- Helpers ----

func (sc *SmartConnect) requestHeaders() http.Header {
	h := http.Header{}
	h.Set("Content-Type", sc.accept)
	h.Set("Accept", sc.accept)
	h.Set("X-ClientLocalIP", sc.clientLocalIP)
	h.Set("X-ClientPublicIP", sc.clientPublicIP)
	h.Set("X-MACAddress", sc.clientMAC)
	h.Set("X-PrivateKey", sc.apiKey)
	h.Set("X-UserType", sc.userType)
	h.Set("X-SourceID", sc.sourceID)
	if tok := sc.AccessToken(); tok != "" {
		h.Set("Authorization", "Bearer "+tok)
	}
	return h
}

func (sc *SmartConnect) buildURL(route string) (string, error) {
	uri, ok := routes[route]
	if !ok {
		return "", fmt.Errorf("unknown route: %s", route)
	}
	return sc.rootURL + uri, nil
}

// post sends a JSON body to route and returns the parsed envelope.
// API-level failures ({"status": false} or an error_type) come back as errors.
func (sc *SmartConnect) post(ctx context.Context, route string, params map[string]any) (gjson.Result, error) {
	fullURL, err := sc.buildURL(route)
	if err != nil {
		return gjson.Result{}, err
	}
	if params == nil {
		params = map[string]any{}
	}
	b, err := json.Marshal(params)
	if err != nil {
		return gjson.Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(b))
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header = sc.requestHeaders()

	if sc.debug {
		slog.Debug("smartconnect request", "route", route, "url", fullURL)
	}

	resp, err := sc.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s: %w", route, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, err
	}

	if sc.debug {
		slog.Debug("smartconnect response", "route", route, "code", resp.StatusCode, "bytes", len(raw))
	}

	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fmt.Errorf("%s: couldn't parse JSON response (HTTP %d)", route, resp.StatusCode)
	}
	out := gjson.ParseBytes(raw)

	// Handle API error style: {"error_type": "TokenException", "message": "..."}
	if et := out.Get("error_type").String(); et != "" {
		if et == "TokenException" {
			if sc.SessionExpiryHook != nil && resp.StatusCode == http.StatusForbidden {
				sc.SessionExpiryHook()
			}
			return out, fmt.Errorf("%w: %s", ErrTokenExpired, out.Get("message").String())
		}
		return out, fmt.Errorf("%s: %s", et, out.Get("message").String())
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return out, fmt.Errorf("%w: HTTP %d", ErrTokenExpired, resp.StatusCode)
	}
	if st := out.Get("status"); st.Exists() && !st.Bool() {
		return out, fmt.Errorf("%s failed: %s (%s)", route, out.Get("message").String(), out.Get("errorcode").String())
	}
	if resp.StatusCode >= 400 {
		return out, fmt.Errorf("%s: HTTP %d", route, resp.StatusCode)
	}
	return out, nil
}

// ---- Setters/Getters ----

func (sc *SmartConnect) AccessToken() string {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.accessToken
}

func (sc *SmartConnect) UserID() string {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.userID
}

func (sc *SmartConnect) setTokens(jwt, refresh, feed string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if jwt != "" {
		sc.accessToken = jwt
	}
	if refresh != "" {
		sc.refreshToken = refresh
	}
	if feed != "" {
		sc.feedToken = feed
	}
}

// ---- API Methods ----

// GenerateSession logs in with client code, PIN and a current TOTP and
// stores the returned tokens on the client.
func (sc *SmartConnect) GenerateSession(ctx context.Context, clientCode, password, totp string) error {
	res, err := sc.post(ctx, "api.login", map[string]any{
		"clientcode": clientCode,
		"password":   password,
		"totp":       totp,
	})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	data := res.Get("data")
	jwt := data.Get("jwtToken").String()
	if jwt == "" {
		return errors.New("login: unexpected response format")
	}
	sc.setTokens(jwt, data.Get("refreshToken").String(), data.Get("feedToken").String())

	sc.mu.Lock()
	sc.userID = clientCode
	sc.mu.Unlock()
	return nil
}

// RenewAccessToken exchanges the refresh token for a new access token.
func (sc *SmartConnect) RenewAccessToken(ctx context.Context) error {
	sc.mu.RLock()
	refresh := sc.refreshToken
	sc.mu.RUnlock()
	if refresh == "" {
		return errors.New("renew: no refresh token")
	}

	res, err := sc.post(ctx, "api.token", map[string]any{"refreshToken": refresh})
	if err != nil {
		return fmt.Errorf("renew: %w", err)
	}
	data := res.Get("data")
	sc.setTokens(data.Get("jwtToken").String(), data.Get("refreshToken").String(), data.Get("feedToken").String())
	return nil
}

// TerminateSession logs the user out.
func (sc *SmartConnect) TerminateSession(ctx context.Context) error {
	_, err := sc.post(ctx, "api.logout", map[string]any{"clientcode": sc.UserID()})
	return err
}

// Scrip is one search hit.
type Scrip struct {
	Exchange      string
	TradingSymbol string
	SymbolToken   string
}

// SearchScrip looks up instruments by name on an exchange.
func (sc *SmartConnect) SearchScrip(ctx context.Context, exchange, query string) ([]Scrip, error) {
	res, err := sc.post(ctx, "api.search.scrip", map[string]any{"exchange": exchange, "searchscrip": query})
	if err != nil {
		return nil, err
	}
	var out []Scrip
	res.Get("data").ForEach(func(_, v gjson.Result) bool {
		out = append(out, Scrip{
			Exchange:      v.Get("exchange").String(),
			TradingSymbol: v.Get("tradingsymbol").String(),
			SymbolToken:   v.Get("symboltoken").String(),
		})
		return true
	})
	return out, nil
}

// CandleParams selects a historical candle range. Interval uses SmartAPI
// names (ONE_MINUTE, FIVE_MINUTE, ...). From and To are sent in IST.
type CandleParams struct {
	Exchange    string
	SymbolToken string
	Interval    string
	From        time.Time
	To          time.Time
}

// Candle is one historical OHLCV row.
type Candle struct {
	TS     time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// istZone is only used to render the from/to dates the API expects.
var istZone = time.FixedZone("IST", 5*3600+30*60)

const candleDateLayout = "2006-01-02 15:04"

// GetCandleData returns candles oldest first. Rows the API returns are
// [timestamp, open, high, low, close, volume].
func (sc *SmartConnect) GetCandleData(ctx context.Context, p CandleParams) ([]Candle, error) {
	res, err := sc.post(ctx, "api.candle.data", map[string]any{
		"exchange":    p.Exchange,
		"symboltoken": p.SymbolToken,
		"interval":    p.Interval,
		"fromdate":    p.From.In(istZone).Format(candleDateLayout),
		"todate":      p.To.In(istZone).Format(candleDateLayout),
	})
	if err != nil {
		return nil, err
	}

	rows := res.Get("data").Array()
	out := make([]Candle, 0, len(rows))
	for _, row := range rows {
		cols := row.Array()
		if len(cols) < 6 {
			continue
		}
		ts, err := time.Parse(time.RFC3339, cols[0].String())
		if err != nil {
			continue
		}
		out = append(out, Candle{
			TS:     ts,
			Open:   cols[1].Float(),
			High:   cols[2].Float(),
			Low:    cols[3].Float(),
			Close:  cols[4].Float(),
			Volume: cols[5].Float(),
		})
	}
	return out, nil
}
