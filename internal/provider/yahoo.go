// Package provider holds the OHLCV data sources the scanner reads from and
// the decorators that wrap them (circuit breaker, bar archive).
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/tidwall/gjson"

	"intraday-scanner/internal/model"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// Yahoo fetches intraday history from the public Yahoo Finance chart API.
// NSE symbols are requested with the ".NS" suffix.
type Yahoo struct {
	Client  *http.Client
	BaseURL string
}

// NewYahoo creates a Yahoo provider. proxyURL is optional.
func NewYahoo(proxyURL string) *Yahoo {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &Yahoo{
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		BaseURL: yahooBaseURL,
	}
}

func (y *Yahoo) Name() string { return "yahoo" }

// FetchHistory requests range=lookback, interval=interval for the symbol.
// Bars whose close or volume is null (halts, the forming bar) are dropped.
// A chart with no usable bars returns model.ErrNoData.
func (y *Yahoo) FetchHistory(ctx context.Context, symbol, lookback, interval string) (model.Series, error) {
	symbol = model.CleanSymbol(symbol)
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		y.BaseURL, url.PathEscape(model.YahooTicker(symbol)), url.QueryEscape(interval), url.QueryEscape(lookback))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.Series{}, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := y.Client.Do(req)
	if err != nil {
		return model.Series{}, fmt.Errorf("yahoo fetch %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Series{}, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return model.Series{}, fmt.Errorf("yahoo %s: %w", symbol, model.ErrNoData)
	}
	if resp.StatusCode != http.StatusOK {
		return model.Series{}, fmt.Errorf("yahoo %s: status %d", symbol, resp.StatusCode)
	}

	bars, err := parseChart(body)
	if err != nil {
		return model.Series{}, fmt.Errorf("yahoo %s: %w", symbol, err)
	}
	return model.Series{Symbol: symbol, Bars: bars}, nil
}

// parseChart reads a v8 chart payload. Yahoo pads the quote arrays with
// nulls, which gjson lets us detect without an intermediate struct.
func parseChart(body []byte) ([]model.Bar, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid JSON")
	}
	chart := gjson.GetBytes(body, "chart")
	if desc := chart.Get("error.description"); desc.Exists() && desc.String() != "" {
		return nil, fmt.Errorf("api error: %s", desc.String())
	}

	result := chart.Get("result.0")
	stamps := result.Get("timestamp").Array()
	if len(stamps) == 0 {
		return nil, model.ErrNoData
	}

	quote := result.Get("indicators.quote.0")
	opens := quote.Get("open").Array()
	highs := quote.Get("high").Array()
	lows := quote.Get("low").Array()
	closes := quote.Get("close").Array()
	volumes := quote.Get("volume").Array()

	at := func(col []gjson.Result, i int) (float64, bool) {
		if i >= len(col) || col[i].Type != gjson.Number {
			return 0, false
		}
		return col[i].Float(), true
	}

	bars := make([]model.Bar, 0, len(stamps))
	for i, ts := range stamps {
		c, okC := at(closes, i)
		v, okV := at(volumes, i)
		if !okC || !okV {
			continue
		}
		o, okO := at(opens, i)
		h, okH := at(highs, i)
		l, okL := at(lows, i)
		if !okO {
			o = c
		}
		if !okH {
			h = c
		}
		if !okL {
			l = c
		}
		bars = append(bars, model.Bar{
			TS:     time.Unix(ts.Int(), 0).UTC(),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: v,
		})
	}
	if len(bars) == 0 {
		return nil, model.ErrNoData
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].TS.Before(bars[j].TS) })
	return bars, nil
}
