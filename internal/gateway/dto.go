package gateway

import (
	"time"

	"github.com/shopspring/decimal"

	"intraday-scanner/internal/model"
)

// NoSafeTrade is the message attached to an empty scan.
const NoSafeTrade = "NO SAFE TRADE AVAILABLE"

// exactExp is low enough that NewFromFloatWithExponent keeps every binary digit.
const exactExp = -1074

// fixed formats f with exactly places decimals. It rounds the exact binary
// value, with ties to even, so 100.125 gives "100.12" and 2.675 gives "2.67".
func fixed(f float64, places int32) string {
	return decimal.NewFromFloatWithExponent(f, exactExp).StringFixedBank(places)
}

// SignalOut is the REST/WS representation of a signal. Prices are strings
// with two decimals; confidence is a whole number.
type SignalOut struct {
	Stock           string `json:"stock"`
	Direction       string `json:"direction"`
	Price           string `json:"price"`
	EntryRange      string `json:"entryRange"`
	StopLoss        string `json:"stopLoss"`
	Target          string `json:"target"`
	ConfidenceScore string `json:"confidenceScore"`
	Reason          string `json:"reason"`
	Timestamp       string `json:"timestamp"`
}

// NewSignalOut converts a signal for the wire.
func NewSignalOut(s model.Signal) SignalOut {
	return SignalOut{
		Stock:           model.CleanSymbol(s.Symbol),
		Direction:       string(s.Direction),
		Price:           fixed(s.Price, 2),
		EntryRange:      fixed(s.EntryLow, 2) + " - " + fixed(s.EntryHigh, 2),
		StopLoss:        fixed(s.StopLoss, 2),
		Target:          fixed(s.Target, 2),
		ConfidenceScore: fixed(s.Confidence, 0),
		Reason:          s.Reason,
		Timestamp:       s.GeneratedAt.Format(time.RFC3339),
	}
}

func signalsOut(sigs []model.Signal) []SignalOut {
	out := make([]SignalOut, len(sigs))
	for i, s := range sigs {
		out[i] = NewSignalOut(s)
	}
	return out
}

// ScanResponse is the body of GET /api/scan.
type ScanResponse struct {
	Status    string      `json:"status"` // "success" or "cached"
	Results   []SignalOut `json:"results"`
	Message   string      `json:"message,omitempty"`
	Timestamp int64       `json:"timestamp"` // epoch ms of the scan
}

// NewScanResponse builds the response for res.
func NewScanResponse(res model.ScanResult, cached bool) ScanResponse {
	resp := ScanResponse{
		Status:    "success",
		Results:   signalsOut(res.Signals),
		Timestamp: res.GeneratedAt.UnixMilli(),
	}
	if cached {
		resp.Status = "cached"
	}
	if len(resp.Results) == 0 {
		resp.Message = NoSafeTrade
	}
	return resp
}

// ChartPointOut is one chart sample; time is epoch ms.
type ChartPointOut struct {
	Time  int64   `json:"time"`
	Price float64 `json:"price"`
}

// DetailOut is the data object of GET /api/stock/{symbol}.
type DetailOut struct {
	Symbol        string          `json:"symbol"`
	LTP           float64         `json:"ltp"`
	Change        string          `json:"change"`
	ChangePercent string          `json:"changePercent"`
	PrevClose     float64         `json:"prevClose"`
	Source        string          `json:"source"`
	Chart         []ChartPointOut `json:"chart"`
}

// NewDetailOut converts a detail view for the wire.
func NewDetailOut(d model.Detail) DetailOut {
	chart := make([]ChartPointOut, len(d.Chart))
	for i, p := range d.Chart {
		chart[i] = ChartPointOut{Time: p.TS.UnixMilli(), Price: p.Price}
	}
	return DetailOut{
		Symbol:        model.CleanSymbol(d.Symbol),
		LTP:           d.LTP,
		Change:        fixed(d.Change, 2),
		ChangePercent: fixed(d.ChangePct, 2),
		PrevClose:     d.PrevClose,
		Source:        d.Source,
		Chart:         chart,
	}
}

// DetailResponse is the body of a successful GET /api/stock/{symbol}.
type DetailResponse struct {
	Status string    `json:"status"`
	Data   DetailOut `json:"data"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Market  string `json:"market"`
}
