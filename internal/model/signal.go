package model

import (
	"strings"
	"time"
)

// RiskTier selects how strict the entry rules are and how wide the stops sit.
type RiskTier string

const (
	RiskHigh   RiskTier = "HIGH"
	RiskMedium RiskTier = "MEDIUM"
	RiskLow    RiskTier = "LOW"
)

// ParseRiskTier normalizes a caller-supplied tier. Empty input means MEDIUM.
// Unknown values are returned as-is; they are not an error, they simply never qualify.
func ParseRiskTier(raw string) RiskTier {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return RiskMedium
	}
	return RiskTier(s)
}

// Known reports whether t is one of HIGH, MEDIUM or LOW.
func (t RiskTier) Known() bool {
	switch t {
	case RiskHigh, RiskMedium, RiskLow:
		return true
	}
	return false
}

// Direction is the trade side of a signal. Only BUY is emitted today.
type Direction string

const DirectionBuy Direction = "BUY"

// Signal is a single trade recommendation produced by one scan.
// Values stay in float64; formatting happens at the HTTP boundary.
type Signal struct {
	Symbol      string    `json:"symbol"`
	Direction   Direction `json:"direction"`
	Price       float64   `json:"price"`
	EntryLow    float64   `json:"entry_low"`
	EntryHigh   float64   `json:"entry_high"`
	StopLoss    float64   `json:"stop_loss"`
	Target      float64   `json:"target"`
	Confidence  float64   `json:"confidence"` // 0–99
	Reason      string    `json:"reason"`
	RSI         float64   `json:"rsi"`
	Risk        RiskTier  `json:"risk"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ScanResult is the ranked output of one scan, highest confidence first.
type ScanResult struct {
	Risk        RiskTier  `json:"risk"`
	Signals     []Signal  `json:"signals"`
	GeneratedAt time.Time `json:"generated_at"`
	Scanned     int       `json:"scanned"`
	Failed      int       `json:"failed"`
}
