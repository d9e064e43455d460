package model

import "testing"

func TestCleanSymbol(t *testing.T) {
	cases := map[string]string{
		"reliance":    "RELIANCE",
		"RELIANCE.NS": "RELIANCE",
		" tcs.ns ":    "TCS",
		"M&M.NS":      "M&M",
		"BAJFINANCE":  "BAJFINANCE",
	}
	for in, want := range cases {
		if got := CleanSymbol(in); got != want {
			t.Errorf("CleanSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestYahooTicker(t *testing.T) {
	if got := YahooTicker("infy"); got != "INFY.NS" {
		t.Errorf("got %q, want INFY.NS", got)
	}
	if got := YahooTicker("INFY.NS"); got != "INFY.NS" {
		t.Errorf("suffix doubled: %q", got)
	}
	if got := YahooTicker("^NSEI"); got != "^NSEI" {
		t.Errorf("index ticker rewritten: %q", got)
	}
}

func TestParseRiskTier(t *testing.T) {
	if got := ParseRiskTier(""); got != RiskMedium {
		t.Errorf("empty: got %q, want MEDIUM", got)
	}
	if got := ParseRiskTier(" low "); got != RiskLow {
		t.Errorf("got %q, want LOW", got)
	}
	odd := ParseRiskTier("yolo")
	if odd.Known() {
		t.Errorf("%q should not be a known tier", odd)
	}
	if odd != "YOLO" {
		t.Errorf("unknown tier should be preserved upper-cased, got %q", odd)
	}
}
