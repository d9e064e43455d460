package model

import "strings"

// NSESuffix is the Yahoo Finance suffix for NSE-listed equities.
const NSESuffix = ".NS"

// CleanSymbol upper-cases a user-supplied symbol and strips the exchange suffix.
// "reliance.ns" → "RELIANCE".
func CleanSymbol(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	return strings.TrimSuffix(s, NSESuffix)
}

// YahooTicker returns the Yahoo ticker for an NSE symbol: "RELIANCE" → "RELIANCE.NS".
// Index tickers ("^NSEI") are passed through untouched.
func YahooTicker(symbol string) string {
	s := CleanSymbol(symbol)
	if strings.HasPrefix(s, "^") {
		return s
	}
	return s + NSESuffix
}
