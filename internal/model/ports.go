package model

import (
	"context"
	"time"
)

// ── Ports ──
// These interfaces decouple the scan pipeline from concrete data sources
// and stores (Yahoo, SmartAPI, Redis, SQLite).

// Provider fetches OHLCV history for one symbol.
// lookback and interval use Yahoo notation ("5d", "5m").
// An empty series and an error are both "no data" to the scanner.
type Provider interface {
	// Name identifies the data source in logs, metrics and /api/health.
	Name() string

	FetchHistory(ctx context.Context, symbol, lookback, interval string) (Series, error)
}

// BarWriter archives fetched bars.
type BarWriter interface {
	SaveBars(ctx context.Context, interval string, s Series) error
	Close() error
}

// BarReader reads archived bars back, oldest first.
type BarReader interface {
	ReadBars(ctx context.Context, symbol, interval string, since time.Time) (Series, error)
	Close() error
}

// ScanCache holds the latest scan result per risk tier for a short TTL.
type ScanCache interface {
	// Get returns the cached result; ok is false on a miss.
	Get(ctx context.Context, tier RiskTier) (res ScanResult, ok bool, err error)

	Set(ctx context.Context, res ScanResult) error
}
