// cmd/scanner serves the intraday signal scanner: REST API, WebSocket push,
// Prometheus metrics and optional background scans with alerts.
//
// Usage:
//
//	PROVIDER=yahoo REDIS_ADDR=localhost:6379 SCAN_CRON="0 */5 * * * *" go run ./cmd/scanner
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"intraday-scanner/config"
	"intraday-scanner/internal/app"
	"intraday-scanner/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("scanner", slog.LevelInfo)
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	logger.Init("scanner", logger.ParseLevel(cfg.LogLevel))

	svc, err := app.New(cfg)
	if err != nil {
		slog.Error("init failed", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}
