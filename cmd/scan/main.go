// cmd/scan runs a single scan and prints the result as JSON on stdout, in
// the same shape as GET /api/scan. Logs go to stderr.
//
// Usage:
//
//	go run ./cmd/scan --risk=LOW
//	go run ./cmd/scan --risk=HIGH --symbols=TCS,INFY --provider=sqlite --db=data/bars.db
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"intraday-scanner/config"
	"intraday-scanner/internal/app"
	"intraday-scanner/internal/gateway"
	"intraday-scanner/internal/logger"
	"intraday-scanner/internal/model"
	"intraday-scanner/internal/provider"
	"intraday-scanner/internal/scanner"
)

func main() {
	risk := flag.String("risk", "MEDIUM", "Risk tier: HIGH, MEDIUM or LOW")
	symbols := flag.String("symbols", "", "Comma-separated symbols (default: configured universe)")
	providerName := flag.String("provider", "", "Data source: yahoo, smartapi or sqlite (default: PROVIDER)")
	dbPath := flag.String("db", "", "SQLite bar archive (default: SQLITE_PATH)")
	pretty := flag.Bool("pretty", false, "Indent JSON output")
	flag.Parse()

	if err := run(*risk, *symbols, *providerName, *dbPath, *pretty); err != nil {
		fmt.Fprintln(os.Stderr, "scan:", err)
		os.Exit(1)
	}
}

func run(risk, symbols, providerName, dbPath string, pretty bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.InitWriter(os.Stderr, "scan", logger.ParseLevel(cfg.LogLevel))

	if symbols != "" {
		cfg.Symbols = nil
		for _, s := range strings.Split(symbols, ",") {
			if s = model.CleanSymbol(s); s != "" {
				cfg.Symbols = append(cfg.Symbols, s)
			}
		}
	}
	if providerName != "" {
		cfg.Provider = strings.ToLower(providerName)
	}
	if dbPath != "" {
		cfg.SQLitePath = dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var bars *app.Bars
	if cfg.SQLitePath != "" {
		if bars, err = app.OpenBars(cfg.SQLitePath); err != nil {
			return err
		}
		defer bars.Close()
	}
	p, _, err := app.BuildProvider(cfg, bars)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.CloseSession(ctx, p); err != nil {
			slog.Warn("provider logout failed", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sc := scanner.New(app.ScannerConfig(cfg), p, cfg.Symbols, scanner.WithLogger(slog.Default()))
	res := sc.Scan(ctx, model.ParseRiskTier(risk))

	enc := json.NewEncoder(os.Stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(gateway.NewScanResponse(res, false))
}
