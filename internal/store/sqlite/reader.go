package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"intraday-scanner/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to archived bars for offline scans.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading. The schema is created
// if missing so an empty archive reads as "no data" rather than an error.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Info("sqlite reader opened", "path", dbPath)
	return &Reader{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

// ReadBars returns bars for symbol at interval with ts >= since, oldest first.
func (r *Reader) ReadBars(ctx context.Context, symbol, interval string, since time.Time) (model.Series, error) {
	symbol = model.CleanSymbol(symbol)
	rows, err := r.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND timeframe = ? AND ts >= ?
		ORDER BY ts ASC
	`, symbol, interval, since.Unix())
	if err != nil {
		return model.Series{}, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	s := model.Series{Symbol: symbol}
	for rows.Next() {
		var b model.Bar
		var tsUnix int64
		if err := rows.Scan(&tsUnix, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return model.Series{}, fmt.Errorf("sqlite scan bars: %w", err)
		}
		b.TS = time.Unix(tsUnix, 0).UTC()
		s.Bars = append(s.Bars, b)
	}
	return s, rows.Err()
}

// Symbols lists the symbols archived at interval, alphabetically.
func (r *Reader) Symbols(ctx context.Context, interval string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT symbol FROM bars WHERE timeframe = ? ORDER BY symbol`, interval)
	if err != nil {
		return nil, fmt.Errorf("sqlite query symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close closes the database.
func (r *Reader) Close() error {
	return r.db.Close()
}
