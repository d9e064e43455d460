package provider

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"intraday-scanner/internal/markethours"
)

// lookbackDays converts a Yahoo-style range ("5d", "1mo", "1wk") into a
// number of trading sessions.
func lookbackDays(lookback string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(lookback))
	unit := 1
	switch {
	case strings.HasSuffix(s, "mo"):
		s, unit = strings.TrimSuffix(s, "mo"), 22
	case strings.HasSuffix(s, "wk"):
		s, unit = strings.TrimSuffix(s, "wk"), 5
	case strings.HasSuffix(s, "d"):
		s = strings.TrimSuffix(s, "d")
	default:
		return 0, fmt.Errorf("unsupported lookback %q", lookback)
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("unsupported lookback %q", lookback)
	}
	return n * unit, nil
}

// windowStart is the market open of the first session in a lookback window ending at now.
func windowStart(now time.Time, lookback string) (time.Time, error) {
	days, err := lookbackDays(lookback)
	if err != nil {
		return time.Time{}, err
	}
	d := markethours.TradingDaysBack(now, days)
	return d.Add(markethours.OpenHour*time.Hour + markethours.OpenMinute*time.Minute), nil
}

// smartInterval maps Yahoo interval names onto SmartAPI's.
var smartInterval = map[string]string{
	"1m":  "ONE_MINUTE",
	"3m":  "THREE_MINUTE",
	"5m":  "FIVE_MINUTE",
	"10m": "TEN_MINUTE",
	"15m": "FIFTEEN_MINUTE",
	"30m": "THIRTY_MINUTE",
	"60m": "ONE_HOUR",
	"1h":  "ONE_HOUR",
	"1d":  "ONE_DAY",
}
