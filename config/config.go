package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"intraday-scanner/internal/model"
)

// DefaultSymbols is the NIFTY large-cap universe scanned when none is configured.
var DefaultSymbols = []string{
	"RELIANCE", "HDFCBANK", "ICICIBANK", "INFY", "TCS",
	"ITC", "KOTAKBANK", "LT", "SBIN", "BHARTIARTL",
	"AXISBANK", "ASIANPAINT", "MARUTI", "TITAN", "BAJFINANCE",
	"TATASTEEL", "M&M", "SUNPHARMA", "HCLTECH", "ULTRACEMCO",
}

// Config holds all application configuration. Values come from defaults,
// then an optional YAML file named by SCANNER_CONFIG, then environment
// variables, each layer overriding the previous one.
type Config struct {
	HTTPAddr  string `yaml:"http_addr"`
	StaticDir string `yaml:"static_dir"`
	LogLevel  string `yaml:"log_level"`

	// Market data
	Provider   string   `yaml:"provider"` // yahoo | smartapi | sqlite
	Symbols    []string `yaml:"symbols"`
	YahooProxy string   `yaml:"yahoo_proxy"`

	// Scan pipeline
	Workers        int    `yaml:"workers"`
	FetchTimeoutMS int    `yaml:"fetch_timeout_ms"`
	Lookback       string `yaml:"lookback"`
	Interval       string `yaml:"interval"`

	// Provider circuit breaker
	BreakerMaxFailures int `yaml:"breaker_max_failures"`
	BreakerResetSec    int `yaml:"breaker_reset_sec"`

	// Angel One credentials (provider=smartapi)
	AngelAPIKey     string `yaml:"angel_api_key"`
	AngelClientCode string `yaml:"angel_client_code"`
	AngelPassword   string `yaml:"angel_password"`
	AngelTOTPSecret string `yaml:"angel_totp_secret"`

	// Infrastructure; an empty address disables the component
	RedisAddr       string `yaml:"redis_addr"`
	RedisPassword   string `yaml:"redis_password"`
	ScanCacheTTLSec int    `yaml:"scan_cache_ttl_sec"`
	SQLitePath      string `yaml:"sqlite_path"`

	// Background scans and alerts
	ScanCron       string `yaml:"scan_cron"`
	BackgroundRisk string `yaml:"background_risk"`
	TelegramToken  string `yaml:"telegram_bot_token"`
	TelegramChatID string `yaml:"telegram_chat_id"`
	WebhookURL     string `yaml:"webhook_url"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		HTTPAddr:           ":3000",
		LogLevel:           "info",
		Provider:           "yahoo",
		Symbols:            append([]string(nil), DefaultSymbols...),
		Workers:            5,
		FetchTimeoutMS:     10000,
		Lookback:           "5d",
		Interval:           "5m",
		BreakerMaxFailures: 5,
		BreakerResetSec:    30,
		ScanCacheTTLSec:    30,
		BackgroundRisk:     "LOW",
	}
}

// Load builds the configuration from defaults, the SCANNER_CONFIG file and the environment.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("SCANNER_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.Symbols = normalizeSymbols(cfg.Symbols)
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		c.HTTPAddr = ":" + v
	}
	setString(&c.HTTPAddr, "HTTP_ADDR")
	setString(&c.StaticDir, "STATIC_DIR")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.Provider, "PROVIDER")
	setString(&c.YahooProxy, "YAHOO_PROXY")
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Symbols = strings.Split(v, ",")
	}
	setString(&c.Lookback, "LOOKBACK")
	setString(&c.Interval, "INTERVAL")

	setString(&c.AngelAPIKey, "ANGEL_API_KEY")
	setString(&c.AngelClientCode, "ANGEL_CLIENT_CODE")
	setString(&c.AngelPassword, "ANGEL_PASSWORD")
	setString(&c.AngelTOTPSecret, "ANGEL_TOTP_SECRET")

	setString(&c.RedisAddr, "REDIS_ADDR")
	setString(&c.RedisPassword, "REDIS_PASSWORD")
	setString(&c.SQLitePath, "SQLITE_PATH")

	setString(&c.ScanCron, "SCAN_CRON")
	setString(&c.BackgroundRisk, "BACKGROUND_RISK")
	setString(&c.TelegramToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.TelegramChatID, "TELEGRAM_CHAT_ID")
	setString(&c.WebhookURL, "WEBHOOK_URL")

	ints := []struct {
		dst *int
		key string
	}{
		{&c.Workers, "SCAN_WORKERS"},
		{&c.FetchTimeoutMS, "FETCH_TIMEOUT_MS"},
		{&c.BreakerMaxFailures, "BREAKER_MAX_FAILURES"},
		{&c.BreakerResetSec, "BREAKER_RESET_SEC"},
		{&c.ScanCacheTTLSec, "SCAN_CACHE_TTL_SEC"},
	}
	for _, i := range ints {
		if err := setInt(i.dst, i.key); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks that the configuration can start the service.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbol universe is empty")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.FetchTimeoutMS <= 0 {
		return fmt.Errorf("fetch_timeout_ms must be positive, got %d", c.FetchTimeoutMS)
	}
	if c.BreakerMaxFailures <= 0 || c.BreakerResetSec <= 0 {
		return fmt.Errorf("breaker settings must be positive")
	}
	switch c.Provider {
	case "yahoo":
	case "smartapi":
		if c.AngelAPIKey == "" || c.AngelClientCode == "" || c.AngelPassword == "" || c.AngelTOTPSecret == "" {
			return fmt.Errorf("provider smartapi requires ANGEL_API_KEY, ANGEL_CLIENT_CODE, ANGEL_PASSWORD and ANGEL_TOTP_SECRET")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("provider sqlite requires SQLITE_PATH")
		}
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.ScanCron != "" && !model.ParseRiskTier(c.BackgroundRisk).Known() {
		return fmt.Errorf("background_risk must be HIGH, MEDIUM or LOW, got %q", c.BackgroundRisk)
	}
	if c.TelegramToken != "" && c.TelegramChatID == "" {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required with TELEGRAM_BOT_TOKEN")
	}
	return nil
}

// FetchTimeout is the per-symbol provider deadline.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMS) * time.Millisecond
}

// BreakerReset is how long the provider breaker stays open.
func (c *Config) BreakerReset() time.Duration {
	return time.Duration(c.BreakerResetSec) * time.Second
}

// ScanCacheTTL is the lifetime of a cached scan.
func (c *Config) ScanCacheTTL() time.Duration {
	return time.Duration(c.ScanCacheTTLSec) * time.Second
}

// normalizeSymbols upper-cases, strips ".NS" and drops blanks and duplicates.
func normalizeSymbols(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(s)), ".NS")
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
