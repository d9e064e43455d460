package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SCANNER_CONFIG", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.HTTPAddr)
	assert.Equal(t, "yahoo", cfg.Provider)
	assert.Len(t, cfg.Symbols, 20)
	assert.Equal(t, 5, cfg.Workers)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout())
	assert.Equal(t, 30*time.Second, cfg.ScanCacheTTL())
	assert.Equal(t, "LOW", cfg.BackgroundRisk)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scanner.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
provider: SmartAPI
symbols: [tcs.ns, INFY, " sbin ", TCS]
workers: 8
scan_cron: "0 */5 * * * *"
angel_api_key: k
angel_client_code: c
angel_password: p
angel_totp_secret: s
`), 0o644))

	t.Setenv("SCANNER_CONFIG", path)
	t.Setenv("SCAN_WORKERS", "3")
	t.Setenv("PORT", "8080")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "smartapi", cfg.Provider)
	assert.Equal(t, []string{"TCS", "INFY", "SBIN"}, cfg.Symbols)
	assert.Equal(t, 3, cfg.Workers, "env overrides the file")
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "0 */5 * * * *", cfg.ScanCron)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("SCANNER_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("SCANNER_CONFIG", "")
	t.Setenv("FETCH_TIMEOUT_MS", "ten")
	_, err = Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"no symbols":        func(c *Config) { c.Symbols = nil },
		"zero workers":      func(c *Config) { c.Workers = 0 },
		"negative timeout":  func(c *Config) { c.FetchTimeoutMS = -1 },
		"smartapi no creds": func(c *Config) { c.Provider = "smartapi" },
		"sqlite no path":    func(c *Config) { c.Provider = "sqlite" },
		"unknown provider":  func(c *Config) { c.Provider = "bloomberg" },
		"telegram no chat":  func(c *Config) { c.TelegramToken = "t" },
		"cron bad tier": func(c *Config) {
			c.ScanCron = "0 */5 * * * *"
			c.BackgroundRisk = "LWO"
		},
	}
	for name, mutate := range cases {
		cfg := Defaults()
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestValidate_BackgroundRiskOnlyMattersWithCron(t *testing.T) {
	cfg := Defaults()
	cfg.BackgroundRisk = "LWO"
	assert.NoError(t, cfg.Validate(), "no cron, tier unused")

	cfg.ScanCron = "0 */5 * * * *"
	assert.Error(t, cfg.Validate())

	cfg.BackgroundRisk = " high "
	assert.NoError(t, cfg.Validate())
}
