package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erikbryant/optionchain/date"
	"github.com/erikbryant/optionchain/expiry"
)

var envKeys = []string{
	"SHEET_ID", "SHEET_TITLE", "POLLING_INTERVAL", "GOOGLE_CREDENTIALS_PATH", "GOOGLE_CREDENTIALS",
	"CREDENTIALS_PASSPHRASE", "LOG_LEVEL", "LOG_FILE", "SINK", "CSV_DIR",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

// writeTempConfig writes content to a YAML file and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const sample = `
source:
  name: nse
  requests_per_second: 2
sink:
  kind: sheets
  spreadsheet_title: Option Chain
  credentials_path: service_account.json
interval: 45s
policy: inclusive
layout: detailed
tabs:
  - name: NIFTY
    symbol: NIFTY
    expiry: {next: 0}
  - name: NIFTY Next
    symbol: NIFTY
    expiry: {next: 1}
  - name: BANKNIFTY Sep
    symbol: BANKNIFTY
    expiry: {date: 2025-09-30}
`

func TestLoadConfig(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(writeTempConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Interval)
	assert.Equal(t, "inclusive", cfg.Policy)
	assert.Equal(t, "detailed", cfg.Layout)
	assert.Equal(t, 2.0, cfg.Source.RequestsPerSecond)
	// Defaults survive where the file is silent.
	assert.Equal(t, 3, cfg.Source.Retries)
	assert.Equal(t, "09:15", cfg.Market.Open)
	assert.Equal(t, "option_chain_updater.log", cfg.Logging.File)
	assert.Equal(t, 5*time.Second, cfg.Source.CacheFor)
	assert.Equal(t, 24*time.Hour, cfg.VWAP.Lookback)

	require.Len(t, cfg.Tabs, 3)
	assert.Equal(t, 1, *cfg.Tabs[1].Expiry.Next)
	require.NotNil(t, cfg.Tabs[2].Expiry.Date)
	assert.True(t, cfg.Tabs[2].Expiry.Date.Equal(date.NewExpiry(2025, time.September, 30)))

	assert.Equal(t, 2, expiry.Depth(cfg.Selectors("nifty")))
	assert.Len(t, cfg.Selectors("BANKNIFTY"), 1)
}

func TestEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SHEET_ID", "abc123")
	t.Setenv("POLLING_INTERVAL", "60")
	t.Setenv("SINK", "csv")
	t.Setenv("CSV_DIR", "/tmp/tabs")
	t.Setenv("GOOGLE_CREDENTIALS", "e30=")
	t.Setenv("CREDENTIALS_PASSPHRASE", "secret")
	t.Setenv("LOG_FILE", "other.log")

	cfg, err := Load(writeTempConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "abc123", cfg.Sink.SpreadsheetID)
	assert.Equal(t, time.Minute, cfg.Interval)
	assert.Equal(t, "csv", cfg.Sink.Kind)
	assert.Equal(t, "/tmp/tabs", cfg.Sink.CSVDir)
	assert.Equal(t, "e30=", cfg.Sink.Credentials)
	assert.Equal(t, "secret", cfg.Sink.Passphrase)
	assert.Equal(t, "other.log", cfg.Logging.File)

	t.Setenv("POLLING_INTERVAL", "soon")
	_, err = Load(writeTempConfig(t, sample))
	assert.Error(t, err)
}

func TestParseInterval(t *testing.T) {
	testCases := []struct {
		value    string
		expected time.Duration
	}{
		{"30", 30 * time.Second},
		{"1m30s", 90 * time.Second},
		{"250ms", 250 * time.Millisecond},
	}

	for _, tc := range testCases {
		answer, err := parseInterval(tc.value)
		require.NoError(t, err)
		if answer != tc.expected {
			t.Errorf("For %v expected %v, got %v", tc.value, tc.expected, answer)
		}
	}
}

func TestYAMLInterval(t *testing.T) {
	clearEnv(t)

	testCases := []struct {
		value    string
		expected time.Duration
	}{
		{"30", 30 * time.Second},
		{"45s", 45 * time.Second},
		{"1m", time.Minute},
	}

	for _, tc := range testCases {
		cfg, err := Read(writeTempConfig(t, "interval: "+tc.value+"\n"))
		require.NoError(t, err)
		if cfg.Interval != tc.expected {
			t.Errorf("For %v expected %v, got %v", tc.value, tc.expected, cfg.Interval)
		}
	}

	cfg, err := Read(writeTempConfig(t, "layout: detailed\n"))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Interval)

	_, err = Read(writeTempConfig(t, "interval: soon\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	clearEnv(t)

	valid := func() Config {
		c := Default()
		c.Sink.SpreadsheetID = "id"
		c.Sink.CredentialsPath = "key.json"
		c.Tabs = []Tab{{Name: "NIFTY", Symbol: "NIFTY", Expiry: expiry.Nearest()}}
		return c
	}

	c := valid()
	require.NoError(t, c.Validate())

	testCases := []struct {
		name   string
		modify func(c *Config)
	}{
		{"no tabs", func(c *Config) { c.Tabs = nil }},
		{"duplicate tab", func(c *Config) { c.Tabs = append(c.Tabs, c.Tabs[0]) }},
		{"no symbol", func(c *Config) { c.Tabs[0].Symbol = "" }},
		{"empty selector", func(c *Config) { c.Tabs[0].Expiry = expiry.Selector{} }},
		{"zero interval", func(c *Config) { c.Interval = 0 }},
		{"cache outlives interval", func(c *Config) { c.Source.CacheFor = c.Interval }},
		{"unknown source", func(c *Config) { c.Source.Name = "yahoo" }},
		{"unknown sink", func(c *Config) { c.Sink.Kind = "excel" }},
		{"no spreadsheet", func(c *Config) { c.Sink.SpreadsheetID = "" }},
		{"no credentials", func(c *Config) { c.Sink.CredentialsPath = "" }},
		{"inverted window", func(c *Config) { c.Market.Open, c.Market.Close = "08:40", "03:35" }},
		{"bad weekday", func(c *Config) { c.Market.Days = []string{"Funday"} }},
		{"bad policy", func(c *Config) { c.Policy = "lenient" }},
		{"bad layout", func(c *Config) { c.Layout = "wide" }},
	}

	for _, tc := range testCases {
		c := valid()
		tc.modify(&c)
		assert.Error(t, c.Validate(), "For %s expected an error", tc.name)
	}
}

func TestMarketHours(t *testing.T) {
	h, err := Default().Market.Hours()
	require.NoError(t, err)

	// Monday 2025-08-25 10:00 IST
	open := time.Date(2025, time.August, 25, 10, 0, 0, 0, date.Kolkata())
	assert.True(t, h.InTradingHours(open))
	assert.False(t, h.InTradingHours(open.Add(-2*24*time.Hour)))
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("OPTIONCHAIN_TEST_VALUE=from-dotenv\n"), 0600))
	t.Setenv("OPTIONCHAIN_TEST_VALUE", "")
	os.Unsetenv("OPTIONCHAIN_TEST_VALUE")

	require.NoError(t, LoadEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "from-dotenv", os.Getenv("OPTIONCHAIN_TEST_VALUE"))
}

func TestReadSkipsValidation(t *testing.T) {
	clearEnv(t)

	cfg, err := Read("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Tabs)

	_, err = Load("")
	assert.Error(t, err)
}
