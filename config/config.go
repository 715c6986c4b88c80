package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/erikbryant/optionchain/chain"
	"github.com/erikbryant/optionchain/date"
	"github.com/erikbryant/optionchain/expiry"
	"github.com/erikbryant/optionchain/logger"
)

type Config struct {
	Source   SourceConfig  `yaml:"source"`
	Sink     SinkConfig    `yaml:"sink"`
	Interval time.Duration `yaml:"-"`
	Market   MarketConfig  `yaml:"market"`
	Policy   string        `yaml:"policy"`
	Layout   string        `yaml:"layout"`
	Logging  logger.Config `yaml:"logging"`
	Proxy    ProxyConfig   `yaml:"proxy"`
	VWAP     VWAPConfig    `yaml:"vwap"`
	Tabs     []Tab         `yaml:"tabs"`
}

type SourceConfig struct {
	Name              string        `yaml:"name"`
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	Retries           int           `yaml:"retries"`
	RetryWait         time.Duration `yaml:"retry_wait"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Indices           []string      `yaml:"indices"`
	CacheFor          time.Duration `yaml:"cache_for"`
}

type SinkConfig struct {
	Kind             string `yaml:"kind"`
	SpreadsheetID    string `yaml:"spreadsheet_id"`
	SpreadsheetTitle string `yaml:"spreadsheet_title"`
	CredentialsPath  string `yaml:"credentials_path"`
	Credentials      string `yaml:"-"`
	Passphrase       string `yaml:"-"`
	TokenFile        string `yaml:"token_file"`
	CSVDir           string `yaml:"csv_dir"`
}

type MarketConfig struct {
	Timezone string   `yaml:"timezone"`
	Days     []string `yaml:"days"`
	Open     string   `yaml:"open"`
	Close    string   `yaml:"close"`
}

type ProxyConfig struct {
	Addr string `yaml:"addr"`
}

// VWAPConfig drives the intraday VWAP table. No symbols means the NIFTY 50.
type VWAPConfig struct {
	Tab      string        `yaml:"tab"`
	Symbols  []string      `yaml:"symbols"`
	Lookback time.Duration `yaml:"lookback"`
	PriceURL string        `yaml:"price_url"`
}

// Tab is one spreadsheet tab fed from one symbol and expiry.
type Tab struct {
	Name   string          `yaml:"name"`
	Symbol string          `yaml:"symbol"`
	Expiry expiry.Selector `yaml:"expiry"`
}

// UnmarshalYAML decodes the file over c. interval takes whole seconds (30) or a duration (30s).
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type plain Config
	if err := value.Decode((*plain)(c)); err != nil {
		return err
	}

	var raw struct {
		Interval yaml.Node `yaml:"interval"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Interval.Kind == yaml.ScalarNode && raw.Interval.Value != "" {
		d, err := parseInterval(raw.Interval.Value)
		if err != nil {
			return fmt.Errorf("interval: %w", err)
		}
		c.Interval = d
	}

	return nil
}

// Default returns the settings of the NSE poller: NIFTY's nearest expiry into Google Sheets every 30
// seconds during market hours.
func Default() Config {
	return Config{
		Source: SourceConfig{
			Name:              "nse",
			Timeout:           10 * time.Second,
			Retries:           3,
			RetryWait:         time.Second,
			RequestsPerSecond: 1,
			CacheFor:          5 * time.Second,
		},
		Sink: SinkConfig{
			Kind:      "sheets",
			TokenFile: "token.json",
			CSVDir:    "tabs",
		},
		Interval: 30 * time.Second,
		Market: MarketConfig{
			Timezone: "Asia/Kolkata",
			Days:     []string{"Mon", "Tue", "Wed", "Thu", "Fri"},
			Open:     "09:15",
			Close:    "15:30",
		},
		Policy: "strict",
		Layout: "default",
		Logging: logger.Config{
			Level:  "info",
			Format: "text",
			File:   "option_chain_updater.log",
			MaxAge: 7,
		},
		Proxy: ProxyConfig{Addr: ":8080"},
		VWAP: VWAPConfig{
			Tab:      "NIFTY50 VWAP",
			Lookback: 24 * time.Hour,
		},
	}
}

// LoadEnv reads .env style files into the environment. Missing files are not an error.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the YAML file at path over the defaults, applies environment overrides and validates.
// An empty path uses the defaults alone.
func Load(path string) (*Config, error) {
	config, err := Read(path)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Read is Load without validation, for commands that use only part of the settings.
func Read(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnv(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// applyEnv overrides file settings with the environment.
func applyEnv(config *Config) error {
	set := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	set("SHEET_ID", &config.Sink.SpreadsheetID)
	set("SHEET_TITLE", &config.Sink.SpreadsheetTitle)
	set("GOOGLE_CREDENTIALS_PATH", &config.Sink.CredentialsPath)
	set("GOOGLE_CREDENTIALS", &config.Sink.Credentials)
	set("CREDENTIALS_PASSPHRASE", &config.Sink.Passphrase)
	set("LOG_LEVEL", &config.Logging.Level)
	set("LOG_FILE", &config.Logging.File)
	set("SINK", &config.Sink.Kind)
	set("CSV_DIR", &config.Sink.CSVDir)

	if v := strings.TrimSpace(os.Getenv("POLLING_INTERVAL")); v != "" {
		d, err := parseInterval(v)
		if err != nil {
			return fmt.Errorf("POLLING_INTERVAL: %w", err)
		}
		config.Interval = d
	}

	return nil
}

// parseInterval accepts whole seconds ("30") or a Go duration ("1m30s").
func parseInterval(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// Hours converts the market section into a trading-hours gate.
func (m MarketConfig) Hours() (date.Hours, error) {
	var h date.Hours
	var err error

	switch m.Timezone {
	case "Asia/Kolkata":
		h.Location = date.Kolkata()
	case "":
		h.Location = time.UTC
	default:
		h.Location, err = time.LoadLocation(m.Timezone)
		if err != nil {
			return h, fmt.Errorf("market.timezone: %w", err)
		}
	}

	for _, d := range m.Days {
		w, ok := weekdays[strings.ToLower(strings.TrimSpace(d))]
		if !ok {
			return h, fmt.Errorf("market.days: unknown weekday %q", d)
		}
		h.Weekdays = append(h.Weekdays, w)
	}

	if h.Open, err = date.ParseClock(m.Open); err != nil {
		return h, fmt.Errorf("market.open: %w", err)
	}
	if h.Close, err = date.ParseClock(m.Close); err != nil {
		return h, fmt.Errorf("market.close: %w", err)
	}

	return h, h.Validate()
}

// Selectors returns the expiry selector of every tab for symbol.
func (c *Config) Selectors(symbol string) []expiry.Selector {
	var s []expiry.Selector
	for _, t := range c.Tabs {
		if strings.EqualFold(t.Symbol, symbol) {
			s = append(s, t.Expiry)
		}
	}
	return s
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be greater than 0")
	}
	if c.Source.CacheFor >= c.Interval {
		return fmt.Errorf("source.cache_for (%v) must be shorter than interval (%v)", c.Source.CacheFor, c.Interval)
	}

	switch c.Source.Name {
	case "nse", "moneycontrol":
	default:
		return fmt.Errorf("source.name must be nse or moneycontrol, got %q", c.Source.Name)
	}

	switch c.Sink.Kind {
	case "sheets":
		if c.Sink.SpreadsheetID == "" && c.Sink.SpreadsheetTitle == "" {
			return fmt.Errorf("sink.spreadsheet_id or sink.spreadsheet_title is required (SHEET_ID, SHEET_TITLE)")
		}
		if c.Sink.CredentialsPath == "" && c.Sink.Credentials == "" {
			return fmt.Errorf("sink.credentials_path is required (GOOGLE_CREDENTIALS_PATH, GOOGLE_CREDENTIALS)")
		}
	case "csv":
		if c.Sink.CSVDir == "" {
			return fmt.Errorf("sink.csv_dir is required")
		}
	default:
		return fmt.Errorf("sink.kind must be sheets or csv, got %q", c.Sink.Kind)
	}

	if _, err := c.Market.Hours(); err != nil {
		return err
	}
	if _, err := expiry.ParsePolicy(c.Policy); err != nil {
		return err
	}
	if _, err := chain.LayoutByName(c.Layout); err != nil {
		return err
	}

	if len(c.Tabs) == 0 {
		return fmt.Errorf("tabs: at least one tab is required")
	}
	seen := make(map[string]bool)
	for i, t := range c.Tabs {
		if t.Name == "" {
			return fmt.Errorf("tabs[%d].name is required", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("tabs[%d]: duplicate tab %q", i, t.Name)
		}
		seen[t.Name] = true
		if t.Symbol == "" {
			return fmt.Errorf("tabs[%d].symbol is required", i)
		}
		if err := t.Expiry.Validate(); err != nil {
			return fmt.Errorf("tabs[%d]: %w", i, err)
		}
	}

	return nil
}
