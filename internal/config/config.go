package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"IPOTracker/internal/heatmap"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	DataSource struct {
		CalendarURL   string `yaml:"calendar_url"`
		PriceProvider string `yaml:"price_provider"` // fmp, yahoo, alpaca or mock
		APIKey        string `yaml:"api_key"`
		AlpacaKey     string `yaml:"alpaca_key"`
		AlpacaSecret  string `yaml:"alpaca_secret"`
		AlpacaFeed    string `yaml:"alpaca_feed"`
	} `yaml:"data_source"`
	Tracker struct {
		Exchanges      []string      `yaml:"exchanges"`
		LookbackDays   int           `yaml:"lookback_days"`
		MinBars        int           `yaml:"min_bars"`
		PennyFloor     float64       `yaml:"penny_floor"`
		Interval       time.Duration `yaml:"interval"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
	} `yaml:"tracker"`
	Paths struct {
		CacheDir   string `yaml:"cache_dir"`
		ResultsDir string `yaml:"results_dir"`
	} `yaml:"paths"`
	Report struct {
		RefreshSeconds int    `yaml:"refresh_seconds"`
		QuoteURL       string `yaml:"quote_url"`
		JSONSnapshot   bool   `yaml:"json_snapshot"`
		Console        bool   `yaml:"console"`
		Colormap       string `yaml:"colormap"`
		NeutralColor   string `yaml:"neutral_color"`
		MissingColor   string `yaml:"missing_color"`
	} `yaml:"report"`
	Database struct {
		SQLitePath     string `yaml:"sqlite_path"`
		InfluxAddr     string `yaml:"influx_addr"`
		InfluxDB       string `yaml:"influx_db"`
		InfluxUser     string `yaml:"influx_user"`
		InfluxPassword string `yaml:"influx_password"`
	} `yaml:"database"`
	Housekeeping struct {
		Cron          string `yaml:"cron"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"housekeeping"`
	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides and defaults.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	// Seeded before decoding so an explicit 0 in the file survives.
	// penny_floor 0 disables the floor, retention_days 0 disables housekeeping.
	cfg.Tracker.PennyFloor = 1.0
	cfg.Housekeeping.RetentionDays = 14

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("FMP_API_KEY"); v != "" {
		cfg.DataSource.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.DataSource.AlpacaKey = v
	}
	if v := os.Getenv("ALPACA_SECRET_KEY"); v != "" {
		cfg.DataSource.AlpacaSecret = v
	}
	if v := os.Getenv("PRICE_PROVIDER"); v != "" {
		cfg.DataSource.PriceProvider = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("INFLUX_ADDR"); v != "" {
		cfg.Database.InfluxAddr = v
	}
	if v := os.Getenv("CYCLE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("CYCLE_INTERVAL: %w", err)
		}
		cfg.Tracker.Interval = d
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.DataSource.PriceProvider = strings.ToLower(strings.TrimSpace(c.DataSource.PriceProvider))
	if c.DataSource.PriceProvider == "" {
		c.DataSource.PriceProvider = "fmp"
	}
	if c.DataSource.AlpacaFeed == "" {
		c.DataSource.AlpacaFeed = "iex"
	}
	if len(c.Tracker.Exchanges) == 0 {
		c.Tracker.Exchanges = []string{"Nasdaq"}
	}
	if c.Tracker.LookbackDays == 0 {
		c.Tracker.LookbackDays = 30
	}
	if c.Tracker.MinBars == 0 {
		c.Tracker.MinBars = 10
	}
	if c.Tracker.Interval == 0 {
		c.Tracker.Interval = 60 * time.Second
	}
	if c.Tracker.RequestTimeout == 0 {
		c.Tracker.RequestTimeout = 30 * time.Second
	}
	if c.Paths.CacheDir == "" {
		c.Paths.CacheDir = "cache"
	}
	if c.Paths.ResultsDir == "" {
		c.Paths.ResultsDir = "results"
	}
	if c.Report.RefreshSeconds == 0 {
		c.Report.RefreshSeconds = 60
	}
	if c.Report.QuoteURL == "" {
		c.Report.QuoteURL = "https://finance.yahoo.com/quote/%s"
	}
	if c.Report.Colormap == "" {
		c.Report.Colormap = "RdYlGn"
	}
	if c.Report.NeutralColor == "" {
		c.Report.NeutralColor = "#ccc"
	}
	if c.Report.MissingColor == "" {
		c.Report.MissingColor = "#fff"
	}
	if c.Database.InfluxDB == "" {
		c.Database.InfluxDB = "ipo_tracker"
	}
	if c.Housekeeping.Cron == "" {
		c.Housekeeping.Cron = "0 15 3 * * *"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	switch c.DataSource.PriceProvider {
	case "fmp", "yahoo":
		if c.DataSource.APIKey == "" {
			return fmt.Errorf("data_source.api_key is required for the IPO calendar")
		}
	case "alpaca":
		if c.DataSource.APIKey == "" {
			return fmt.Errorf("data_source.api_key is required for the IPO calendar")
		}
		if c.DataSource.AlpacaKey == "" || c.DataSource.AlpacaSecret == "" {
			return fmt.Errorf("data_source.alpaca_key and alpaca_secret are required for price_provider alpaca")
		}
	case "mock":
	default:
		return fmt.Errorf("data_source.price_provider %q is not one of fmp, yahoo, alpaca, mock", c.DataSource.PriceProvider)
	}
	if c.Tracker.Interval <= 0 {
		return fmt.Errorf("tracker.interval must be positive")
	}
	if c.Tracker.RequestTimeout <= 0 {
		return fmt.Errorf("tracker.request_timeout must be positive")
	}
	if c.Tracker.LookbackDays <= 0 {
		return fmt.Errorf("tracker.lookback_days must be positive")
	}
	if c.Tracker.MinBars <= 0 {
		return fmt.Errorf("tracker.min_bars must be positive")
	}
	if c.Tracker.PennyFloor < 0 {
		return fmt.Errorf("tracker.penny_floor must not be negative")
	}
	if c.Report.RefreshSeconds <= 0 {
		return fmt.Errorf("report.refresh_seconds must be positive")
	}
	if strings.Count(c.Report.QuoteURL, "%s") != 1 {
		return fmt.Errorf("report.quote_url must contain exactly one %%s")
	}
	if c.Housekeeping.RetentionDays < 0 {
		return fmt.Errorf("housekeeping.retention_days must not be negative")
	}
	if _, err := c.Palette(); err != nil {
		return err
	}
	return nil
}

// Palette builds the heatmap palette from the report section.
func (c *Config) Palette() (heatmap.Palette, error) {
	cm, err := heatmap.LookupColormap(c.Report.Colormap)
	if err != nil {
		return heatmap.Palette{}, fmt.Errorf("report.colormap: %w", err)
	}
	if _, err := heatmap.ParseHex(c.Report.NeutralColor); err != nil {
		return heatmap.Palette{}, fmt.Errorf("report.neutral_color: %w", err)
	}
	if _, err := heatmap.ParseHex(c.Report.MissingColor); err != nil {
		return heatmap.Palette{}, fmt.Errorf("report.missing_color: %w", err)
	}
	return heatmap.Palette{Colormap: cm, Neutral: c.Report.NeutralColor, Missing: c.Report.MissingColor}, nil
}

// HousekeepingEnabled reports whether expired files should be purged.
func (c *Config) HousekeepingEnabled() bool {
	return c.Housekeeping.RetentionDays > 0
}

// Retention is how long cache and results files are kept.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Housekeeping.RetentionDays) * 24 * time.Hour
}
