package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	DataSource struct {
		BaseURL        string        `yaml:"base_url"`
		APIKey         string        `yaml:"api_key"`
		Mock           bool          `yaml:"mock"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
	} `yaml:"data_source"`
	Quotes struct {
		Interval time.Duration `yaml:"interval"`
	} `yaml:"quotes"`
	History struct {
		FetchTimeout time.Duration `yaml:"fetch_timeout"`
		Lookback     time.Duration `yaml:"lookback"`
		Granularity  string        `yaml:"granularity"`
		Points       int           `yaml:"points"`
		Location     string        `yaml:"location"`
	} `yaml:"history"`
	Chart struct {
		Guard time.Duration `yaml:"guard"`
	} `yaml:"chart"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Session struct {
		User string `yaml:"user"`
	} `yaml:"session"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("COINGECKO_BASE_URL"); v != "" {
		c.DataSource.BaseURL = v
	}
	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		c.DataSource.APIKey = v
	}
	if v := os.Getenv("MOCK_DATA"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MOCK_DATA: %w", err)
		}
		c.DataSource.Mock = b
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("QUOTE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("QUOTE_INTERVAL: %w", err)
		}
		c.Quotes.Interval = d
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.DataSource.BaseURL == "" {
		c.DataSource.BaseURL = "https://api.coingecko.com/api/v3"
	}
	if c.DataSource.RequestTimeout == 0 {
		c.DataSource.RequestTimeout = 10 * time.Second
	}
	if c.Quotes.Interval == 0 {
		c.Quotes.Interval = 120 * time.Second
	}
	if c.History.FetchTimeout == 0 {
		c.History.FetchTimeout = 6 * time.Second
	}
	if c.History.Lookback == 0 {
		c.History.Lookback = 24 * time.Hour
	}
	if c.History.Granularity == "" {
		c.History.Granularity = "hourly"
	}
	if c.History.Points == 0 {
		c.History.Points = 7
	}
	if c.History.Location == "" {
		c.History.Location = "Local"
	}
	if c.Chart.Guard == 0 {
		c.Chart.Guard = 5 * time.Second
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Session.User == "" {
		c.Session.User = "demo"
	}
}

// Location resolves History.Location.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.History.Location)
}

// Validate checks that all required fields are set and consistent.
func (c *Config) Validate() error {
	if !c.DataSource.Mock && c.DataSource.BaseURL == "" {
		return fmt.Errorf("data_source.base_url is required unless data_source.mock is set")
	}
	if c.Quotes.Interval < time.Second {
		return fmt.Errorf("quotes.interval must be at least 1s")
	}
	if c.History.FetchTimeout <= 0 {
		return fmt.Errorf("history.fetch_timeout must be positive")
	}
	if c.History.Points < 2 || c.History.Points > 7 {
		return fmt.Errorf("history.points must be between 2 and 7")
	}
	if c.Chart.Guard <= 0 {
		return fmt.Errorf("chart.guard must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("history.location: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json")
	}
	return nil
}
