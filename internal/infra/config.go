package infra

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application settings. Secrets can be overridden
// through environment variables after the file is loaded.
type Config struct {
	App struct {
		Name        string `yaml:"name"`
		Environment string `yaml:"environment"` // "test" or "production"
	} `yaml:"app"`

	Auth struct {
		TokenURL     string `yaml:"token_url"`
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		Username     string `yaml:"username"`
		Password     string `yaml:"password"`
		Scope        string `yaml:"scope"`
	} `yaml:"auth"`

	Venue struct {
		WSURL      string `yaml:"ws_url"`
		APIVersion string `yaml:"api_version"`
		Username   string `yaml:"username"`
	} `yaml:"venue"`

	Trading struct {
		PortfolioID        string  `yaml:"portfolio_id"`
		DeliveryAreaID     int     `yaml:"delivery_area_id"`
		ThresholdMW        string  `yaml:"threshold_mw"`
		WindowIntervals    int     `yaml:"window_intervals"`
		GateClosureMinutes int     `yaml:"gate_closure_minutes"`
		TickMinutes        int     `yaml:"tick_minutes"`
		OrdersPerSecond    float64 `yaml:"orders_per_second"`
	} `yaml:"trading"`

	Forecast struct {
		Path     string `yaml:"path"`
		Timezone string `yaml:"timezone"` // interval numbering of the file: "cet" or "eet"
	} `yaml:"forecast"`

	Storage struct {
		DBPath  string `yaml:"db_path"`
		FileDir string `yaml:"file_dir"`
	} `yaml:"storage"`

	Session struct {
		HandshakeTimeoutSec  int `yaml:"handshake_timeout_sec"`
		HeartbeatMillis      int `yaml:"heartbeat_millis"`
		MaxReconnectAttempts int `yaml:"max_reconnect_attempts"`
	} `yaml:"session"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file, then applies
// environment overrides and defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// IsTestEnv reports whether the engine runs against the venue's test
// environment, which trades in kW instead of MW.
func (c *Config) IsTestEnv() bool {
	return strings.ToLower(c.App.Environment) != "production"
}

func (c *Config) applyDefaults() {
	if c.App.Environment == "" {
		c.App.Environment = "test"
	}
	if c.Venue.APIVersion == "" {
		c.Venue.APIVersion = "v1"
	}
	if c.Trading.DeliveryAreaID == 0 {
		c.Trading.DeliveryAreaID = 111
	}
	if c.Trading.ThresholdMW == "" {
		c.Trading.ThresholdMW = "0.1"
	}
	if c.Trading.WindowIntervals == 0 {
		c.Trading.WindowIntervals = 8
	}
	if c.Trading.GateClosureMinutes == 0 {
		c.Trading.GateClosureMinutes = 5
	}
	if c.Trading.TickMinutes == 0 {
		c.Trading.TickMinutes = 15
	}
	if c.Trading.OrdersPerSecond == 0 {
		c.Trading.OrdersPerSecond = 2
	}
	if c.Session.HandshakeTimeoutSec == 0 {
		c.Session.HandshakeTimeoutSec = 10
	}
	if c.Session.HeartbeatMillis == 0 {
		c.Session.HeartbeatMillis = 10000
	}
	if c.Session.MaxReconnectAttempts == 0 {
		c.Session.MaxReconnectAttempts = 5
	}
	if c.Forecast.Timezone == "" {
		c.Forecast.Timezone = "cet"
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = "data/intraday.db"
	}
	if c.Storage.FileDir == "" {
		c.Storage.FileDir = "data/positions"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Venue.WSURL == "" || (!strings.HasPrefix(c.Venue.WSURL, "ws://") && !strings.HasPrefix(c.Venue.WSURL, "wss://")) {
		return fmt.Errorf("invalid venue WS URL: %q", c.Venue.WSURL)
	}
	if c.Venue.Username == "" {
		return fmt.Errorf("venue username is required")
	}
	if c.Trading.WindowIntervals < 1 || c.Trading.WindowIntervals > 96 {
		return fmt.Errorf("window_intervals must be within 1..96, got %d", c.Trading.WindowIntervals)
	}
	if c.Trading.TickMinutes <= 0 {
		return fmt.Errorf("tick_minutes must be positive")
	}
	if tz := strings.ToLower(c.Forecast.Timezone); tz != "cet" && tz != "eet" {
		return fmt.Errorf("forecast timezone must be cet or eet, got %q", c.Forecast.Timezone)
	}
	return nil
}

// overrideWithEnv applies environment variables over file values.
// Secrets should come from the environment, not the config file.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("BRM_CLIENT_ID"); v != "" {
		cfg.Auth.ClientID = v
	}
	if v := os.Getenv("BRM_CLIENT_SECRET"); v != "" {
		cfg.Auth.ClientSecret = v
	}
	if v := os.Getenv("BRM_USERNAME"); v != "" {
		cfg.Auth.Username = v
	}
	if v := os.Getenv("BRM_PASSWORD"); v != "" {
		cfg.Auth.Password = v
	}
	if v := os.Getenv("BRM_ENVIRONMENT"); v != "" {
		cfg.App.Environment = v
	}
	if v := os.Getenv("BRM_PORTFOLIO_ID"); v != "" {
		cfg.Trading.PortfolioID = v
	}
}
