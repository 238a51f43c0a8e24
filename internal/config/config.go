package config

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"velowind/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Col is a monitored mountain pass
type Col struct {
	ID        string  `yaml:"id"`
	Name      string  `yaml:"name"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// Location returns the col as a query point
func (c Col) Location() models.GeoLocation {
	return models.GeoLocation{Lat: c.Latitude, Lon: c.Longitude, Name: c.Name}
}

var (
	instance *Config
	once     sync.Once
)

// Config enumerates every recognized option. Zero values are replaced by
// Default() before the file is applied.
type Config struct {
	API struct {
		BaseURL        string  `yaml:"base_url"`
		Key            string  `yaml:"key"`
		Model          string  `yaml:"model"`
		TimeoutMs      int     `yaml:"timeout_ms"`
		RateLimitRPS   float64 `yaml:"rate_limit_rps"`
		RateLimitBurst int     `yaml:"rate_limit_burst"`
	} `yaml:"api"`
	CacheDuration   int               `yaml:"cache_duration"` // seconds
	AlertThresholds models.Thresholds `yaml:"alert_thresholds"`
	Debounce        int               `yaml:"debounce"`         // ms, reserved
	RefreshInterval int               `yaml:"refresh_interval"` // ms
	Units           string            `yaml:"units"`
	Redis           struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Stream   string `yaml:"stream"`
	} `yaml:"redis"`
	Database struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Cols []Col `yaml:"cols"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	c := &Config{}
	c.API.BaseURL = "https://api.windy.com/api"
	c.API.Model = "gfs"
	c.API.TimeoutMs = 10000
	c.API.RateLimitRPS = 5
	c.API.RateLimitBurst = 10
	c.CacheDuration = 1800
	c.AlertThresholds = models.Thresholds{Warning: 30, Danger: 45}
	c.Debounce = 500
	c.RefreshInterval = 900000
	c.Units = "metric"
	c.Redis.Addr = "localhost:6379"
	c.Redis.Stream = "wind_warnings"
	c.Server.Addr = ":8080"
	return c
}

// Load reads configPath once, applies environment overrides (a .env file in
// the working directory is honoured) and validates the result. An empty path
// uses defaults and environment only.
func Load(configPath string) (*Config, error) {
	var err error
	once.Do(func() {
		if envErr := godotenv.Load(); envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
			err = fmt.Errorf("failed to load .env: %w", envErr)
			return
		}

		cfg, parseErr := Parse(configPath)
		if parseErr != nil {
			err = parseErr
			return
		}
		instance = cfg
	})

	return instance, err
}

// Parse builds a validated Config from configPath and the environment
// without touching the singleton
func Parse(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, readErr := os.ReadFile(configPath)
		if readErr != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, readErr)
		}

		if parseErr := yaml.Unmarshal(data, cfg); parseErr != nil {
			return nil, fmt.Errorf("failed to parse config: %w", parseErr)
		}
	}

	cfg.applyEnv()

	if validateErr := cfg.validate(); validateErr != nil {
		return nil, validateErr
	}
	return cfg, nil
}

func Get() *Config {
	if instance == nil {
		panic("config not loaded - call config.Load() first")
	}
	return instance
}

// CacheTTL returns the cache duration as a time.Duration
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheDuration) * time.Second
}

// Timeout returns the upstream request timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutMs) * time.Millisecond
}

// RefreshEvery returns the polling interval for collectors
func (c *Config) RefreshEvery() time.Duration {
	return time.Duration(c.RefreshInterval) * time.Millisecond
}

// FindCol looks up a configured col by id
func (c *Config) FindCol(id string) (Col, bool) {
	for _, col := range c.Cols {
		if col.ID == id {
			return col, true
		}
	}
	return Col{}, false
}

func (c *Config) validate() error {
	if c.CacheDuration <= 0 {
		return fmt.Errorf("cache_duration must be positive, got %d", c.CacheDuration)
	}
	if c.AlertThresholds.Warning <= 0 || c.AlertThresholds.Danger <= c.AlertThresholds.Warning {
		return fmt.Errorf("alert_thresholds must satisfy 0 < warning < danger, got %+v", c.AlertThresholds)
	}
	if c.Units != "metric" && c.Units != "imperial" {
		return fmt.Errorf("units must be metric or imperial, got %q", c.Units)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh_interval must be positive, got %d", c.RefreshInterval)
	}

	seen := make(map[string]bool)
	for _, col := range c.Cols {
		if col.ID == "" {
			return fmt.Errorf("cols: id cannot be empty")
		}
		if seen[col.ID] {
			return fmt.Errorf("cols: duplicate id %q", col.ID)
		}
		seen[col.ID] = true
		if col.Latitude < -90 || col.Latitude > 90 || col.Longitude < -180 || col.Longitude > 180 {
			return fmt.Errorf("cols: %q has invalid coordinates", col.ID)
		}
	}
	return nil
}
