// Package config loads a backtest definition from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"dca-backtest-lab/internal/domain"
)

// Environment overrides.
const (
	EnvPostgresDSN   = "POSTGRES_DSN"
	EnvClickhouseDSN = "CLICKHOUSE_DSN"
	EnvRedisURL      = "REDIS_URL"
	EnvClassifierURL = "CLASSIFIER_WS_URL"
)

// ErrInvalidConfig wraps every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds one backtest definition plus its infrastructure endpoints.
type Config struct {
	Strategy domain.StrategyParameters `yaml:"strategy"`

	Backtest struct {
		StartDate string `yaml:"start_date"`
		EndDate   string `yaml:"end_date"`
		InputCSV  string `yaml:"input_csv"`
	} `yaml:"backtest"`

	Storage struct {
		PostgresDSN   string        `yaml:"postgres_dsn"`
		ClickhouseDSN string        `yaml:"clickhouse_dsn"`
		RedisURL      string        `yaml:"redis_url"`
		CacheTTL      time.Duration `yaml:"cache_ttl"`
	} `yaml:"storage"`

	Classifier struct {
		WebSocketURL string        `yaml:"websocket_url"`
		Timeout      time.Duration `yaml:"timeout"`
	} `yaml:"classifier"`

	Metrics struct {
		Namespace string `yaml:"namespace"`
		TextFile  string `yaml:"textfile"`
	} `yaml:"metrics"`
}

// Default returns a config with every default filled in.
func Default() *Config {
	cfg := &Config{Strategy: domain.DefaultParameters()}
	cfg.Storage.CacheTTL = 10 * time.Minute
	cfg.Classifier.Timeout = 30 * time.Second
	cfg.Metrics.Namespace = "dca_backtest"
	return cfg
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file yields the defaults. Keys absent from the file keep their
// default value.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if v := os.Getenv(EnvPostgresDSN); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv(EnvClickhouseDSN); v != "" {
		cfg.Storage.ClickhouseDSN = v
	}
	if v := os.Getenv(EnvRedisURL); v != "" {
		cfg.Storage.RedisURL = v
	}
	if v := os.Getenv(EnvClassifierURL); v != "" {
		cfg.Classifier.WebSocketURL = v
	}

	if cfg.Strategy.StrategyKind == "" {
		cfg.Strategy.StrategyKind = domain.StrategyKindLong
	}

	return cfg, nil
}

// DateRange parses the backtest window. Unset bounds are zero times.
func (c *Config) DateRange() (from, to time.Time, err error) {
	if c.Backtest.StartDate != "" {
		if from, err = time.Parse(time.DateOnly, c.Backtest.StartDate); err != nil {
			return from, to, fmt.Errorf("%w: backtest.start_date: %v", ErrInvalidConfig, err)
		}
	}
	if c.Backtest.EndDate != "" {
		if to, err = time.Parse(time.DateOnly, c.Backtest.EndDate); err != nil {
			return from, to, fmt.Errorf("%w: backtest.end_date: %v", ErrInvalidConfig, err)
		}
	}
	return from, to, nil
}

// Validate checks the strategy and the run definition.
func (c *Config) Validate() error {
	if c.Strategy.Symbol == "" {
		return fmt.Errorf("%w: strategy.symbol is required", ErrInvalidConfig)
	}
	if err := c.Strategy.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	from, to, err := c.DateRange()
	if err != nil {
		return err
	}
	if from.IsZero() != to.IsZero() {
		return fmt.Errorf("%w: backtest.start_date and end_date must be set together", ErrInvalidConfig)
	}
	if !from.IsZero() && to.Before(from) {
		return fmt.Errorf("%w: backtest.end_date before start_date", ErrInvalidConfig)
	}
	if c.Backtest.InputCSV == "" && c.Storage.ClickhouseDSN == "" {
		return fmt.Errorf("%w: backtest.input_csv or storage.clickhouse_dsn is required", ErrInvalidConfig)
	}
	if c.Storage.RedisURL != "" && c.Storage.ClickhouseDSN == "" {
		return fmt.Errorf("%w: storage.redis_url requires storage.clickhouse_dsn", ErrInvalidConfig)
	}
	return nil
}
