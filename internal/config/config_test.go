package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dca-backtest-lab/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backtest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsSurviveMissingKeys(t *testing.T) {
	path := writeConfig(t, `
strategy:
  symbol: TSLA
  max_lots: 5
  normalize_to_reference: false
backtest:
  start_date: "2021-01-01"
  end_date: "2021-12-31"
  input_csv: prices.csv
storage:
  cache_ttl: 90s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "TSLA", cfg.Strategy.Symbol)
	assert.Equal(t, 5, cfg.Strategy.MaxLots)
	assert.False(t, cfg.Strategy.NormalizeToReference)
	// untouched keys keep defaults
	def := domain.DefaultParameters()
	assert.Equal(t, def.LotSizeUSD, cfg.Strategy.LotSizeUSD)
	assert.Equal(t, def.TrailingStopOrderType, cfg.Strategy.TrailingStopOrderType)
	assert.Equal(t, 90*time.Second, cfg.Storage.CacheTTL)
	assert.Equal(t, 30*time.Second, cfg.Classifier.Timeout)
	assert.Equal(t, "dca_backtest", cfg.Metrics.Namespace)

	require.NoError(t, cfg.Validate())
	from, to, err := cfg.DateRange()
	require.NoError(t, err)
	assert.Equal(t, 2021, from.Year())
	assert.Equal(t, time.December, to.Month())
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultParameters(), cfg.Strategy)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvPostgresDSN, "postgres://env/db")
	t.Setenv(EnvClickhouseDSN, "clickhouse://env:9000/prices")
	t.Setenv(EnvRedisURL, "redis://env:6379/0")
	t.Setenv(EnvClassifierURL, "ws://env/classify")

	path := writeConfig(t, `
storage:
  postgres_dsn: postgres://file/db
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/db", cfg.Storage.PostgresDSN)
	assert.Equal(t, "clickhouse://env:9000/prices", cfg.Storage.ClickhouseDSN)
	assert.Equal(t, "redis://env:6379/0", cfg.Storage.RedisURL)
	assert.Equal(t, "ws://env/classify", cfg.Classifier.WebSocketURL)
}

func TestLoad_ParseError(t *testing.T) {
	_, err := Load(writeConfig(t, "strategy: [unterminated"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing symbol", func(c *Config) { c.Strategy.Symbol = "" }},
		{"bad order type", func(c *Config) { c.Strategy.TrailingStopOrderType = "stop" }},
		{"bad start date", func(c *Config) { c.Backtest.StartDate = "01/02/2021" }},
		{"start without end", func(c *Config) { c.Backtest.StartDate = "2021-01-01" }},
		{"end without start", func(c *Config) { c.Backtest.EndDate = "2021-01-01" }},
		{"end before start", func(c *Config) { c.Backtest.StartDate, c.Backtest.EndDate = "2021-02-01", "2021-01-01" }},
		{"no price source", func(c *Config) { c.Backtest.InputCSV = "" }},
		{"cache without clickhouse", func(c *Config) { c.Storage.RedisURL = "redis://x" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Strategy.Symbol = "AAPL"
			cfg.Backtest.InputCSV = "prices.csv"
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
