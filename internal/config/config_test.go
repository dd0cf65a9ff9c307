package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
portfolio:
  path: configs/portfolio.json
`

func TestLoad_MinimalFileGetsDefaults(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.App.Env)
	assert.Equal(t, ":9985", cfg.App.HTTPAddr)
	assert.Equal(t, "https://fapi.binance.com", cfg.Market.RESTBaseURL)
	assert.Equal(t, 15, cfg.Market.HTTPTimeoutSeconds)
	assert.Equal(t, "1d", cfg.Market.Interval)
	assert.Equal(t, "BTCUSDT", cfg.Market.BenchmarkSymbol)
	assert.True(t, cfg.Signals.SentimentEnabled)
	assert.Equal(t, "data/plans.db", cfg.Store.PlanDBPath)
	assert.Equal(t, "4h", cfg.Engine.RefreshInterval)
	assert.Equal(t, 60, cfg.Engine.QuoteIntervalSeconds)
	assert.Equal(t, "configs/tuning.yaml", cfg.Engine.TuningPath)
}

func TestLoad_FileValuesWin(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, `
app:
  http_addr: ":8080"
  log_level: debug
market:
  interval: 4h
signals:
  sentiment_enabled: false
portfolio:
  path: /tmp/book.json
  sync_interval: 30m
engine:
  quote_interval_seconds: 15
`))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.App.HTTPAddr)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "4h", cfg.Market.Interval)
	assert.False(t, cfg.Signals.SentimentEnabled, "explicit false survives defaulting")
	assert.Equal(t, "30m", cfg.Portfolio.SyncInterval)
	assert.Equal(t, 15, cfg.Engine.QuoteIntervalSeconds)
}

func TestLoad_Validation(t *testing.T) {
	t.Run("portfolio path required", func(t *testing.T) {
		_, err := Load(writeConfigFile(t, `
app:
  env: dev
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "portfolio.path")
	})

	t.Run("bad refresh interval", func(t *testing.T) {
		_, err := Load(writeConfigFile(t, minimalConfig+`
engine:
  refresh_interval: often
`))
		assert.Error(t, err)
	})

	t.Run("proxy needs a url", func(t *testing.T) {
		_, err := Load(writeConfigFile(t, minimalConfig+`
market:
  proxy_enabled: true
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rest_proxy_url")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := Load("   ")
		assert.Error(t, err)
	})
}
