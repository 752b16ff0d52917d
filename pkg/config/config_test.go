package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, "AAPL", cfg.MarketData.DefaultSymbol)
	assert.True(t, cfg.MarketData.Providers.YahooFinance.Enabled)
	assert.Equal(t, 100, cfg.Engine.TradeWindow)
	assert.Equal(t, "9090", cfg.Metrics.Port)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"market_data": {
			"providers": {
				"alpha_vantage": {"enabled": true, "api_key": "k123"}
			},
			"default_symbol": "MSFT",
			"update_interval_ms": 1000
		},
		"engine": {"depth_levels": 5},
		"metrics": {"enabled": true, "port": "9100"}
	}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "MSFT", cfg.MarketData.DefaultSymbol)
	assert.Equal(t, 1000, cfg.MarketData.UpdateIntervalMS)
	assert.True(t, cfg.MarketData.Providers.AlphaVantage.Enabled)
	assert.Equal(t, "k123", cfg.MarketData.Providers.AlphaVantage.APIKey)
	assert.Equal(t, 5, cfg.Engine.DepthLevels)
	// Unset fields keep their defaults.
	assert.Equal(t, 100, cfg.Engine.TradeWindow)
	assert.Equal(t, 10, cfg.MarketData.TimeoutSeconds)
	assert.Equal(t, "9100", cfg.Metrics.Port)
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
