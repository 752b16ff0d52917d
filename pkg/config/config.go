// Package config loads the JSON configuration file shared by the binaries.
// Missing fields fall back to defaults, so an empty JSON object ({}) is a
// valid file; a zero-byte file is not valid JSON and fails to parse.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the top-level configuration.
type Config struct {
	MarketData MarketDataConfig `json:"market_data"`
	Engine     EngineConfig     `json:"engine"`
	Metrics    MetricsConfig    `json:"metrics"`
}

// MarketDataConfig selects providers and polling behaviour.
type MarketDataConfig struct {
	Providers        ProvidersConfig `json:"providers"`
	DefaultSymbol    string          `json:"default_symbol"`
	UpdateIntervalMS int             `json:"update_interval_ms"`
	TimeoutSeconds   int             `json:"timeout_seconds"`
}

// ProvidersConfig carries per-vendor settings.
type ProvidersConfig struct {
	YahooFinance struct {
		Enabled bool `json:"enabled"`
	} `json:"yahoo_finance"`
	AlphaVantage struct {
		Enabled bool   `json:"enabled"`
		APIKey  string `json:"api_key"`
	} `json:"alpha_vantage"`
	FinancialModelingPrep struct {
		Enabled bool   `json:"enabled"`
		APIKey  string `json:"api_key"`
	} `json:"financial_modeling_prep"`
}

// EngineConfig carries the book and bridge knobs.
type EngineConfig struct {
	DepthLevels int `json:"depth_levels"`
	TradeWindow int `json:"trade_window"`
	OrderBlocks int `json:"order_blocks"`
	LevelBlocks int `json:"level_blocks"`
	QueueSize   int `json:"queue_size"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    string `json:"port"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	var cfg Config
	cfg.MarketData.Providers.YahooFinance.Enabled = true
	cfg.MarketData.DefaultSymbol = "AAPL"
	cfg.MarketData.UpdateIntervalMS = 5000
	cfg.MarketData.TimeoutSeconds = 10
	cfg.Engine.DepthLevels = 10
	cfg.Engine.TradeWindow = 100
	cfg.Engine.OrderBlocks = 1
	cfg.Engine.LevelBlocks = 1
	cfg.Engine.QueueSize = 4096
	cfg.Metrics.Port = "9090"
	return cfg
}

// Load reads path and overlays it on the defaults. A missing file is not
// an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults backfills zero values after a partial file overlay.
func (c *Config) applyDefaults() {
	d := Default()
	if c.MarketData.DefaultSymbol == "" {
		c.MarketData.DefaultSymbol = d.MarketData.DefaultSymbol
	}
	if c.MarketData.UpdateIntervalMS <= 0 {
		c.MarketData.UpdateIntervalMS = d.MarketData.UpdateIntervalMS
	}
	if c.MarketData.TimeoutSeconds <= 0 {
		c.MarketData.TimeoutSeconds = d.MarketData.TimeoutSeconds
	}
	if c.Engine.DepthLevels <= 0 {
		c.Engine.DepthLevels = d.Engine.DepthLevels
	}
	if c.Engine.TradeWindow <= 0 {
		c.Engine.TradeWindow = d.Engine.TradeWindow
	}
	if c.Engine.OrderBlocks <= 0 {
		c.Engine.OrderBlocks = d.Engine.OrderBlocks
	}
	if c.Engine.LevelBlocks <= 0 {
		c.Engine.LevelBlocks = d.Engine.LevelBlocks
	}
	if c.Engine.QueueSize <= 0 {
		c.Engine.QueueSize = d.Engine.QueueSize
	}
	if c.Metrics.Port == "" {
		c.Metrics.Port = d.Metrics.Port
	}
}
