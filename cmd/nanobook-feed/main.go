// Command nanobook-feed drives the book from live vendor quotes: each
// fresh quote replaces the synthetic touch (one bid, one ask) so the
// resting book shadows the real market.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luxfi/log"

	"github.com/nanobook/nanobook/pkg/book"
	"github.com/nanobook/nanobook/pkg/config"
	"github.com/nanobook/nanobook/pkg/engine"
	"github.com/nanobook/nanobook/pkg/marketdata"
	"github.com/nanobook/nanobook/pkg/metrics"
)

var (
	configPath = flag.String("config", "config/config.json", "Path to the config file")
	symbol     = flag.String("symbol", "", "Symbol to follow (defaults to the configured one)")
)

func main() {
	flag.Parse()
	logger := log.Root().New("module", "nanobook-feed")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	sym := *symbol
	if sym == "" {
		sym = cfg.MarketData.DefaultSymbol
	}

	agg := marketdata.NewAggregator()
	timeout := time.Duration(cfg.MarketData.TimeoutSeconds) * time.Second
	if cfg.MarketData.Providers.YahooFinance.Enabled {
		agg.AddProvider(marketdata.NewYahooProvider(timeout))
	}
	if cfg.MarketData.Providers.AlphaVantage.Enabled {
		agg.AddProvider(marketdata.NewAlphaVantageProvider(cfg.MarketData.Providers.AlphaVantage.APIKey, timeout))
	}
	if cfg.MarketData.Providers.FinancialModelingPrep.Enabled {
		agg.AddProvider(marketdata.NewFMPProvider(cfg.MarketData.Providers.FinancialModelingPrep.APIKey, timeout))
	}

	available := agg.AvailableProviders(context.Background())
	if len(available) == 0 {
		logger.Error("No market data providers available")
		os.Exit(1)
	}
	logger.Info("Market data providers ready", "providers", available)

	bk, err := book.NewWithConfig(book.Config{
		DepthLevels: cfg.Engine.DepthLevels,
		TradeWindow: cfg.Engine.TradeWindow,
		OrderBlocks: cfg.Engine.OrderBlocks,
		LevelBlocks: cfg.Engine.LevelBlocks,
	})
	if err != nil {
		logger.Error("Failed to create book", "error", err)
		os.Exit(1)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New("nanobook")
		m.StartServer(cfg.Metrics.Port)
	}

	eng := engine.New(bk, engine.Config{QueueSize: cfg.Engine.QueueSize, Metrics: m})
	eng.Start()
	defer eng.Stop()

	// The shadow quotes currently resting in the book.
	var bidID, askID uint64

	feed := marketdata.NewFeed(agg, sym, time.Duration(cfg.MarketData.UpdateIntervalMS)*time.Millisecond)
	feed.OnQuote(func(q marketdata.Quote) {
		logger.Info("Quote",
			"symbol", q.Symbol,
			"bid", marketdata.FromTicks(q.Bid),
			"ask", marketdata.FromTicks(q.Ask),
			"last", marketdata.FromTicks(q.Last),
		)

		if bidID != 0 {
			eng.Cancel(bidID)
		}
		if askID != 0 {
			eng.Cancel(askID)
		}

		bid, ask := q.Bid, q.Ask
		if bid > 0 && ask > 0 && ask <= bid {
			// Trade-price-only vendors collapse the touch; keep a
			// one-tick spread instead of self-crossing.
			ask = bid + 1
		}
		bidSize, askSize := q.BidSize, q.AskSize
		if bidSize == 0 {
			bidSize = 100
		}
		if askSize == 0 {
			askSize = 100
		}
		if bid > 0 {
			bidID, _ = eng.Submit(bid, bidSize, book.Buy, book.Limit)
		}
		if ask > 0 {
			askID, _ = eng.Submit(ask, askSize, book.Sell, book.Limit)
		}

		state := eng.MarketState()
		logger.Info("Book state",
			"best_bid", marketdata.FromTicks(state.BestBid),
			"best_ask", marketdata.FromTicks(state.BestAsk),
			"mid", state.MidPrice,
			"imbalance", state.OrderFlowImbalance,
		)
	})
	feed.Start()
	defer feed.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down")
}
