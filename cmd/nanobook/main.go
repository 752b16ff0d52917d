// Command nanobook runs the matching engine against synthetic order flow
// with a market-making agent on top, reporting book and agent state as it
// goes.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luxfi/log"

	"github.com/nanobook/nanobook/pkg/agent"
	"github.com/nanobook/nanobook/pkg/book"
	"github.com/nanobook/nanobook/pkg/config"
	"github.com/nanobook/nanobook/pkg/engine"
	"github.com/nanobook/nanobook/pkg/marketdata"
	"github.com/nanobook/nanobook/pkg/metrics"
)

var (
	configPath = flag.String("config", "config/config.json", "Path to the config file")
	steps      = flag.Int("steps", 1000, "Number of strategy steps to run (0 = until interrupted)")
	basePrice  = flag.Int64("base", 10000, "Simulator base price in ticks")
	seed       = flag.Int64("seed", 1, "Simulator RNG seed")
)

func main() {
	flag.Parse()
	logger := log.Root().New("module", "nanobook")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

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

	trader := agent.NewAgent(eng, 1_000_000)
	bk.OnTrade(trader.HandleTrade)
	bk.OnOrderUpdate(trader.HandleOrderUpdate)

	eng.Start()
	defer eng.Stop()

	sim := agent.NewSimulator(eng, *basePrice, 0.005, *seed)
	maker := agent.NewMarketMaker(500, 10_000)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Starting market making session",
		"base_price", marketdata.FromTicks(*basePrice), "steps", *steps)

	report := time.NewTicker(2 * time.Second)
	defer report.Stop()

	step := 0
	for *steps == 0 || step < *steps {
		select {
		case <-sigChan:
			logger.Info("Interrupted, shutting down")
			printFinal(logger, eng, trader)
			return
		case <-report.C:
			printState(logger, eng, trader)
		default:
		}

		sim.Step(5)
		obs := trader.Observe()
		action := maker.Decide(obs)
		trader.Execute(action, maker.QuoteSize())
		step++
	}

	printFinal(logger, eng, trader)
}

func printState(logger log.Logger, eng *engine.Engine, trader *agent.Agent) {
	state := eng.MarketState()
	pos := trader.Position()
	logger.Info("Market state",
		"best_bid", marketdata.FromTicks(state.BestBid),
		"best_ask", marketdata.FromTicks(state.BestAsk),
		"spread", state.Spread,
		"imbalance", state.OrderFlowImbalance,
		"vwap", state.VWAP,
		"volatility", state.PriceVolatility,
		"position", pos.Quantity,
		"realized_pnl", pos.RealizedPnL,
	)
}

func printFinal(logger log.Logger, eng *engine.Engine, trader *agent.Agent) {
	obs := trader.Observe()
	trades, volume := trader.Stats()
	logger.Info("Session complete",
		"trades", trades,
		"volume", volume,
		"position", obs.Position.Quantity,
		"realized_pnl", obs.Position.RealizedPnL,
		"unrealized_pnl", obs.Position.UnrealizedPnL,
		"portfolio_value", obs.PortfolioValue,
	)

	state := eng.MarketState()
	logger.Info("Final book",
		"bid_levels", len(state.BidLevels),
		"ask_levels", len(state.AskLevels),
		"last_trade", marketdata.FromTicks(state.LastTradePrice),
		"vwap", state.VWAP,
	)
}
