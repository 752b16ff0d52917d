// Package agent hosts the strategy layer: a trading agent with position
// and PnL accounting, a synthetic order-flow simulator, and a simple
// market-making policy. Everything talks to the engine through its public
// entry points and event subscriptions only.
package agent

import (
	"sync"

	"github.com/luxfi/log"

	"github.com/nanobook/nanobook/pkg/book"
)

// Trader is the slice of the engine the strategy layer needs.
type Trader interface {
	Submit(price int64, qty uint64, side book.Side, typ book.OrderType) (uint64, error)
	Cancel(id uint64) bool
	MarketState() book.MarketState
}

// Action is the agent's discrete action space.
type Action int

const (
	Hold Action = iota
	BuyMarket
	SellMarket
	BuyLimitAtBid
	SellLimitAtAsk
	BuyLimitAggressive  // one tick inside the spread
	SellLimitAggressive // one tick inside the spread
	CancelAll
)

// Position is the agent's inventory. Quantity is positive when long,
// prices are in ticks, PnL in currency units.
type Position struct {
	Quantity      int64
	AvgPrice      float64
	RealizedPnL   float64
	UnrealizedPnL float64
}

// Observation is what a policy sees before choosing an action.
type Observation struct {
	Market         book.MarketState
	Position       Position
	ActiveOrders   []uint64
	Cash           float64
	PortfolioValue float64
}

// Reward decomposes the feedback for one action.
type Reward struct {
	PnLChange        float64
	InventoryPenalty float64
	SpreadCapture    float64
	Total            float64
}

const ticksPerUnit = 100.0

// Agent submits orders and accounts for its fills.
//
// Fill attribution is subtle: trade events for an aggressive order fire on
// the matching goroutine while Submit is still in flight, before the
// caller learns the new identifier. The agent therefore captures all
// events seen during its own Submit call and reconciles them against the
// returned id afterwards; fills of already-resting orders are applied
// directly through the active set. HandleTrade and HandleOrderUpdate must
// be registered on the book before the engine starts.
type Agent struct {
	trader Trader
	logger log.Logger

	mu       sync.Mutex
	position Position
	cash     float64
	active   map[uint64]struct{}

	capturing      bool
	capturedTrades []book.Trade
	capturedOrders []book.Order

	inventoryPenaltyCoef float64
	spreadCaptureReward  float64

	totalTrades uint64
	totalVolume uint64

	lastPnL float64
}

// NewAgent creates an agent with the given starting cash (currency units).
func NewAgent(trader Trader, initialCash float64) *Agent {
	return &Agent{
		trader:               trader,
		logger:               log.Root().New("module", "agent"),
		cash:                 initialCash,
		active:               make(map[uint64]struct{}),
		inventoryPenaltyCoef: 0.01,
		spreadCaptureReward:  0.1,
	}
}

// SetInventoryPenalty tunes the inventory term of the reward.
func (a *Agent) SetInventoryPenalty(coef float64) { a.inventoryPenaltyCoef = coef }

// SetSpreadCaptureReward tunes the liquidity-provision term of the reward.
func (a *Agent) SetSpreadCaptureReward(r float64) { a.spreadCaptureReward = r }

// HandleTrade applies fills against resting orders and records everything
// seen during an in-flight Submit for reconciliation.
func (a *Agent) HandleTrade(t book.Trade) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.capturing {
		a.capturedTrades = append(a.capturedTrades, t)
	}
	if _, ok := a.active[t.BuyOrderID]; ok {
		a.applyFill(int64(t.Quantity), float64(t.Price))
	}
	if _, ok := a.active[t.SellOrderID]; ok {
		a.applyFill(-int64(t.Quantity), float64(t.Price))
	}
}

// HandleOrderUpdate retires our orders when they reach a terminal status.
func (a *Agent) HandleOrderUpdate(o book.Order) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.capturing {
		a.capturedOrders = append(a.capturedOrders, o)
	}
	if o.Status.Terminal() {
		delete(a.active, o.ID)
	}
}

// applyFill updates position, average price, realized PnL and cash for a
// signed quantity at a tick price. Caller holds the mutex.
func (a *Agent) applyFill(qty int64, price float64) {
	pos := a.position.Quantity

	if pos == 0 || (pos > 0) == (qty > 0) {
		// Extending (or opening) the position: blend the average.
		total := abs64(pos) + abs64(qty)
		a.position.AvgPrice = (a.position.AvgPrice*float64(abs64(pos)) + price*float64(abs64(qty))) / float64(total)
		a.position.Quantity += qty
	} else {
		// Reducing or flipping: realize PnL on the closed portion.
		closed := min(abs64(qty), abs64(pos))
		direction := float64(1)
		if pos < 0 {
			direction = -1
		}
		a.position.RealizedPnL += direction * float64(closed) * (price - a.position.AvgPrice) / ticksPerUnit
		a.position.Quantity += qty
		switch {
		case a.position.Quantity == 0:
			a.position.AvgPrice = 0
		case (a.position.Quantity > 0) != (pos > 0):
			a.position.AvgPrice = price
		}
	}

	a.cash -= float64(qty) * price / ticksPerUnit
	a.totalTrades++
	a.totalVolume += uint64(abs64(qty))
}

// Observe snapshots the market and the agent's own state.
func (a *Agent) Observe() Observation {
	state := a.trader.MarketState()

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.observation(state)
}

// observation builds the snapshot. Caller holds the mutex.
func (a *Agent) observation(state book.MarketState) Observation {
	obs := Observation{
		Market:   state,
		Position: a.position,
		Cash:     a.cash,
	}
	for id := range a.active {
		obs.ActiveOrders = append(obs.ActiveOrders, id)
	}

	if mid := state.MidPrice; mid > 0 && a.position.Quantity != 0 {
		obs.Position.UnrealizedPnL = float64(a.position.Quantity) * (mid - a.position.AvgPrice) / ticksPerUnit
	}
	obs.PortfolioValue = obs.Cash
	if mid := state.MidPrice; mid > 0 {
		obs.PortfolioValue += float64(a.position.Quantity) * mid / ticksPerUnit
	}
	return obs
}

// Execute performs one action and returns the resulting reward.
func (a *Agent) Execute(action Action, qty uint64) Reward {
	state := a.trader.MarketState()

	switch action {
	case Hold:
	case BuyMarket:
		a.submit(0, qty, book.Buy, book.Market)
	case SellMarket:
		a.submit(0, qty, book.Sell, book.Market)
	case BuyLimitAtBid:
		if state.BestBid != 0 {
			a.submit(state.BestBid, qty, book.Buy, book.Limit)
		}
	case SellLimitAtAsk:
		if state.BestAsk != 0 {
			a.submit(state.BestAsk, qty, book.Sell, book.Limit)
		}
	case BuyLimitAggressive:
		if state.BestBid != 0 {
			a.submit(state.BestBid+1, qty, book.Buy, book.Limit)
		}
	case SellLimitAggressive:
		if state.BestAsk != 0 {
			a.submit(state.BestAsk-1, qty, book.Sell, book.Limit)
		}
	case CancelAll:
		a.cancelAll()
	}

	return a.reward(action)
}

func (a *Agent) submit(price int64, qty uint64, side book.Side, typ book.OrderType) {
	a.mu.Lock()
	a.capturing = true
	a.capturedTrades = a.capturedTrades[:0]
	a.capturedOrders = a.capturedOrders[:0]
	a.mu.Unlock()

	id, err := a.trader.Submit(price, qty, side, typ)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.capturing = false

	if err != nil {
		a.logger.Debug("Order rejected", "side", side, "type", typ, "error", err)
		return
	}

	for _, t := range a.capturedTrades {
		if t.BuyOrderID == id {
			a.applyFill(int64(t.Quantity), float64(t.Price))
		}
		if t.SellOrderID == id {
			a.applyFill(-int64(t.Quantity), float64(t.Price))
		}
	}

	resting := true
	for _, o := range a.capturedOrders {
		if o.ID == id && o.Status.Terminal() {
			resting = false
		}
	}
	if resting {
		a.active[id] = struct{}{}
	}
}

func (a *Agent) cancelAll() {
	a.mu.Lock()
	ids := make([]uint64, 0, len(a.active))
	for id := range a.active {
		ids = append(ids, id)
	}
	a.mu.Unlock()

	for _, id := range ids {
		a.trader.Cancel(id)
	}
}

func (a *Agent) reward(action Action) Reward {
	state := a.trader.MarketState()

	a.mu.Lock()
	defer a.mu.Unlock()

	obs := a.observation(state)
	pnl := obs.Position.RealizedPnL + obs.Position.UnrealizedPnL
	r := Reward{
		PnLChange:        pnl - a.lastPnL,
		InventoryPenalty: a.inventoryPenaltyCoef * float64(abs64(a.position.Quantity)),
	}
	switch action {
	case BuyLimitAtBid, SellLimitAtAsk, BuyLimitAggressive, SellLimitAggressive:
		r.SpreadCapture = a.spreadCaptureReward
	}
	r.Total = r.PnLChange - r.InventoryPenalty + r.SpreadCapture
	a.lastPnL = pnl
	return r
}

// Position returns the current inventory snapshot.
func (a *Agent) Position() Position {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.position
}

// ActiveOrderCount returns the number of orders believed to be resting.
func (a *Agent) ActiveOrderCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.active)
}

// Stats returns fill totals.
func (a *Agent) Stats() (trades, volume uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalTrades, a.totalVolume
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
