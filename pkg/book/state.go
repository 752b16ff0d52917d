package book

import "math"

// MarketState is the bounded snapshot handed to strategies: top of book,
// depth, and derived flow/price features. It is produced on demand and
// never aliases book memory.
type MarketState struct {
	BestBid     int64
	BestAsk     int64
	BidQuantity uint64
	AskQuantity uint64

	Spread   int64
	MidPrice float64

	BidLevels []LevelView
	AskLevels []LevelView

	// OrderFlowImbalance is (bidQty - askQty) / (bidQty + askQty) over the
	// top of book; zero when both sides are empty.
	OrderFlowImbalance float64

	LastTradePrice    int64
	LastTradeQuantity uint64

	// VWAP is the session volume-weighted average price.
	VWAP float64

	// PriceVolatility is the population standard deviation of the prices
	// in the rolling trade window.
	PriceVolatility float64

	Timestamp int64
}

// MarketState projects the current snapshot. Read-only; O(depth + window).
func (b *Book) MarketState() MarketState {
	state := MarketState{Timestamp: nowNanos()}

	if lvl := b.bids.top(); lvl != nil {
		state.BestBid = lvl.Price
		state.BidQuantity = lvl.TotalQuantity
	}
	if lvl := b.asks.top(); lvl != nil {
		state.BestAsk = lvl.Price
		state.AskQuantity = lvl.TotalQuantity
	}
	if state.BestBid != 0 && state.BestAsk != 0 {
		state.Spread = state.BestAsk - state.BestBid
		state.MidPrice = float64(state.BestBid+state.BestAsk) / 2.0
	}

	state.BidLevels = b.bids.depth(b.cfg.DepthLevels)
	state.AskLevels = b.asks.depth(b.cfg.DepthLevels)

	if total := state.BidQuantity + state.AskQuantity; total > 0 {
		state.OrderFlowImbalance =
			(float64(state.BidQuantity) - float64(state.AskQuantity)) / float64(total)
	}

	state.LastTradePrice = b.lastTradePrice
	state.LastTradeQuantity = b.lastTradeQty

	if b.cumulativeVolume > 0 {
		state.VWAP = b.cumulativePQ / b.cumulativeVolume
	}

	state.PriceVolatility = b.priceVolatility()

	return state
}

// priceVolatility computes the population standard deviation over the
// rolling window; zero with fewer than two trades.
func (b *Book) priceVolatility() float64 {
	n := len(b.recentPrices)
	if n < 2 {
		return 0
	}
	var sum float64
	for _, p := range b.recentPrices {
		sum += float64(p)
	}
	mean := sum / float64(n)
	var sq float64
	for _, p := range b.recentPrices {
		d := float64(p) - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(n))
}
