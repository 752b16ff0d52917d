package book

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarketStateEmptyBook(t *testing.T) {
	b := New()
	state := b.MarketState()

	assert.Zero(t, state.BestBid)
	assert.Zero(t, state.BestAsk)
	assert.Zero(t, state.Spread)
	assert.Zero(t, state.MidPrice)
	assert.Empty(t, state.BidLevels)
	assert.Empty(t, state.AskLevels)
	assert.Zero(t, state.OrderFlowImbalance)
	assert.Zero(t, state.VWAP)
	assert.Zero(t, state.PriceVolatility)
	assert.NotZero(t, state.Timestamp)
}

func TestMarketStateTopOfBook(t *testing.T) {
	b := New()

	_, err := b.Submit(9995, 300, Buy, Limit)
	require.NoError(t, err)
	_, err = b.Submit(9990, 200, Buy, Limit)
	require.NoError(t, err)
	_, err = b.Submit(10005, 100, Sell, Limit)
	require.NoError(t, err)

	state := b.MarketState()
	assert.Equal(t, int64(9995), state.BestBid)
	assert.Equal(t, int64(10005), state.BestAsk)
	assert.Equal(t, uint64(300), state.BidQuantity)
	assert.Equal(t, uint64(100), state.AskQuantity)
	assert.Equal(t, int64(10), state.Spread)
	assert.Equal(t, 10000.0, state.MidPrice)

	require.Len(t, state.BidLevels, 2)
	assert.Equal(t, LevelView{Price: 9995, Quantity: 300}, state.BidLevels[0])
	assert.Equal(t, LevelView{Price: 9990, Quantity: 200}, state.BidLevels[1])
	require.Len(t, state.AskLevels, 1)

	// (300 - 100) / (300 + 100)
	assert.InDelta(t, 0.5, state.OrderFlowImbalance, 1e-12)
}

func TestMarketStateDepthCap(t *testing.T) {
	b, err := NewWithConfig(Config{DepthLevels: 3, TradeWindow: 100, OrderBlocks: 1, LevelBlocks: 1})
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		_, err := b.Submit(int64(10010+i), 10, Sell, Limit)
		require.NoError(t, err)
	}

	state := b.MarketState()
	require.Len(t, state.AskLevels, 3)
	assert.Equal(t, int64(10010), state.AskLevels[0].Price)
	assert.Equal(t, int64(10012), state.AskLevels[2].Price)
}

func TestVWAPMatchesNaiveRecomputation(t *testing.T) {
	b := New()

	var sumPQ, sumQ float64
	b.OnTrade(func(tr Trade) {
		sumPQ += float64(tr.Price) * float64(tr.Quantity)
		sumQ += float64(tr.Quantity)
	})

	_, err := b.Submit(10000, 70, Sell, Limit)
	require.NoError(t, err)
	_, err = b.Submit(10004, 60, Sell, Limit)
	require.NoError(t, err)
	_, err = b.Submit(10004, 100, Buy, Limit)
	require.NoError(t, err)
	_, err = b.Submit(10004, 30, Buy, Limit)
	require.NoError(t, err)

	state := b.MarketState()
	require.Positive(t, sumQ)
	assert.Equal(t, sumPQ/sumQ, state.VWAP)
	assert.Equal(t, int64(10004), state.LastTradePrice)
}

func TestPriceVolatility(t *testing.T) {
	b := New()

	// Two trades at different prices: population std dev of {10000, 10010}.
	_, err := b.Submit(10000, 10, Sell, Limit)
	require.NoError(t, err)
	_, err = b.Submit(10000, 10, Buy, Limit)
	require.NoError(t, err)
	_, err = b.Submit(10010, 10, Buy, Limit)
	require.NoError(t, err)
	_, err = b.Submit(10010, 10, Sell, Limit)
	require.NoError(t, err)

	state := b.MarketState()
	assert.InDelta(t, 5.0, state.PriceVolatility, 1e-9)
}

func TestPriceVolatilitySingleTrade(t *testing.T) {
	b := New()

	_, err := b.Submit(10000, 10, Sell, Limit)
	require.NoError(t, err)
	_, err = b.Submit(10000, 10, Buy, Limit)
	require.NoError(t, err)

	assert.Zero(t, b.MarketState().PriceVolatility)
}

func TestRollingWindowEvictsOldest(t *testing.T) {
	b, err := NewWithConfig(Config{DepthLevels: 10, TradeWindow: 4, OrderBlocks: 1, LevelBlocks: 1})
	require.NoError(t, err)

	cross := func(price int64) {
		_, err := b.Submit(price, 10, Sell, Limit)
		require.NoError(t, err)
		_, err = b.Submit(price, 10, Buy, Limit)
		require.NoError(t, err)
	}

	// Six trades; the window should only see the last four.
	prices := []int64{10000, 10100, 10200, 10300, 10400, 10500}
	for _, p := range prices {
		cross(p)
	}

	want := populationStdDev([]int64{10200, 10300, 10400, 10500})
	assert.InDelta(t, want, b.MarketState().PriceVolatility, 1e-9)
}

func populationStdDev(prices []int64) float64 {
	var sum float64
	for _, p := range prices {
		sum += float64(p)
	}
	mean := sum / float64(len(prices))
	var sq float64
	for _, p := range prices {
		d := float64(p) - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(prices)))
}
