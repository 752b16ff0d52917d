package agent

import (
	"math"
	"math/rand"

	"github.com/nanobook/nanobook/pkg/book"
)

// Simulator generates synthetic order flow around a base price, for
// exercising strategies without a live feed. Prices are drawn from a
// normal distribution around the base, sizes from an exponential one, and
// a small fraction of orders go in as market orders.
type Simulator struct {
	trader Trader
	rng    *rand.Rand

	basePrice   int64
	volatility  float64 // stddev as a fraction of base price
	meanSize    float64
	marketRatio float64
}

// NewSimulator creates a simulator seeded for reproducibility.
func NewSimulator(trader Trader, basePrice int64, volatility float64, seed int64) *Simulator {
	if volatility <= 0 {
		volatility = 0.005
	}
	return &Simulator{
		trader:      trader,
		rng:         rand.New(rand.NewSource(seed)),
		basePrice:   basePrice,
		volatility:  volatility,
		meanSize:    100,
		marketRatio: 0.1,
	}
}

// SetVolatility adjusts the price dispersion.
func (s *Simulator) SetVolatility(v float64) { s.volatility = v }

// SetMeanSize adjusts the mean order size.
func (s *Simulator) SetMeanSize(m float64) { s.meanSize = m }

// Step submits n random orders.
func (s *Simulator) Step(n int) {
	for i := 0; i < n; i++ {
		s.submitRandom()
	}
}

func (s *Simulator) submitRandom() {
	side := book.Buy
	if s.rng.Intn(2) == 1 {
		side = book.Sell
	}

	qty := uint64(math.Max(1, s.rng.ExpFloat64()*s.meanSize))

	if s.rng.Float64() < s.marketRatio {
		if _, err := s.trader.Submit(0, qty, side, book.Market); err != nil {
			return // empty opposite side; nothing to hit
		}
		return
	}

	offset := s.rng.NormFloat64() * s.volatility * float64(s.basePrice)
	price := s.basePrice + int64(offset)
	// Keep passive flow passive-ish: bids tilt below base, asks above.
	if side == book.Buy && price > s.basePrice {
		price = s.basePrice - (price - s.basePrice)
	}
	if side == book.Sell && price < s.basePrice {
		price = s.basePrice + (s.basePrice - price)
	}
	if price <= 0 {
		price = 1
	}
	_, _ = s.trader.Submit(price, qty, side, book.Limit)
}
