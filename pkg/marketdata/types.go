// Package marketdata pulls external reference prices into the tick domain
// of the book. Providers poll third-party HTTP APIs (or stream over a
// websocket), the aggregator fails over between them, and the feed
// republishes quotes to whoever drives the engine. Vendor prices arrive as
// arbitrary decimals and are converted to int64 ticks (cents) at the edge.
package marketdata

import (
	"context"

	"github.com/shopspring/decimal"
)

// Quote is a top-of-book snapshot from a vendor, in ticks.
type Quote struct {
	Symbol    string
	Bid       int64
	Ask       int64
	BidSize   uint64
	AskSize   uint64
	Last      int64
	Timestamp int64 // unix nanoseconds
}

// Bar is one OHLCV candle, prices in ticks.
type Bar struct {
	Symbol    string
	Timestamp int64 // unix seconds, bar open
	Open      int64
	High      int64
	Low       int64
	Close     int64
	Volume    uint64
}

// Provider is a single market data vendor.
type Provider interface {
	// Quote fetches the current quote for a symbol.
	Quote(ctx context.Context, symbol string) (Quote, error)
	// Bars fetches recent OHLCV history.
	Bars(ctx context.Context, symbol, interval string, limit int) ([]Bar, error)
	// Available reports whether the provider can be used. Depending on the
	// vendor this is a live request or only a check that an API key is set.
	Available(ctx context.Context) bool
	// Name identifies the provider in logs.
	Name() string
}

// ticksPerUnit converts currency units to ticks (cents).
var ticksPerUnit = decimal.NewFromInt(100)

// ToTicks converts a vendor decimal price to integer ticks, rounding to
// the nearest tick.
func ToTicks(price decimal.Decimal) int64 {
	return price.Mul(ticksPerUnit).Round(0).IntPart()
}

// FromTicks renders a tick price back to a decimal currency amount.
func FromTicks(ticks int64) decimal.Decimal {
	return decimal.NewFromInt(ticks).Div(ticksPerUnit)
}
