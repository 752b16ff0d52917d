package marketdata

import (
	"context"
	"fmt"

	"github.com/luxfi/log"
)

// Aggregator fans a request out over its providers in registration order
// and returns the first answer. A provider failure is logged and the next
// one is tried, so a dead vendor degrades the feed instead of killing it.
type Aggregator struct {
	providers []Provider
	logger    log.Logger
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		logger: log.Root().New("module", "marketdata"),
	}
}

// AddProvider appends a provider; earlier providers are preferred.
func (a *Aggregator) AddProvider(p Provider) {
	a.providers = append(a.providers, p)
	a.logger.Info("Registered market data provider", "provider", p.Name())
}

// Quote returns the first provider's quote that succeeds.
func (a *Aggregator) Quote(ctx context.Context, symbol string) (Quote, error) {
	for _, p := range a.providers {
		q, err := p.Quote(ctx, symbol)
		if err != nil {
			a.logger.Warn("Provider quote failed", "provider", p.Name(), "symbol", symbol, "error", err)
			continue
		}
		return q, nil
	}
	return Quote{}, fmt.Errorf("no provider returned a quote for %q", symbol)
}

// Bars returns the first provider's bars that succeed.
func (a *Aggregator) Bars(ctx context.Context, symbol, interval string, limit int) ([]Bar, error) {
	for _, p := range a.providers {
		bars, err := p.Bars(ctx, symbol, interval, limit)
		if err != nil {
			a.logger.Warn("Provider bars failed", "provider", p.Name(), "symbol", symbol, "error", err)
			continue
		}
		return bars, nil
	}
	return nil, fmt.Errorf("no provider returned bars for %q", symbol)
}

// AvailableProviders lists the providers currently answering.
func (a *Aggregator) AvailableProviders(ctx context.Context) []string {
	var names []string
	for _, p := range a.providers {
		if p.Available(ctx) {
			names = append(names, p.Name())
		}
	}
	return names
}
