package agent

// MarketMaker is a minimal two-sided quoting policy: keep a quote on each
// side of the touch, skew to one side when inventory builds up, and pull
// everything when the position limit is breached.
type MarketMaker struct {
	quoteSize   uint64
	maxPosition int64

	buyNext bool
}

// NewMarketMaker creates a policy quoting size per side with a hard
// position limit.
func NewMarketMaker(quoteSize uint64, maxPosition int64) *MarketMaker {
	return &MarketMaker{
		quoteSize:   quoteSize,
		maxPosition: maxPosition,
	}
}

// QuoteSize returns the per-quote size the policy wants.
func (m *MarketMaker) QuoteSize() uint64 {
	return m.quoteSize
}

// Decide maps an observation to the next action.
func (m *MarketMaker) Decide(obs Observation) Action {
	pos := obs.Position.Quantity

	if abs64(pos) > m.maxPosition {
		return CancelAll
	}
	if pos > m.maxPosition/2 {
		return SellLimitAtAsk
	}
	if pos < -m.maxPosition/2 {
		return BuyLimitAtBid
	}

	if len(obs.ActiveOrders) < 2 && obs.Market.BestBid != 0 && obs.Market.BestAsk != 0 {
		m.buyNext = !m.buyNext
		if m.buyNext {
			return BuyLimitAtBid
		}
		return SellLimitAtAsk
	}
	return Hold
}
