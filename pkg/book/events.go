package book

// Subscriber callbacks. All three kinds run synchronously on the matching
// goroutine, in registration order. Trade and order-update callbacks fire
// per matching step; market-state callbacks fire once at the end of a
// completed submit, never mid-match (the book is transiently crossed
// inside the matching loop). Callbacks receive value copies and must not
// mutate the book.
type (
	TradeCallback func(Trade)
	OrderCallback func(Order)
	StateCallback func(MarketState)
)

// OnTrade registers a trade subscriber and returns its registration index.
func (b *Book) OnTrade(fn TradeCallback) int {
	b.tradeSubs = append(b.tradeSubs, fn)
	return len(b.tradeSubs) - 1
}

// OnOrderUpdate registers an order-update subscriber.
func (b *Book) OnOrderUpdate(fn OrderCallback) int {
	b.orderSubs = append(b.orderSubs, fn)
	return len(b.orderSubs) - 1
}

// OnMarketState registers a market-state subscriber.
func (b *Book) OnMarketState(fn StateCallback) int {
	b.stateSubs = append(b.stateSubs, fn)
	return len(b.stateSubs) - 1
}

func (b *Book) notifyTrade(t Trade) {
	for _, fn := range b.tradeSubs {
		fn(t)
	}
}

func (b *Book) notifyOrder(o *Order) {
	if len(b.orderSubs) == 0 {
		return
	}
	snap := o.snapshot()
	for _, fn := range b.orderSubs {
		fn(snap)
	}
}

func (b *Book) notifyState() {
	if len(b.stateSubs) == 0 {
		return
	}
	state := b.MarketState()
	for _, fn := range b.stateSubs {
		fn(state)
	}
}
