package book

// Book is the matching engine and its order book. It owns both sides, the
// arenas, and the order index; every mutation goes through Submit, Cancel
// or Modify on a single goroutine.
type Book struct {
	cfg Config

	bids *bookSide
	asks *bookSide

	orders map[uint64]*Order

	orderArena *orderArena
	levelArena *levelArena

	lastID uint64

	// Rolling trade statistics for the state projector. recentPrices and
	// recentQuantities form a ring of the last cfg.TradeWindow trades;
	// cumulativeVolume and cumulativePQ run over the whole session.
	recentPrices     []int64
	recentQuantities []uint64
	recentHead       int
	cumulativeVolume float64
	cumulativePQ     float64
	lastTradePrice   int64
	lastTradeQty     uint64

	tradeSubs []TradeCallback
	orderSubs []OrderCallback
	stateSubs []StateCallback
}

// New creates a book with DefaultConfig.
func New() *Book {
	b, _ := NewWithConfig(DefaultConfig())
	return b
}

// NewWithConfig creates a book with explicit knobs. It fails only if the
// arena block limits forbid the requested preallocation.
func NewWithConfig(cfg Config) (*Book, error) {
	if cfg.DepthLevels <= 0 {
		cfg.DepthLevels = 10
	}
	if cfg.TradeWindow <= 0 {
		cfg.TradeWindow = 100
	}
	orders, err := newOrderArena(cfg.OrderBlocks, cfg.MaxOrderBlocks)
	if err != nil {
		return nil, err
	}
	levels, err := newLevelArena(cfg.LevelBlocks, cfg.MaxLevelBlocks)
	if err != nil {
		return nil, err
	}
	b := &Book{
		cfg:              cfg,
		orders:           make(map[uint64]*Order),
		orderArena:       orders,
		levelArena:       levels,
		recentPrices:     make([]int64, 0, cfg.TradeWindow),
		recentQuantities: make([]uint64, 0, cfg.TradeWindow),
	}
	b.bids = newBookSide(Buy, levels)
	b.asks = newBookSide(Sell, levels)
	return b, nil
}

// Submit places a new order and matches it against the opposite side.
// It returns the session-monotonic identifier assigned to the order.
// The identifier is zero only when the input never produced an order
// (invalid quantity, side or type, or an order arena that cannot grow);
// rejected orders (market against an empty book, unfillable FOK) consume
// an identifier, emit a Rejected order update, and return that identifier
// together with the sentinel error. A Limit residual that needs a new
// price level while the level arena cannot grow is cancelled instead and
// its identifier is returned with ErrArenaExhausted.
func (b *Book) Submit(price int64, qty uint64, side Side, typ OrderType) (uint64, error) {
	if qty == 0 {
		return 0, ErrInvalidQuantity
	}
	if side != Buy && side != Sell {
		return 0, ErrInvalidSide
	}
	if typ > FOK {
		return 0, ErrInvalidType
	}

	opposite, same := b.asks, b.bids
	if side == Sell {
		opposite, same = b.bids, b.asks
	}

	b.lastID++
	o, err := b.orderArena.alloc(b.lastID, price, qty, side, typ)
	if err != nil {
		return 0, err
	}
	b.orders[o.ID] = o

	if typ == Market {
		top := opposite.top()
		if top == nil {
			return b.reject(o, ErrNoLiquidity)
		}
		// Record the touched price; matching itself walks as deep as the
		// opposite side goes.
		o.Price = top.Price
	}

	// FOK dry run: no fill may be emitted unless the whole quantity is
	// crossable right now.
	if typ == FOK && b.availableQuantity(o, opposite) < o.Quantity {
		return b.reject(o, ErrFOKUnfillable)
	}

	b.match(o, opposite)

	id := o.ID
	switch {
	case o.IsFilled():
		b.retire(o)
	case typ == Limit:
		lvl, lerr := same.touch(o.Price)
		if lerr != nil {
			o.Status = Cancelled
			b.notifyOrder(o)
			b.retire(o)
			b.notifyState()
			return id, lerr
		}
		lvl.pushBack(o)
		b.notifyOrder(o)
	default: // Market or IOC residual
		o.Status = Cancelled
		b.notifyOrder(o)
		b.retire(o)
	}

	b.notifyState()
	return id, nil
}

// match runs the price-time priority loop: always the head of the best
// opposite level, at the passive order's price, until the incoming order
// is filled, the opposite side empties, or the prices stop crossing.
func (b *Book) match(o *Order, opposite *bookSide) {
	for o.Remaining() > 0 {
		best := opposite.top()
		if best == nil {
			break
		}
		if o.Type != Market && !crosses(o.Side, o.Price, best.Price) {
			break
		}
		passive := best.peek()
		qty := min(o.Remaining(), passive.Remaining())
		b.execute(passive, o, qty, best)
		if passive.IsFilled() {
			best.unlink(passive)
			b.retire(passive)
			opposite.dropIfEmpty(best)
		}
	}
}

// execute fills qty between the resting and incoming orders and emits the
// trade and both order updates.
func (b *Book) execute(passive, aggressor *Order, qty uint64, lvl *PriceLevel) {
	oldRemaining := passive.Remaining()
	passive.Filled += qty
	aggressor.Filled += qty
	lvl.adjust(passive, oldRemaining)

	passive.Status = PartiallyFilled
	if passive.IsFilled() {
		passive.Status = Filled
	}
	aggressor.Status = PartiallyFilled
	if aggressor.IsFilled() {
		aggressor.Status = Filled
	}

	t := Trade{
		Price:     passive.Price,
		Quantity:  qty,
		TakerSide: aggressor.Side,
		Timestamp: nowNanos(),
	}
	if aggressor.Side == Buy {
		t.BuyOrderID, t.SellOrderID = aggressor.ID, passive.ID
	} else {
		t.BuyOrderID, t.SellOrderID = passive.ID, aggressor.ID
	}

	b.recordTrade(t)
	b.notifyTrade(t)
	b.notifyOrder(passive)
	b.notifyOrder(aggressor)
}

// availableQuantity sums resting quantity on the opposite side over levels
// the order's price crosses, stopping once the requested quantity is
// covered. Read-only.
func (b *Book) availableQuantity(o *Order, opposite *bookSide) uint64 {
	var sum uint64
	opposite.walk(func(lvl *PriceLevel) bool {
		if !crosses(o.Side, o.Price, lvl.Price) {
			return false
		}
		sum += lvl.TotalQuantity
		return sum < o.Quantity
	})
	return sum
}

// Cancel removes a live order. It returns false for unknown or already
// terminal identifiers, so a second cancel of the same order is a no-op.
func (b *Book) Cancel(id uint64) bool {
	o, ok := b.orders[id]
	if !ok {
		return false
	}
	side := b.bids
	if o.Side == Sell {
		side = b.asks
	}
	if lvl := side.find(o.Price); lvl != nil {
		lvl.unlink(o)
		side.dropIfEmpty(lvl)
	}
	o.Status = Cancelled
	b.notifyOrder(o)
	b.retire(o)
	return true
}

// Modify is cancel-and-replace: the original loses its queue position and
// the replacement gets a fresh identifier, which is returned. The boolean
// reports whether the original existed and was live; invalid replacement
// parameters leave the original untouched.
func (b *Book) Modify(id uint64, newPrice int64, newQty uint64) (uint64, bool) {
	o, ok := b.orders[id]
	if !ok {
		return 0, false
	}
	if newQty == 0 {
		return 0, false
	}
	side, typ := o.Side, o.Type
	b.Cancel(id)
	newID, _ := b.Submit(newPrice, newQty, side, typ)
	return newID, true
}

// reject finalises an order that never touched the book.
func (b *Book) reject(o *Order, err error) (uint64, error) {
	id := o.ID
	o.Status = Rejected
	b.notifyOrder(o)
	b.retire(o)
	b.notifyState()
	return id, err
}

// retire removes the order from the index and recycles its cell. The cell
// must already be unlinked from any level.
func (b *Book) retire(o *Order) {
	delete(b.orders, o.ID)
	b.orderArena.release(o)
}

func (b *Book) recordTrade(t Trade) {
	if len(b.recentPrices) < b.cfg.TradeWindow {
		b.recentPrices = append(b.recentPrices, t.Price)
		b.recentQuantities = append(b.recentQuantities, t.Quantity)
	} else {
		b.recentPrices[b.recentHead] = t.Price
		b.recentQuantities[b.recentHead] = t.Quantity
		b.recentHead = (b.recentHead + 1) % b.cfg.TradeWindow
	}
	b.cumulativeVolume += float64(t.Quantity)
	b.cumulativePQ += float64(t.Price) * float64(t.Quantity)
	b.lastTradePrice = t.Price
	b.lastTradeQty = t.Quantity
}

// crosses reports whether an aggressor at aggressorPrice can trade against
// a passive level at passivePrice. Equality crosses.
func crosses(side Side, aggressorPrice, passivePrice int64) bool {
	if side == Buy {
		return aggressorPrice >= passivePrice
	}
	return aggressorPrice <= passivePrice
}

// BestBid returns the highest bid price, if any.
func (b *Book) BestBid() (int64, bool) {
	if lvl := b.bids.top(); lvl != nil {
		return lvl.Price, true
	}
	return 0, false
}

// BestAsk returns the lowest ask price, if any.
func (b *Book) BestAsk() (int64, bool) {
	if lvl := b.asks.top(); lvl != nil {
		return lvl.Price, true
	}
	return 0, false
}

// MidPrice returns the integer midpoint of the touch, flooring odd sums
// to the lower tick.
func (b *Book) MidPrice() (int64, bool) {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return 0, false
	}
	return floorHalf(bid + ask), true
}

// Spread returns best ask minus best bid.
func (b *Book) Spread() (int64, bool) {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return 0, false
	}
	return ask - bid, true
}

// VolumeAt returns the aggregate resting quantity at an exact price.
func (b *Book) VolumeAt(price int64, side Side) uint64 {
	s := b.bids
	if side == Sell {
		s = b.asks
	}
	if lvl := s.find(price); lvl != nil {
		return lvl.TotalQuantity
	}
	return 0
}

// GetOrder returns a snapshot of a live order.
func (b *Book) GetOrder(id uint64) (Order, bool) {
	if o, ok := b.orders[id]; ok {
		return o.snapshot(), true
	}
	return Order{}, false
}

// OrderCount is the number of live orders.
func (b *Book) OrderCount() int {
	return len(b.orders)
}

// LevelCounts returns the number of live bid and ask levels.
func (b *Book) LevelCounts() (bids, asks int) {
	return b.bids.len(), b.asks.len()
}

// Depth returns up to max levels per side in price priority order.
func (b *Book) Depth(max int) (bids, asks []LevelView) {
	return b.bids.depth(max), b.asks.depth(max)
}

func floorHalf(sum int64) int64 {
	if sum < 0 && sum%2 != 0 {
		return sum/2 - 1
	}
	return sum / 2
}
