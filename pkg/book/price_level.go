package book

// PriceLevel holds every resting order at one price as an intrusive FIFO.
// The head is the time-priority winner. TotalQuantity tracks the sum of the
// linked orders' remaining quantities, OrderCount the number of links; both
// are maintained incrementally so depth queries never walk the list.
//
// The struct is padded out to a 64-byte cache line so adjacent hot levels
// in an arena block do not share lines.
type PriceLevel struct {
	Price         int64
	TotalQuantity uint64
	OrderCount    uint32

	head *Order
	tail *Order

	freeNext *PriceLevel // arena free-list link, nil while allocated
	_        [16]byte
}

// pushBack appends o at the tail, preserving submission order.
func (lvl *PriceLevel) pushBack(o *Order) {
	o.next, o.prev = nil, lvl.tail
	if lvl.tail != nil {
		lvl.tail.next = o
	} else {
		lvl.head = o
	}
	lvl.tail = o
	lvl.TotalQuantity += o.Remaining()
	lvl.OrderCount++
}

// unlink splices o out of the FIFO.
func (lvl *PriceLevel) unlink(o *Order) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		lvl.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		lvl.tail = o.prev
	}
	o.next, o.prev = nil, nil
	lvl.TotalQuantity -= o.Remaining()
	lvl.OrderCount--
}

// adjust reconciles the aggregate after o's filled quantity advanced while
// it stayed linked.
func (lvl *PriceLevel) adjust(o *Order, oldRemaining uint64) {
	lvl.TotalQuantity += o.Remaining() - oldRemaining
}

// peek returns the head order without unlinking it.
func (lvl *PriceLevel) peek() *Order {
	return lvl.head
}

// Empty reports whether no orders are linked.
func (lvl *PriceLevel) Empty() bool {
	return lvl.OrderCount == 0
}
