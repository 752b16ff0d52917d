package book

// Block-based arenas for order and level cells. Each arena owns contiguous
// blocks of cells and threads a free list through the cells' own link
// fields, so steady-state allocation touches no heap machinery: alloc pops
// the free head, release pushes it back. Cell addresses are stable from
// alloc to release, which is what lets orders sit in intrusive level FIFOs.

const (
	orderBlockSize = 4096
	levelBlockSize = 1024
)

type orderArena struct {
	blocks    [][]Order
	free      *Order
	maxBlocks int
	live      int
}

func newOrderArena(initialBlocks, maxBlocks int) (*orderArena, error) {
	if initialBlocks < 1 {
		initialBlocks = 1
	}
	a := &orderArena{maxBlocks: maxBlocks}
	for i := 0; i < initialBlocks; i++ {
		if err := a.grow(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// grow appends one block and links its cells onto the free list.
func (a *orderArena) grow() error {
	if a.maxBlocks > 0 && len(a.blocks) >= a.maxBlocks {
		return ErrArenaExhausted
	}
	block := make([]Order, orderBlockSize)
	for i := range block[:orderBlockSize-1] {
		block[i].next = &block[i+1]
	}
	block[orderBlockSize-1].next = a.free
	a.free = &block[0]
	a.blocks = append(a.blocks, block)
	return nil
}

func (a *orderArena) alloc(id uint64, price int64, qty uint64, side Side, typ OrderType) (*Order, error) {
	if a.free == nil {
		if err := a.grow(); err != nil {
			return nil, err
		}
	}
	o := a.free
	a.free = o.next
	*o = Order{
		ID:        id,
		Price:     price,
		Quantity:  qty,
		Side:      side,
		Type:      typ,
		Status:    StatusNew,
		Timestamp: nowNanos(),
	}
	a.live++
	return o, nil
}

func (a *orderArena) release(o *Order) {
	o.prev = nil
	o.next = a.free
	a.free = o
	a.live--
}

type levelArena struct {
	blocks    [][]PriceLevel
	free      *PriceLevel
	maxBlocks int
	live      int
}

func newLevelArena(initialBlocks, maxBlocks int) (*levelArena, error) {
	if initialBlocks < 1 {
		initialBlocks = 1
	}
	a := &levelArena{maxBlocks: maxBlocks}
	for i := 0; i < initialBlocks; i++ {
		if err := a.grow(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *levelArena) grow() error {
	if a.maxBlocks > 0 && len(a.blocks) >= a.maxBlocks {
		return ErrArenaExhausted
	}
	block := make([]PriceLevel, levelBlockSize)
	for i := range block[:levelBlockSize-1] {
		block[i].freeNext = &block[i+1]
	}
	block[levelBlockSize-1].freeNext = a.free
	a.free = &block[0]
	a.blocks = append(a.blocks, block)
	return nil
}

func (a *levelArena) alloc(price int64) (*PriceLevel, error) {
	if a.free == nil {
		if err := a.grow(); err != nil {
			return nil, err
		}
	}
	lvl := a.free
	a.free = lvl.freeNext
	*lvl = PriceLevel{Price: price}
	a.live++
	return lvl, nil
}

func (a *levelArena) release(lvl *PriceLevel) {
	lvl.head, lvl.tail = nil, nil
	lvl.freeNext = a.free
	a.free = lvl
	a.live--
}
