package book

import (
	rbt "github.com/emirpasic/gods/v2/trees/redblacktree"
)

// bookSide is one half of the book: a red-black tree of live price levels
// keyed on tick price. The comparator puts the best price for the side at
// the tree minimum (bids descending, asks ascending), so an in-order walk
// is always best-first. The best level is additionally cached so top() is
// O(1) between structural changes.
type bookSide struct {
	side   Side
	levels *rbt.Tree[int64, *PriceLevel]
	best   *PriceLevel
	arena  *levelArena
}

func newBookSide(side Side, arena *levelArena) *bookSide {
	cmp := func(a, b int64) int {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	}
	if side == Buy {
		cmp = func(a, b int64) int {
			switch {
			case a > b:
				return -1
			case a < b:
				return 1
			default:
				return 0
			}
		}
	}
	return &bookSide{
		side:   side,
		levels: rbt.NewWith[int64, *PriceLevel](cmp),
		arena:  arena,
	}
}

// better reports whether price a outranks price b on this side.
func (s *bookSide) better(a, b int64) bool {
	if s.side == Buy {
		return a > b
	}
	return a < b
}

// touch returns the level at price, creating it if absent.
func (s *bookSide) touch(price int64) (*PriceLevel, error) {
	if lvl, ok := s.levels.Get(price); ok {
		return lvl, nil
	}
	lvl, err := s.arena.alloc(price)
	if err != nil {
		return nil, err
	}
	s.levels.Put(price, lvl)
	if s.best == nil || s.better(price, s.best.Price) {
		s.best = lvl
	}
	return lvl, nil
}

// dropIfEmpty removes and recycles the level if it holds no orders.
func (s *bookSide) dropIfEmpty(lvl *PriceLevel) {
	if lvl == nil || !lvl.Empty() {
		return
	}
	s.levels.Remove(lvl.Price)
	if s.best == lvl {
		if node := s.levels.Left(); node != nil {
			s.best = node.Value
		} else {
			s.best = nil
		}
	}
	s.arena.release(lvl)
}

// top returns the best level, or nil for an empty side.
func (s *bookSide) top() *PriceLevel {
	return s.best
}

// find returns the level at an exact price, or nil.
func (s *bookSide) find(price int64) *PriceLevel {
	lvl, _ := s.levels.Get(price)
	return lvl
}

// len is the number of live levels.
func (s *bookSide) len() int {
	return s.levels.Size()
}

// depth collects up to max (price, quantity) entries in priority order.
func (s *bookSide) depth(max int) []LevelView {
	out := make([]LevelView, 0, max)
	it := s.levels.Iterator()
	for it.Next() {
		if len(out) >= max {
			break
		}
		lvl := it.Value()
		out = append(out, LevelView{Price: lvl.Price, Quantity: lvl.TotalQuantity})
	}
	return out
}

// walk visits levels best-first until fn returns false.
func (s *bookSide) walk(fn func(*PriceLevel) bool) {
	it := s.levels.Iterator()
	for it.Next() {
		if !fn(it.Value()) {
			return
		}
	}
}
