package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSide(t *testing.T, s Side) *bookSide {
	t.Helper()
	arena, err := newLevelArena(1, 0)
	require.NoError(t, err)
	return newBookSide(s, arena)
}

func TestBidSideOrdersDescending(t *testing.T) {
	s := newSide(t, Buy)
	arena, err := newOrderArena(1, 0)
	require.NoError(t, err)

	for i, price := range []int64{9990, 10000, 9995} {
		lvl, err := s.touch(price)
		require.NoError(t, err)
		o, err := arena.alloc(uint64(i+1), price, 10, Buy, Limit)
		require.NoError(t, err)
		lvl.pushBack(o)
	}

	require.NotNil(t, s.top())
	assert.Equal(t, int64(10000), s.top().Price)

	depth := s.depth(10)
	require.Len(t, depth, 3)
	assert.Equal(t, int64(10000), depth[0].Price)
	assert.Equal(t, int64(9995), depth[1].Price)
	assert.Equal(t, int64(9990), depth[2].Price)
}

func TestAskSideOrdersAscending(t *testing.T) {
	s := newSide(t, Sell)
	arena, err := newOrderArena(1, 0)
	require.NoError(t, err)

	for i, price := range []int64{10010, 10000, 10005} {
		lvl, err := s.touch(price)
		require.NoError(t, err)
		o, err := arena.alloc(uint64(i+1), price, 10, Sell, Limit)
		require.NoError(t, err)
		lvl.pushBack(o)
	}

	assert.Equal(t, int64(10000), s.top().Price)
	depth := s.depth(2)
	require.Len(t, depth, 2)
	assert.Equal(t, int64(10000), depth[0].Price)
	assert.Equal(t, int64(10005), depth[1].Price)
}

func TestTouchReturnsExistingLevel(t *testing.T) {
	s := newSide(t, Buy)

	lvl, err := s.touch(10000)
	require.NoError(t, err)
	again, err := s.touch(10000)
	require.NoError(t, err)
	assert.Same(t, lvl, again)
	assert.Equal(t, 1, s.len())
}

func TestDropIfEmptyUpdatesBest(t *testing.T) {
	s := newSide(t, Sell)
	arena, err := newOrderArena(1, 0)
	require.NoError(t, err)

	best, err := s.touch(10000)
	require.NoError(t, err)
	next, err := s.touch(10005)
	require.NoError(t, err)
	o, err := arena.alloc(1, 10005, 10, Sell, Limit)
	require.NoError(t, err)
	next.pushBack(o)

	// Best level is empty and gets dropped; the cache moves to 10005.
	s.dropIfEmpty(best)
	require.NotNil(t, s.top())
	assert.Equal(t, int64(10005), s.top().Price)
	assert.Equal(t, 1, s.len())

	// Non-empty levels survive dropIfEmpty.
	s.dropIfEmpty(next)
	assert.Equal(t, 1, s.len())

	next.unlink(o)
	s.dropIfEmpty(next)
	assert.Nil(t, s.top())
	assert.Equal(t, 0, s.len())
}

func TestWalkStopsEarly(t *testing.T) {
	s := newSide(t, Sell)
	for _, price := range []int64{10000, 10005, 10010} {
		_, err := s.touch(price)
		require.NoError(t, err)
	}

	var visited []int64
	s.walk(func(lvl *PriceLevel) bool {
		visited = append(visited, lvl.Price)
		return len(visited) < 2
	})
	assert.Equal(t, []int64{10000, 10005}, visited)
}
