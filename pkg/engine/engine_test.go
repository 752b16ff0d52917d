package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanobook/nanobook/pkg/book"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(book.New(), Config{})
	e.Start()
	t.Cleanup(e.Stop)
	return e
}

func TestEngineSubmitAndQuery(t *testing.T) {
	e := newEngine(t)

	id, err := e.Submit(9995, 100, book.Buy, book.Limit)
	require.NoError(t, err)
	require.NotZero(t, id)

	state := e.MarketState()
	assert.Equal(t, int64(9995), state.BestBid)
	assert.Equal(t, uint64(100), state.BidQuantity)
}

func TestEngineCancelAndModify(t *testing.T) {
	e := newEngine(t)

	id, err := e.Submit(9995, 100, book.Buy, book.Limit)
	require.NoError(t, err)

	newID, ok := e.Modify(id, 9990, 50)
	require.True(t, ok)
	require.NotEqual(t, id, newID)

	assert.True(t, e.Cancel(newID))
	assert.False(t, e.Cancel(newID))
	assert.False(t, e.Cancel(id))
}

func TestEngineMatchesAcrossProducers(t *testing.T) {
	e := newEngine(t)

	var mu sync.Mutex
	var trades []book.Trade
	e.Book().OnTrade(func(tr book.Trade) {
		// Callback runs on the matching goroutine; the mutex only guards
		// against the test goroutine reading below.
		mu.Lock()
		trades = append(trades, tr)
		mu.Unlock()
	})

	const n = 50
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			_, err := e.Submit(10000, 1, book.Sell, book.Limit)
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			_, err := e.Submit(10000, 1, book.Buy, book.Limit)
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, trades, n)

	state := e.MarketState()
	assert.Zero(t, state.BidQuantity)
	assert.Zero(t, state.AskQuantity)
}

func TestEngineStoppedOperationsFail(t *testing.T) {
	e := New(book.New(), Config{QueueSize: 8})
	e.Start()
	e.Stop()

	_, err := e.Submit(10000, 1, book.Buy, book.Limit)
	assert.ErrorIs(t, err, ErrStopped)
	assert.False(t, e.Cancel(1))
}
