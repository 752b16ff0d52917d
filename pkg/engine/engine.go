// Package engine runs a book on one dedicated goroutine and marshals every
// caller onto it. The book itself is single-threaded by contract; the
// engine is the ordered single-consumer queue that lets market data feeds,
// strategies and UIs live on their own goroutines while all mutations and
// state reads happen in one total order.
package engine

import (
	"errors"
	"runtime"
	"time"

	"github.com/luxfi/log"

	"github.com/nanobook/nanobook/pkg/book"
	"github.com/nanobook/nanobook/pkg/metrics"
)

// ErrStopped is returned for operations issued after Stop.
var ErrStopped = errors.New("engine stopped")

const defaultQueueSize = 4096

type opKind uint8

const (
	opSubmit opKind = iota
	opCancel
	opModify
	opState
)

type command struct {
	kind  opKind
	price int64
	qty   uint64
	side  book.Side
	typ   book.OrderType
	id    uint64
	reply chan result
}

type result struct {
	id    uint64
	ok    bool
	err   error
	state book.MarketState
}

// Engine owns the book and the matching goroutine.
type Engine struct {
	book    *book.Book
	logger  log.Logger
	metrics *metrics.Metrics

	cmds chan command
	stop chan struct{}
	done chan struct{}
}

// Config carries the engine knobs.
type Config struct {
	// QueueSize is the command channel capacity.
	QueueSize int
	// Metrics is optional; nil disables instrumentation.
	Metrics *metrics.Metrics
}

// New wraps a book. Register subscribers on b before calling Start;
// callbacks then run on the matching goroutine.
func New(b *book.Book, cfg Config) *Engine {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	e := &Engine{
		book:    b,
		logger:  log.Root().New("module", "engine"),
		metrics: cfg.Metrics,
		cmds:    make(chan command, cfg.QueueSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if e.metrics != nil {
		b.OnTrade(func(t book.Trade) {
			e.metrics.RecordTrade(t.Quantity)
		})
	}
	return e
}

// Book returns the underlying book. Only touch it before Start or from a
// registered callback; any other access races with the matching goroutine.
func (e *Engine) Book() *book.Book {
	return e.book
}

// Start launches the matching loop.
func (e *Engine) Start() {
	go e.run()
	e.logger.Info("Matching engine started")
}

// Stop shuts the loop down and fails all queued operations with ErrStopped.
func (e *Engine) Stop() {
	close(e.stop)
	<-e.done
	e.logger.Info("Matching engine stopped")
}

func (e *Engine) run() {
	// Pin the matching loop to one OS thread: better cache locality, no
	// scheduler migration in the middle of a burst.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(e.done)

	for {
		select {
		case <-e.stop:
			e.drain()
			return
		case cmd := <-e.cmds:
			cmd.reply <- e.apply(cmd)
		}
	}
}

// drain rejects whatever was queued behind the stop signal.
func (e *Engine) drain() {
	for {
		select {
		case cmd := <-e.cmds:
			cmd.reply <- result{err: ErrStopped}
		default:
			return
		}
	}
}

func (e *Engine) apply(cmd command) result {
	start := time.Now()
	var res result
	switch cmd.kind {
	case opSubmit:
		res.id, res.err = e.book.Submit(cmd.price, cmd.qty, cmd.side, cmd.typ)
	case opCancel:
		res.ok = e.book.Cancel(cmd.id)
	case opModify:
		res.id, res.ok = e.book.Modify(cmd.id, cmd.price, cmd.qty)
	case opState:
		res.state = e.book.MarketState()
	}
	if e.metrics != nil {
		e.metrics.ObserveMatchingLatency(float64(time.Since(start).Nanoseconds()))
		if cmd.kind == opSubmit {
			e.metrics.RecordOrder()
			if res.err != nil {
				e.metrics.RecordReject()
			}
		}
		bid, _ := e.book.BestBid()
		ask, _ := e.book.BestAsk()
		e.metrics.UpdateTopOfBook(bid, ask)
		e.metrics.UpdateDepth(e.book.LevelCounts())
	}
	return res
}

func (e *Engine) call(cmd command) (result, error) {
	cmd.reply = make(chan result, 1)
	select {
	case e.cmds <- cmd:
	case <-e.done:
		return result{}, ErrStopped
	}
	select {
	case res := <-cmd.reply:
		return res, res.err
	case <-e.done:
		// The loop may have answered just before shutting down.
		select {
		case res := <-cmd.reply:
			return res, res.err
		default:
			return result{}, ErrStopped
		}
	}
}

// Submit places an order from any goroutine.
func (e *Engine) Submit(price int64, qty uint64, side book.Side, typ book.OrderType) (uint64, error) {
	res, err := e.call(command{kind: opSubmit, price: price, qty: qty, side: side, typ: typ})
	if err != nil {
		return res.id, err
	}
	return res.id, nil
}

// Cancel cancels a live order from any goroutine.
func (e *Engine) Cancel(id uint64) bool {
	res, err := e.call(command{kind: opCancel, id: id})
	if err != nil {
		return false
	}
	return res.ok
}

// Modify cancels and replaces from any goroutine, returning the new
// identifier.
func (e *Engine) Modify(id uint64, price int64, qty uint64) (uint64, bool) {
	res, err := e.call(command{kind: opModify, id: id, price: price, qty: qty})
	if err != nil {
		return 0, false
	}
	return res.id, res.ok
}

// MarketState projects a snapshot on the matching goroutine.
func (e *Engine) MarketState() book.MarketState {
	res, _ := e.call(command{kind: opState})
	return res.state
}
