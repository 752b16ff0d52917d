package marketdata

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/luxfi/log"
	"github.com/shopspring/decimal"
)

// StreamSource consumes a vendor websocket feed and republishes quotes on
// a channel. It reconnects after a fixed delay when the connection drops
// and stops when the context is cancelled.
type StreamSource struct {
	url            string
	symbols        []string
	logger         log.Logger
	reconnectDelay time.Duration
	out            chan Quote
}

// NewStreamSource creates a streaming source for the given endpoint.
func NewStreamSource(url string, symbols []string) *StreamSource {
	return &StreamSource{
		url:            url,
		symbols:        symbols,
		logger:         log.Root().New("module", "marketdata-stream"),
		reconnectDelay: time.Second,
		out:            make(chan Quote, 256),
	}
}

// streamMessage is the wire format of a quote update.
type streamMessage struct {
	Type    string           `json:"type"`
	Symbol  string           `json:"symbol"`
	Bid     *decimal.Decimal `json:"bid"`
	Ask     *decimal.Decimal `json:"ask"`
	BidSize *uint64          `json:"bid_size"`
	AskSize *uint64          `json:"ask_size"`
	Last    *decimal.Decimal `json:"last"`
}

type subscribeRequest struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
}

// Quotes returns the output channel. It is closed when the stream stops.
func (s *StreamSource) Quotes() <-chan Quote {
	return s.out
}

// Run connects and pumps quotes until ctx is cancelled.
func (s *StreamSource) Run(ctx context.Context) {
	defer close(s.out)
	for {
		if err := s.connectAndRead(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("Stream disconnected, reconnecting", "error", err, "delay", s.reconnectDelay)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.reconnectDelay):
		}
	}
}

func (s *StreamSource) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Drop the read loop when the context goes away.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	if err := conn.WriteJSON(subscribeRequest{Type: "subscribe", Symbols: s.symbols}); err != nil {
		return err
	}
	s.logger.Info("Stream connected", "url", s.url, "symbols", s.symbols)

	for {
		var msg streamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		if msg.Type != "quote" {
			continue
		}
		q := Quote{Symbol: msg.Symbol, Timestamp: time.Now().UnixNano()}
		if msg.Bid != nil {
			q.Bid = ToTicks(*msg.Bid)
		}
		if msg.Ask != nil {
			q.Ask = ToTicks(*msg.Ask)
		}
		if msg.BidSize != nil {
			q.BidSize = *msg.BidSize
		}
		if msg.AskSize != nil {
			q.AskSize = *msg.AskSize
		}
		if msg.Last != nil {
			q.Last = ToTicks(*msg.Last)
		}
		select {
		case s.out <- q:
		default:
			// Consumer is behind; drop the update rather than block
			// the read loop.
		}
	}
}
