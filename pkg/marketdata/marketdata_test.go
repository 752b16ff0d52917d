package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToTicksRounding(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"100.00", 10000},
		{"99.955", 9996}, // half up
		{"99.954", 9995},
		{"0.01", 1},
		{"231.47", 23147},
	}
	for _, c := range cases {
		d, err := decimal.NewFromString(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, ToTicks(d), "price %s", c.in)
	}
}

func TestFromTicks(t *testing.T) {
	assert.Equal(t, "100.05", FromTicks(10005).StringFixed(2))
}

func TestYahooQuoteParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbols"))
		w.Write([]byte(`{
			"quoteResponse": {"result": [{
				"symbol": "AAPL",
				"bid": 231.45, "ask": 231.55,
				"bidSize": 9, "askSize": 12,
				"regularMarketPrice": 231.50
			}]}
		}`))
	}))
	defer srv.Close()

	p := NewYahooProvider(time.Second)
	p.setBaseURLs(srv.URL, srv.URL)

	q, err := p.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int64(23145), q.Bid)
	assert.Equal(t, int64(23155), q.Ask)
	assert.Equal(t, uint64(9), q.BidSize)
	assert.Equal(t, uint64(12), q.AskSize)
	assert.Equal(t, int64(23150), q.Last)
}

func TestYahooQuoteFallsBackToLast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteResponse": {"result": [{"symbol": "AAPL", "regularMarketPrice": 231.50}]}}`))
	}))
	defer srv.Close()

	p := NewYahooProvider(time.Second)
	p.setBaseURLs(srv.URL, srv.URL)

	q, err := p.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int64(23150), q.Bid)
	assert.Equal(t, int64(23150), q.Ask)
}

func TestYahooBarsSkipNulls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"chart": {"result": [{
				"timestamp": [1700000000, 1700000060, 1700000120],
				"indicators": {"quote": [{
					"open":   [100.0, null, 100.2],
					"high":   [100.1, null, 100.3],
					"low":    [99.9,  null, 100.1],
					"close":  [100.0, null, 100.25],
					"volume": [1000,  null, 2000]
				}]}
			}]}
		}`))
	}))
	defer srv.Close()

	p := NewYahooProvider(time.Second)
	p.setBaseURLs(srv.URL, srv.URL)

	bars, err := p.Bars(context.Background(), "AAPL", "1m", 0)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, int64(10000), bars[0].Close)
	assert.Equal(t, int64(10025), bars[1].Close)
	assert.Equal(t, uint64(2000), bars[1].Volume)
}

func TestAlphaVantageQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		assert.Equal(t, "demo", r.URL.Query().Get("apikey"))
		w.Write([]byte(`{"Global Quote": {"01. symbol": "IBM", "05. price": "143.5500", "06. volume": "3812"}}`))
	}))
	defer srv.Close()

	p := NewAlphaVantageProvider("demo", time.Second)
	p.setBaseURL(srv.URL)
	p.minInterval = 0

	q, err := p.Quote(context.Background(), "IBM")
	require.NoError(t, err)
	assert.Equal(t, int64(14355), q.Last)
	assert.Equal(t, q.Last, q.Bid)
	assert.Equal(t, q.Last, q.Ask)
	assert.Equal(t, uint64(3812), q.BidSize)
}

func TestAlphaVantageRateLimit(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"Global Quote": {"01. symbol": "IBM", "05. price": "143.55"}}`))
	}))
	defer srv.Close()

	p := NewAlphaVantageProvider("demo", time.Second)
	p.setBaseURL(srv.URL)
	p.minInterval = 50 * time.Millisecond

	start := time.Now()
	_, err := p.Quote(context.Background(), "IBM")
	require.NoError(t, err)
	_, err = p.Quote(context.Background(), "IBM")
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestAlphaVantageRateLimitHonoursContext(t *testing.T) {
	p := NewAlphaVantageProvider("demo", time.Second)
	p.minInterval = time.Hour
	p.lastRequest = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Quote(ctx, "IBM")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFMPQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"symbol": "AAPL", "price": 231.47, "volume": 51234}]`))
	}))
	defer srv.Close()

	p := NewFMPProvider("key", time.Second)
	p.setBaseURL(srv.URL)

	q, err := p.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int64(23147), q.Last)
	assert.Equal(t, uint64(51234), q.AskSize)
}

// fakeProvider scripts aggregator behaviour.
type fakeProvider struct {
	name  string
	quote Quote
	err   error
	calls int
}

func (f *fakeProvider) Quote(ctx context.Context, symbol string) (Quote, error) {
	f.calls++
	return f.quote, f.err
}

func (f *fakeProvider) Bars(ctx context.Context, symbol, interval string, limit int) ([]Bar, error) {
	return nil, f.err
}

func (f *fakeProvider) Available(ctx context.Context) bool { return f.err == nil }
func (f *fakeProvider) Name() string                       { return f.name }

func TestAggregatorFailsOver(t *testing.T) {
	dead := &fakeProvider{name: "dead", err: errors.New("boom")}
	live := &fakeProvider{name: "live", quote: Quote{Symbol: "AAPL", Last: 23150}}

	agg := NewAggregator()
	agg.AddProvider(dead)
	agg.AddProvider(live)

	q, err := agg.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int64(23150), q.Last)
	assert.Equal(t, 1, dead.calls)
	assert.Equal(t, 1, live.calls)

	assert.Equal(t, []string{"live"}, agg.AvailableProviders(context.Background()))
}

func TestAggregatorAllDead(t *testing.T) {
	agg := NewAggregator()
	agg.AddProvider(&fakeProvider{name: "a", err: errors.New("down")})

	_, err := agg.Quote(context.Background(), "AAPL")
	assert.Error(t, err)
}

func TestFeedDeliversQuotes(t *testing.T) {
	live := &fakeProvider{name: "live", quote: Quote{Symbol: "AAPL", Bid: 23145, Ask: 23155, Last: 23150}}
	agg := NewAggregator()
	agg.AddProvider(live)

	got := make(chan Quote, 1)
	feed := NewFeed(agg, "AAPL", time.Hour) // only the immediate first fetch
	feed.OnQuote(func(q Quote) {
		select {
		case got <- q:
		default:
		}
	})
	feed.Start()
	defer feed.Stop()

	select {
	case q := <-got:
		assert.Equal(t, int64(23150), q.Last)
	case <-time.After(2 * time.Second):
		t.Fatal("no quote delivered")
	}

	latest, ok := feed.Latest()
	require.True(t, ok)
	assert.Equal(t, int64(23145), latest.Bid)
}
