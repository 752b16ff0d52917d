package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// AlphaVantageProvider polls the Alpha Vantage REST API. The free tier is
// heavily rate limited, so requests are spaced by a minimum interval.
type AlphaVantageProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client

	mu          sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

// NewAlphaVantageProvider creates a provider with the given API key.
func NewAlphaVantageProvider(apiKey string, timeout time.Duration) *AlphaVantageProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AlphaVantageProvider{
		apiKey:      apiKey,
		baseURL:     "https://www.alphavantage.co/query",
		client:      &http.Client{Timeout: timeout},
		minInterval: 12 * time.Second, // free tier: 5 requests/minute
	}
}

func (p *AlphaVantageProvider) Name() string { return "Alpha Vantage" }

// rateLimit blocks until the minimum spacing since the previous request
// has elapsed, or the context is cancelled.
func (p *AlphaVantageProvider) rateLimit(ctx context.Context) error {
	p.mu.Lock()
	now := time.Now()
	wait := p.minInterval - now.Sub(p.lastRequest)
	if wait < 0 {
		wait = 0
	}
	// Reserve the slot so concurrent callers queue behind this request.
	p.lastRequest = now.Add(wait)
	p.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type alphaVantageQuote struct {
	GlobalQuote struct {
		Symbol string           `json:"01. symbol"`
		Price  *decimal.Decimal `json:"05. price"`
		Volume *decimal.Decimal `json:"06. volume"`
	} `json:"Global Quote"`
}

// Quote implements Provider via the GLOBAL_QUOTE function. Alpha Vantage
// publishes a last trade price, not a two-sided touch, so bid and ask are
// both set to it.
func (p *AlphaVantageProvider) Quote(ctx context.Context, symbol string) (Quote, error) {
	if err := p.rateLimit(ctx); err != nil {
		return Quote{}, err
	}

	u := fmt.Sprintf("%s?function=GLOBAL_QUOTE&symbol=%s&apikey=%s",
		p.baseURL, url.QueryEscape(symbol), url.QueryEscape(p.apiKey))

	var body alphaVantageQuote
	if err := p.getJSON(ctx, u, &body); err != nil {
		return Quote{}, err
	}
	if body.GlobalQuote.Price == nil {
		return Quote{}, fmt.Errorf("alphavantage: no quote for %q", symbol)
	}

	last := ToTicks(*body.GlobalQuote.Price)
	q := Quote{
		Symbol:    symbol,
		Bid:       last,
		Ask:       last,
		Last:      last,
		Timestamp: time.Now().UnixNano(),
	}
	if body.GlobalQuote.Volume != nil {
		q.BidSize = uint64(body.GlobalQuote.Volume.IntPart())
		q.AskSize = q.BidSize
	}
	return q, nil
}

type alphaVantageSeries struct {
	Series map[string]struct {
		Open   *decimal.Decimal `json:"1. open"`
		High   *decimal.Decimal `json:"2. high"`
		Low    *decimal.Decimal `json:"3. low"`
		Close  *decimal.Decimal `json:"4. close"`
		Volume *decimal.Decimal `json:"5. volume"`
	} `json:"Time Series (1min)"`
}

// Bars implements Provider via TIME_SERIES_INTRADAY.
func (p *AlphaVantageProvider) Bars(ctx context.Context, symbol, interval string, limit int) ([]Bar, error) {
	if interval == "" {
		interval = "1min"
	}
	if err := p.rateLimit(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s?function=TIME_SERIES_INTRADAY&symbol=%s&interval=%s&apikey=%s",
		p.baseURL, url.QueryEscape(symbol), url.QueryEscape(interval), url.QueryEscape(p.apiKey))

	var body alphaVantageSeries
	if err := p.getJSON(ctx, u, &body); err != nil {
		return nil, err
	}
	if len(body.Series) == 0 {
		return nil, fmt.Errorf("alphavantage: no series for %q", symbol)
	}

	bars := make([]Bar, 0, len(body.Series))
	for stamp, v := range body.Series {
		ts, err := time.Parse("2006-01-02 15:04:05", stamp)
		if err != nil || v.Close == nil {
			continue
		}
		bar := Bar{Symbol: symbol, Timestamp: ts.Unix(), Close: ToTicks(*v.Close)}
		if v.Open != nil {
			bar.Open = ToTicks(*v.Open)
		}
		if v.High != nil {
			bar.High = ToTicks(*v.High)
		}
		if v.Low != nil {
			bar.Low = ToTicks(*v.Low)
		}
		if v.Volume != nil {
			bar.Volume = uint64(v.Volume.IntPart())
		}
		bars = append(bars, bar)
	}
	sortBarsByTime(bars)
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

// Available reports whether an API key is configured.
func (p *AlphaVantageProvider) Available(ctx context.Context) bool {
	return p.apiKey != ""
}

func (p *AlphaVantageProvider) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("alphavantage: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("alphavantage: unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func sortBarsByTime(bars []Bar) {
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp < bars[j].Timestamp })
}

// setBaseURL overrides the endpoint for tests.
func (p *AlphaVantageProvider) setBaseURL(u string) {
	p.baseURL = u
}
