package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// YahooProvider polls the public Yahoo Finance quote and chart endpoints.
// No API key required.
type YahooProvider struct {
	client   *http.Client
	quoteURL string
	chartURL string
}

// NewYahooProvider creates a Yahoo Finance provider.
func NewYahooProvider(timeout time.Duration) *YahooProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &YahooProvider{
		client:   &http.Client{Timeout: timeout},
		quoteURL: "https://query1.finance.yahoo.com/v7/finance/quote",
		chartURL: "https://query1.finance.yahoo.com/v8/finance/chart",
	}
}

func (p *YahooProvider) Name() string { return "Yahoo Finance" }

type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol             string           `json:"symbol"`
			Bid                *decimal.Decimal `json:"bid"`
			Ask                *decimal.Decimal `json:"ask"`
			BidSize            *uint64          `json:"bidSize"`
			AskSize            *uint64          `json:"askSize"`
			RegularMarketPrice *decimal.Decimal `json:"regularMarketPrice"`
		} `json:"result"`
	} `json:"quoteResponse"`
}

// Quote implements Provider.
func (p *YahooProvider) Quote(ctx context.Context, symbol string) (Quote, error) {
	u := fmt.Sprintf("%s?symbols=%s", p.quoteURL, url.QueryEscape(symbol))

	var body yahooQuoteResponse
	if err := p.getJSON(ctx, u, &body); err != nil {
		return Quote{}, err
	}
	if len(body.QuoteResponse.Result) == 0 {
		return Quote{}, fmt.Errorf("yahoo: no quote for %q", symbol)
	}

	r := body.QuoteResponse.Result[0]
	q := Quote{Symbol: symbol, Timestamp: time.Now().UnixNano()}
	if r.Bid != nil {
		q.Bid = ToTicks(*r.Bid)
	}
	if r.Ask != nil {
		q.Ask = ToTicks(*r.Ask)
	}
	if r.BidSize != nil {
		q.BidSize = *r.BidSize
	}
	if r.AskSize != nil {
		q.AskSize = *r.AskSize
	}
	if r.RegularMarketPrice != nil {
		q.Last = ToTicks(*r.RegularMarketPrice)
	}
	// Off-hours responses carry a last price but an empty touch; fall back
	// so downstream consumers always have a two-sided reference.
	if q.Bid == 0 && q.Last != 0 {
		q.Bid = q.Last
	}
	if q.Ask == 0 && q.Last != 0 {
		q.Ask = q.Last
	}
	return q, nil
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*decimal.Decimal `json:"open"`
					High   []*decimal.Decimal `json:"high"`
					Low    []*decimal.Decimal `json:"low"`
					Close  []*decimal.Decimal `json:"close"`
					Volume []*uint64          `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

// Bars implements Provider using the chart endpoint.
func (p *YahooProvider) Bars(ctx context.Context, symbol, interval string, limit int) ([]Bar, error) {
	if interval == "" {
		interval = "1m"
	}
	u := fmt.Sprintf("%s/%s?interval=%s&range=1d", p.chartURL, url.PathEscape(symbol), url.QueryEscape(interval))

	var body yahooChartResponse
	if err := p.getJSON(ctx, u, &body); err != nil {
		return nil, err
	}
	if len(body.Chart.Result) == 0 || len(body.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: no chart data for %q", symbol)
	}

	res := body.Chart.Result[0]
	qs := res.Indicators.Quote[0]
	bars := make([]Bar, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		if i >= len(qs.Close) || qs.Close[i] == nil {
			continue // market-closed gaps come back as nulls
		}
		bar := Bar{Symbol: symbol, Timestamp: ts, Close: ToTicks(*qs.Close[i])}
		if i < len(qs.Open) && qs.Open[i] != nil {
			bar.Open = ToTicks(*qs.Open[i])
		}
		if i < len(qs.High) && qs.High[i] != nil {
			bar.High = ToTicks(*qs.High[i])
		}
		if i < len(qs.Low) && qs.Low[i] != nil {
			bar.Low = ToTicks(*qs.Low[i])
		}
		if i < len(qs.Volume) && qs.Volume[i] != nil {
			bar.Volume = *qs.Volume[i]
		}
		bars = append(bars, bar)
	}
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

// Available implements Provider with a cheap index quote.
func (p *YahooProvider) Available(ctx context.Context) bool {
	_, err := p.Quote(ctx, "^GSPC")
	return err == nil
}

func (p *YahooProvider) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "nanobook/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("yahoo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("yahoo: unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// setBaseURLs overrides the quote and chart endpoints for tests.
func (p *YahooProvider) setBaseURLs(quote, chart string) {
	p.quoteURL = quote
	p.chartURL = chart
}
