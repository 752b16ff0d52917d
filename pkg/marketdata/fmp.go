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

// FMPProvider polls the Financial Modeling Prep REST API.
type FMPProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewFMPProvider creates a provider with the given API key.
func NewFMPProvider(apiKey string, timeout time.Duration) *FMPProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FMPProvider{
		apiKey:  apiKey,
		baseURL: "https://financialmodelingprep.com/api/v3",
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *FMPProvider) Name() string { return "Financial Modeling Prep" }

type fmpQuote struct {
	Symbol string           `json:"symbol"`
	Price  *decimal.Decimal `json:"price"`
	Volume *uint64          `json:"volume"`
}

// Quote implements Provider. FMP's quote endpoint carries a last trade
// price only; bid and ask are both set to it.
func (p *FMPProvider) Quote(ctx context.Context, symbol string) (Quote, error) {
	u := fmt.Sprintf("%s/quote/%s?apikey=%s", p.baseURL, url.PathEscape(symbol), url.QueryEscape(p.apiKey))

	var body []fmpQuote
	if err := p.getJSON(ctx, u, &body); err != nil {
		return Quote{}, err
	}
	if len(body) == 0 || body[0].Price == nil {
		return Quote{}, fmt.Errorf("fmp: no quote for %q", symbol)
	}

	last := ToTicks(*body[0].Price)
	q := Quote{
		Symbol:    symbol,
		Bid:       last,
		Ask:       last,
		Last:      last,
		Timestamp: time.Now().UnixNano(),
	}
	if body[0].Volume != nil {
		q.BidSize = *body[0].Volume
		q.AskSize = *body[0].Volume
	}
	return q, nil
}

type fmpBar struct {
	Date   string           `json:"date"`
	Open   *decimal.Decimal `json:"open"`
	High   *decimal.Decimal `json:"high"`
	Low    *decimal.Decimal `json:"low"`
	Close  *decimal.Decimal `json:"close"`
	Volume *uint64          `json:"volume"`
}

// Bars implements Provider via the historical-chart endpoint.
func (p *FMPProvider) Bars(ctx context.Context, symbol, interval string, limit int) ([]Bar, error) {
	if interval == "" {
		interval = "1min"
	}
	u := fmt.Sprintf("%s/historical-chart/%s/%s?apikey=%s",
		p.baseURL, url.PathEscape(interval), url.PathEscape(symbol), url.QueryEscape(p.apiKey))

	var body []fmpBar
	if err := p.getJSON(ctx, u, &body); err != nil {
		return nil, err
	}

	bars := make([]Bar, 0, len(body))
	for _, v := range body {
		ts, err := time.Parse("2006-01-02 15:04:05", v.Date)
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
			bar.Volume = *v.Volume
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
func (p *FMPProvider) Available(ctx context.Context) bool {
	return p.apiKey != ""
}

func (p *FMPProvider) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("fmp: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fmp: unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// setBaseURL overrides the endpoint for tests.
func (p *FMPProvider) setBaseURL(u string) {
	p.baseURL = u
}
