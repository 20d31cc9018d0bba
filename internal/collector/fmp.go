package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"IPOTracker/internal/model"

	"go.uber.org/zap"
)

// DefaultFMPBaseURL is the Financial Modeling Prep REST endpoint.
const DefaultFMPBaseURL = "https://financialmodelingprep.com"

// FMPClient implements CalendarSource and PriceSource against the
// Financial Modeling Prep REST API.
type FMPClient struct {
	BaseURL  string
	APIKey   string
	Client   *http.Client
	Location *time.Location
	Logger   *zap.Logger
}

// NewFMPClient creates a client with optional proxy support.
func NewFMPClient(baseURL, apiKey, proxyURL string, timeout time.Duration, logger *zap.Logger) *FMPClient {
	if baseURL == "" {
		baseURL = DefaultFMPBaseURL
	}
	return &FMPClient{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		Client:   newHTTPClient(proxyURL, timeout),
		Location: exchangeLocation,
		Logger:   logger,
	}
}

func (f *FMPClient) Name() string { return "fmp" }

// fmpListing is one entry of /api/v3/ipo_calendar.
type fmpListing struct {
	Date     string `json:"date"`
	Company  string `json:"company"`
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
}

// fmpBar is one entry of /api/v3/historical-chart. Null fields decode to nil.
type fmpBar struct {
	Date   string   `json:"date"`
	Open   *float64 `json:"open"`
	High   *float64 `json:"high"`
	Low    *float64 `json:"low"`
	Close  *float64 `json:"close"`
	Volume *float64 `json:"volume"`
}

const fmpBarLayout = "2006-01-02 15:04:05"

func (f *FMPClient) Listings(ctx context.Context, r model.DateRange) ([]model.Listing, error) {
	q := url.Values{}
	q.Set("from", r.StartString())
	q.Set("to", r.EndString())
	q.Set("apikey", f.APIKey)
	endpoint := fmt.Sprintf("%s/api/v3/ipo_calendar?%s", f.BaseURL, q.Encode())

	body, err := f.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch ipo calendar: %w", err)
	}
	var raw []fmpListing
	if err := decodeJSON(body, &raw); err != nil {
		return nil, fmt.Errorf("ipo calendar: %w", err)
	}

	listings := make([]model.Listing, 0, len(raw))
	for _, l := range raw {
		if l.Symbol == "" {
			continue
		}
		d, err := time.ParseInLocation(model.DateLayout, l.Date, f.Location)
		if err != nil {
			f.Logger.Warn("unparseable listing date", zap.String("symbol", l.Symbol), zap.String("date", l.Date))
		}
		listings = append(listings, model.Listing{
			Symbol:   l.Symbol,
			Company:  l.Company,
			Date:     d,
			Exchange: l.Exchange,
		})
	}
	return listings, nil
}

func (f *FMPClient) Bars(ctx context.Context, symbol string, interval model.Interval, r model.DateRange) (model.Series, error) {
	q := url.Values{}
	q.Set("from", r.StartString())
	q.Set("to", r.EndString())
	q.Set("apikey", f.APIKey)
	endpoint := fmt.Sprintf("%s/api/v3/historical-chart/%s/%s?%s",
		f.BaseURL, url.PathEscape(string(interval)), url.PathEscape(symbol), q.Encode())

	body, err := f.get(ctx, endpoint)
	if err != nil {
		return nil, f.fetchError(symbol, err)
	}
	var raw []fmpBar
	if err := decodeJSON(body, &raw); err != nil {
		return nil, f.fetchError(symbol, err)
	}

	bars := make(model.Series, 0, len(raw))
	dropped := 0
	for _, b := range raw {
		if b.Open == nil || b.High == nil || b.Low == nil || b.Close == nil || b.Volume == nil {
			dropped++
			continue
		}
		ts, err := time.ParseInLocation(fmpBarLayout, b.Date, f.Location)
		if err != nil {
			dropped++
			continue
		}
		bars = append(bars, model.OHLCV{
			Time:   ts,
			Open:   *b.Open,
			High:   *b.High,
			Low:    *b.Low,
			Close:  *b.Close,
			Volume: *b.Volume,
		})
	}
	if dropped > 0 {
		f.Logger.Debug("dropped incomplete bars", zap.String("symbol", symbol), zap.Int("dropped", dropped))
	}
	// FMP returns newest first.
	return sortAndDedup(bars), nil
}

func (f *FMPClient) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}
	return body, nil
}

func (f *FMPClient) fetchError(symbol string, err error) *FetchError {
	return &FetchError{Symbol: symbol, Source: f.Name(), StatusCode: statusOf(err), Err: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
