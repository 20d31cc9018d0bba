package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"IPOTracker/internal/model"

	"go.uber.org/zap"
)

// DefaultYahooBaseURL is the Yahoo Finance chart endpoint host.
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

// yahooMaxWindow is the widest period1/period2 span Yahoo serves for 1m bars.
const yahooMaxWindow = 7 * 24 * time.Hour

// YahooSource implements PriceSource using the Yahoo Finance public chart API.
type YahooSource struct {
	BaseURL string
	Client  *http.Client
	Logger  *zap.Logger
}

// NewYahooSource creates a new Yahoo Finance price source.
func NewYahooSource(proxyURL string, timeout time.Duration, logger *zap.Logger) *YahooSource {
	return &YahooSource{
		BaseURL: DefaultYahooBaseURL,
		Client:  newHTTPClient(proxyURL, timeout),
		Logger:  logger,
	}
}

func (y *YahooSource) Name() string { return "yahoo" }

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func yahooInterval(interval model.Interval) string {
	switch interval {
	case model.Interval1Hour:
		return "60m"
	default:
		return "1m"
	}
}

// Bars walks the range in windows Yahoo accepts and stitches the results.
func (y *YahooSource) Bars(ctx context.Context, symbol string, interval model.Interval, r model.DateRange) (model.Series, error) {
	from := time.Date(r.Start.Year(), r.Start.Month(), r.Start.Day(), 0, 0, 0, 0, exchangeLocation)
	to := time.Date(r.End.Year(), r.End.Month(), r.End.Day(), 0, 0, 0, 0, exchangeLocation).AddDate(0, 0, 1)

	var bars model.Series
	for start := from; start.Before(to); start = start.Add(yahooMaxWindow) {
		end := start.Add(yahooMaxWindow)
		if end.After(to) {
			end = to
		}
		chunk, err := y.fetchChart(ctx, symbol, yahooInterval(interval), start, end)
		if err != nil {
			return nil, &FetchError{Symbol: symbol, Source: y.Name(), StatusCode: statusOf(err), Err: err}
		}
		bars = append(bars, chunk...)
	}
	return sortAndDedup(bars), nil
}

func (y *YahooSource) fetchChart(ctx context.Context, symbol, interval string, start, end time.Time) (model.Series, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&period1=%d&period2=%d",
		y.BaseURL, url.PathEscape(symbol), interval, start.Unix(), end.Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := y.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	var chart yahooChart
	if err := decodeJSON(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	// A window with no trading (weekend, holiday) comes back without timestamps.
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make(model.Series, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o, h, l, c, v := at(quote.Open, i), at(quote.High, i), at(quote.Low, i), at(quote.Close, i), at(quote.Volume, i)
		if o == nil || h == nil || l == nil || c == nil || v == nil {
			continue
		}
		bars = append(bars, model.OHLCV{
			Time:   time.Unix(ts, 0).In(exchangeLocation),
			Open:   *o,
			High:   *h,
			Low:    *l,
			Close:  *c,
			Volume: *v,
		})
	}
	return bars, nil
}

func at(vals []*float64, i int) *float64 {
	if i < len(vals) {
		return vals[i]
	}
	return nil
}

func statusOf(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
