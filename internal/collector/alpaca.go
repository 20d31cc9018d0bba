package collector

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"IPOTracker/internal/model"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"go.uber.org/zap"
)

// alpacaNoRetry disables the client's built-in retry loop. Zero would be replaced by its default of 10.
const alpacaNoRetry = -1

// AlpacaSource implements PriceSource with the Alpaca market data API.
type AlpacaSource struct {
	Opts      marketdata.ClientOpts
	Transport http.RoundTripper
	Timeout   time.Duration
	Logger    *zap.Logger
}

// NewAlpacaSource creates a market data source. feed is "iex" or "sip"; empty uses the account default.
func NewAlpacaSource(apiKey, apiSecret, baseURL, feed, proxyURL string, timeout time.Duration, logger *zap.Logger) *AlpacaSource {
	hc := newHTTPClient(proxyURL, timeout)
	return &AlpacaSource{
		Opts: marketdata.ClientOpts{
			APIKey:     apiKey,
			APISecret:  apiSecret,
			BaseURL:    baseURL,
			Feed:       marketdata.Feed(feed),
			RetryLimit: alpacaNoRetry,
			RetryDelay: time.Second,
		},
		Transport: hc.Transport,
		Timeout:   hc.Timeout,
		Logger:    logger,
	}
}

func (a *AlpacaSource) Name() string { return "alpaca" }

// client returns a marketdata client whose requests are bound to ctx.
func (a *AlpacaSource) client(ctx context.Context) *marketdata.Client {
	opts := a.Opts
	opts.HTTPClient = &http.Client{
		Transport: contextTransport{ctx: ctx, timeout: a.Timeout, base: a.Transport},
	}
	return marketdata.NewClient(opts)
}

func (a *AlpacaSource) Bars(ctx context.Context, symbol string, interval model.Interval, r model.DateRange) (model.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Symbol: symbol, Source: a.Name(), Err: err}
	}
	tf := marketdata.OneMin
	if interval == model.Interval1Hour {
		tf = marketdata.OneHour
	}
	req := marketdata.GetBarsRequest{
		TimeFrame: tf,
		Start:     r.Start,
		End:       r.End.AddDate(0, 0, 1),
		Feed:      a.Opts.Feed,
	}

	raw, err := a.client(ctx).GetBars(symbol, req)
	if err != nil {
		fe := &FetchError{Symbol: symbol, Source: a.Name(), Err: err}
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) {
			fe.StatusCode = apiErr.StatusCode
		}
		return nil, fe
	}
	bars := make(model.Series, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, model.OHLCV{
			Time:   b.Timestamp.In(exchangeLocation),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: float64(b.Volume),
		})
	}
	a.Logger.Debug("alpaca bars fetched", zap.String("symbol", symbol), zap.Int("bars", len(bars)))
	return sortAndDedup(bars), nil
}

// contextTransport runs every request under ctx with its own timeout.
// The marketdata client builds requests without a context.
type contextTransport struct {
	ctx     context.Context
	timeout time.Duration
	base    http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	ctx, cancel := context.WithTimeout(t.ctx, t.timeout)
	resp, err := base.RoundTrip(req.WithContext(ctx))
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
