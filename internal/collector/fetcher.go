package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"IPOTracker/internal/model"

	"github.com/kaptinlin/jsonrepair"
)

// CalendarSource lists symbols that listed within a date range.
// Any error means the calendar is absent; an empty slice is a valid answer.
type CalendarSource interface {
	Listings(ctx context.Context, r model.DateRange) ([]model.Listing, error)
	Name() string
}

// PriceSource returns bars for one symbol, sorted ascending.
type PriceSource interface {
	Bars(ctx context.Context, symbol string, interval model.Interval, r model.DateRange) (model.Series, error)
	Name() string
}

// newHTTPClient builds a client with a per-request timeout and optional proxy.
func newHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// decodeJSON unmarshals body into v. Payloads that fail to parse get one
// pass through jsonrepair before giving up.
func decodeJSON(body []byte, v any) error {
	err := json.Unmarshal(body, v)
	if err == nil {
		return nil
	}
	repaired, rerr := jsonrepair.JSONRepair(string(body))
	if rerr != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("decode repaired payload: %w", err)
	}
	return nil
}

// sortAndDedup orders bars by time and keeps the last bar for a repeated timestamp.
func sortAndDedup(bars model.Series) model.Series {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].Time.Equal(b.Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

// exchangeLocation is the wall clock the US venues quote in.
var exchangeLocation = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	return loc
}()
