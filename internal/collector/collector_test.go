package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"IPOTracker/internal/model"

	"go.uber.org/zap"
)

var testRange = model.DateRange{
	Start: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC),
}

func bars(start time.Time, closes ...float64) model.Series {
	out := make(model.Series, len(closes))
	for i, c := range closes {
		out[i] = model.OHLCV{
			Time: start.Add(time.Duration(i) * time.Minute),
			Open: c, High: c + 0.1, Low: c - 0.1, Close: c, Volume: 100,
		}
	}
	return out
}

func TestFMPClient_Listings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ipo_calendar" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("from") != "2024-01-01" || q.Get("to") != "2024-01-31" || q.Get("apikey") != "k" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `[{"date":"2024-01-10","company":"Acme, Inc.","symbol":"ABC","exchange":"Nasdaq"},
			{"date":"2024-01-12","company":"Big Co","symbol":"BIG","exchange":"NYSE"},
			{"date":"2024-01-12","company":"No Symbol","symbol":"","exchange":"NYSE"}]`)
	}))
	defer srv.Close()

	c := NewFMPClient(srv.URL, "k", "", time.Second, zap.NewNop())
	listings, err := c.Listings(context.Background(), testRange)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(listings))
	}
	if listings[0].Symbol != "ABC" || listings[0].Company != "Acme, Inc." || listings[0].Exchange != "Nasdaq" {
		t.Errorf("unexpected first listing: %+v", listings[0])
	}
	if listings[0].Date.Format(model.DateLayout) != "2024-01-10" {
		t.Errorf("listing date = %v", listings[0].Date)
	}
}

func TestFMPClient_ListingsRepairsMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"date":"2024-01-10","company":"Acme","symbol":"ABC","exchange":"Nasdaq"},]`)
	}))
	defer srv.Close()

	c := NewFMPClient(srv.URL, "k", "", time.Second, zap.NewNop())
	listings, err := c.Listings(context.Background(), testRange)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listings) != 1 || listings[0].Symbol != "ABC" {
		t.Errorf("unexpected listings: %+v", listings)
	}
}

func TestFMPClient_BarsSortedAndCleaned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/historical-chart/1min/ABC" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `[
			{"date":"2024-01-10 09:32:00","open":11,"high":11.5,"low":10.8,"close":11.2,"volume":300},
			{"date":"2024-01-10 09:31:00","open":10.5,"high":11,"low":10.4,"close":null,"volume":200},
			{"date":"2024-01-10 09:30:00","open":10,"high":10.6,"low":9.9,"close":10.5,"volume":100}
		]`)
	}))
	defer srv.Close()

	c := NewFMPClient(srv.URL, "k", "", time.Second, zap.NewNop())
	got, err := c.Bars(context.Background(), "ABC", model.Interval1Min, testRange)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 bars after dropping null close, got %d", len(got))
	}
	if !got[0].Time.Before(got[1].Time) {
		t.Errorf("bars not ascending: %v, %v", got[0].Time, got[1].Time)
	}
	if got[0].Close != 10.5 || got[1].Close != 11.2 {
		t.Errorf("unexpected closes %v, %v", got[0].Close, got[1].Close)
	}
}

func TestFMPClient_BarsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "limit reached", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewFMPClient(srv.URL, "k", "", time.Second, zap.NewNop())
	_, err := c.Bars(context.Background(), "ABC", model.Interval1Min, testRange)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.StatusCode != http.StatusTooManyRequests || fe.Symbol != "ABC" {
		t.Errorf("unexpected fetch error: %+v", fe)
	}
	if !IsSkip(err) {
		t.Error("fetch errors should be skips")
	}
}

func TestYahooSource_Bars(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if !strings.HasPrefix(r.URL.Path, "/v8/finance/chart/ABC") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("interval") != "1m" {
			t.Errorf("unexpected interval %s", r.URL.Query().Get("interval"))
		}
		fmt.Fprint(w, `{"chart":{"result":[{"timestamp":[1704897060,1704897000,1704897120],
			"indicators":{"quote":[{"open":[10.2,10,null],"high":[10.3,10.1,10.5],"low":[10.1,9.9,10.2],
			"close":[10.25,10.05,10.4],"volume":[50,40,60]}]}}],"error":null}}`)
	}))
	defer srv.Close()

	y := NewYahooSource("", time.Second, zap.NewNop())
	y.BaseURL = srv.URL
	r := model.DateRange{Start: time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)}
	got, err := y.Bars(context.Background(), "ABC", model.Interval1Min, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected one window request, got %d", calls)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 bars (null open dropped), got %d", len(got))
	}
	if got[0].Close != 10.05 || got[1].Close != 10.25 {
		t.Errorf("bars not sorted ascending: %+v", got)
	}
}

func TestYahooSource_WindowsLongRange(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"chart":{"result":[],"error":null}}`)
	}))
	defer srv.Close()

	y := NewYahooSource("", time.Second, zap.NewNop())
	y.BaseURL = srv.URL
	got, err := y.Bars(context.Background(), "ABC", model.Interval1Min, testRange)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no bars, got %d", len(got))
	}
	// 31 days in 7-day windows
	if n := atomic.LoadInt32(&calls); n != 5 {
		t.Errorf("expected 5 window requests, got %d", n)
	}
}

func TestCachedCalendar_Idempotent(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		fmt.Fprint(w, `[{"date":"2024-01-10","company":"Acme, \"The\" Co","symbol":"ABC","exchange":"Nasdaq"},
			{"date":"2024-01-12","company":"Big Co","symbol":"BIG","exchange":"NYSE"}]`)
	}))
	defer srv.Close()

	dir := t.TempDir()
	cal, err := NewCachedCalendar(NewFMPClient(srv.URL, "k", "", time.Second, zap.NewNop()), dir, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, err := cal.Listings(context.Background(), testRange)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := os.Stat(cal.Path(testRange)); err != nil {
		t.Fatalf("cache file not written: %v", err)
	}
	second, err := cal.Listings(context.Background(), testRange)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("expected 1 network request, got %d", n)
	}
	if len(first) != len(second) {
		t.Fatalf("cached listing count %d != %d", len(second), len(first))
	}
	for i := range first {
		a, b := first[i], second[i]
		if a.Symbol != b.Symbol || a.Company != b.Company || a.Exchange != b.Exchange || !a.Date.Equal(b.Date) {
			t.Errorf("row %d differs: %+v vs %+v", i, a, b)
		}
	}
	if !strings.HasSuffix(cal.Path(testRange), "ipo-calendar-2024-01-01-to-2024-01-31.csv") {
		t.Errorf("unexpected cache path %s", cal.Path(testRange))
	}
}

func TestCachedCalendar_DistinctRangesMiss(t *testing.T) {
	src := &MockSource{Calendar: []model.Listing{{Symbol: "ABC", Exchange: "Nasdaq"}}}
	cal, err := NewCachedCalendar(src, t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	other := model.DateRange{Start: testRange.Start.AddDate(0, 0, 1), End: testRange.End.AddDate(0, 0, 1)}
	for _, r := range []model.DateRange{testRange, other, testRange} {
		if _, err := cal.Listings(context.Background(), r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if src.CalendarCalls != 2 {
		t.Errorf("expected 2 source calls, got %d", src.CalendarCalls)
	}
}

func TestCachedCalendar_RoundTripsLiteralValues(t *testing.T) {
	listed := time.Date(2024, 1, 10, 0, 0, 0, 0, exchangeLocation)
	src := &MockSource{Calendar: []model.Listing{
		{Symbol: "NA", Company: "NA", Date: listed, Exchange: "Nasdaq"},
		{Symbol: "QTE", Company: `Acme, "Quoted" Inc`, Date: listed, Exchange: "Nasdaq"},
		{Symbol: "NAN", Company: "NaN Corp", Exchange: "NaN"},
		{Symbol: "NIL", Company: "<nil>", Date: listed, Exchange: ""},
	}}
	cal, err := NewCachedCalendar(src, t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	live, err := cal.Listings(context.Background(), testRange)
	if err != nil {
		t.Fatalf("live call: %v", err)
	}
	cached, err := cal.Listings(context.Background(), testRange)
	if err != nil {
		t.Fatalf("cached call: %v", err)
	}
	if src.CalendarCalls != 1 {
		t.Fatalf("expected 1 source call, got %d", src.CalendarCalls)
	}
	if len(cached) != len(live) {
		t.Fatalf("cached listing count %d != %d", len(cached), len(live))
	}
	for i := range live {
		a, b := live[i], cached[i]
		if a.Symbol != b.Symbol || a.Company != b.Company || a.Exchange != b.Exchange || !a.Date.Equal(b.Date) {
			t.Errorf("row %d: live %+v cached %+v", i, a, b)
		}
	}
}

func TestCachedCalendar_EmptyAnswerCached(t *testing.T) {
	src := &MockSource{}
	cal, err := NewCachedCalendar(src, t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 3; i++ {
		got, err := cal.Listings(context.Background(), testRange)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if len(got) != 0 {
			t.Fatalf("call %d: expected no listings, got %d", i, len(got))
		}
	}
	if src.CalendarCalls != 1 {
		t.Errorf("expected 1 source call, got %d", src.CalendarCalls)
	}
	data, err := os.ReadFile(cal.Path(testRange))
	if err != nil {
		t.Fatalf("cache file not written: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != "symbol,company,date,exchange" {
		t.Errorf("empty cache file = %q", got)
	}
}

func TestCachedCalendar_ErrorNotCached(t *testing.T) {
	src := &MockSource{CalendarErr: errors.New("boom")}
	cal, err := NewCachedCalendar(src, t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cal.Listings(context.Background(), testRange); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(cal.Path(testRange)); !os.IsNotExist(err) {
		t.Errorf("failed fetch should not create a cache entry: %v", err)
	}
}

func TestScreener(t *testing.T) {
	s := DefaultScreener()
	if !s.Listed(model.Listing{Exchange: "NASDAQ"}) {
		t.Error("exchange match should be case-insensitive")
	}
	if s.Listed(model.Listing{Exchange: "NYSE"}) {
		t.Error("NYSE should not be listed")
	}

	start := time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		series model.Series
		want   error
	}{
		{"ok", bars(start, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11), nil},
		{"short", bars(start, 2, 3, 4), ErrInsufficientHistory},
		{"empty", nil, ErrInsufficientHistory},
		{"penny", bars(start, 2, 3, 4, 5, 0.99, 7, 8, 9, 10, 11), ErrPennyStock},
		{"floor inclusive", bars(start, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1), nil},
	}
	for _, tt := range tests {
		err := s.Check(tt.series)
		if tt.want == nil && err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
		}
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestCollector_ListingsCalendarAbsent(t *testing.T) {
	src := &MockSource{CalendarErr: errors.New("connection refused")}
	c := NewCollector(src, src, DefaultScreener(), zap.NewNop())
	_, err := c.Listings(context.Background(), testRange)
	if !errors.Is(err, ErrCalendarUnavailable) {
		t.Fatalf("expected ErrCalendarUnavailable, got %v", err)
	}
}

func TestCollector_ListingsFiltersExchange(t *testing.T) {
	src := &MockSource{Calendar: []model.Listing{
		{Symbol: "ABC", Exchange: "Nasdaq"},
		{Symbol: "BIG", Exchange: "NYSE"},
		{Symbol: "XYZ", Exchange: "Nasdaq"},
	}}
	c := NewCollector(src, src, DefaultScreener(), zap.NewNop())
	got, err := c.Listings(context.Background(), testRange)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Symbol != "ABC" || got[1].Symbol != "XYZ" {
		t.Errorf("unexpected listings: %+v", got)
	}
}

func TestCollector_Score(t *testing.T) {
	start := time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)
	src := &MockSource{
		Series: map[string]model.Series{
			"ABC":   bars(start, 10, 10.5, 10.2, 10.8, 11, 11.3, 11.1, 11.6, 12, 12.4, 12.1, 12.9, 13.2, 13, 13.5),
			"SHORT": bars(start, 10, 11),
			"PENNY": bars(start, 0.5, 0.6, 0.7, 0.8, 0.9, 1, 1.1, 1.2, 1.3, 1.4),
		},
		Errs: map[string]error{"DOWN": errors.New("timeout")},
	}
	c := NewCollector(src, src, DefaultScreener(), zap.NewNop())
	ctx := context.Background()

	rec, err := c.Score(ctx, model.Listing{Symbol: "ABC", Company: "Acme"}, testRange)
	if err != nil {
		t.Fatalf("ABC: unexpected error %v", err)
	}
	if rec.Listing.Symbol != "ABC" {
		t.Errorf("record symbol = %s", rec.Listing.Symbol)
	}
	if !rec.Features.Get(model.FeatureKey{Granularity: model.Minute, Lag: 1}).OK {
		t.Error("minute T-1 should be present")
	}

	for symbol, want := range map[string]error{"SHORT": ErrInsufficientHistory, "PENNY": ErrPennyStock} {
		_, err := c.Score(ctx, model.Listing{Symbol: symbol}, testRange)
		if !errors.Is(err, want) {
			t.Errorf("%s: got %v, want %v", symbol, err, want)
		}
	}

	_, err = c.Score(ctx, model.Listing{Symbol: "DOWN"}, testRange)
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Symbol != "DOWN" {
		t.Errorf("DOWN: expected *FetchError, got %v", err)
	}
}

func TestGenerateMockBars(t *testing.T) {
	end := time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC) // Friday
	got := generateMockBars("ABC", 20, end)
	if len(got) != 5*390 {
		t.Fatalf("expected %d bars, got %d", 5*390, len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i-1].Time.Before(got[i].Time) {
			t.Fatalf("bars not strictly increasing at %d", i)
		}
	}
}
