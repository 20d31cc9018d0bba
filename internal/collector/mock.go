package collector

import (
	"context"
	"math"
	"sync"
	"time"

	"IPOTracker/internal/model"
)

// MockSource returns controllable fixed data for development and testing.
// Symbols without an entry in Series get generated minute bars around BasePrice.
type MockSource struct {
	BasePrice   float64
	Calendar    []model.Listing
	CalendarErr error
	Series      map[string]model.Series
	Errs        map[string]error

	mu            sync.Mutex
	CalendarCalls int
	PriceCalls    map[string]int
}

func (m *MockSource) Name() string { return "mock" }

func (m *MockSource) Listings(_ context.Context, _ model.DateRange) ([]model.Listing, error) {
	m.mu.Lock()
	m.CalendarCalls++
	m.mu.Unlock()
	if m.CalendarErr != nil {
		return nil, m.CalendarErr
	}
	out := make([]model.Listing, len(m.Calendar))
	copy(out, m.Calendar)
	return out, nil
}

func (m *MockSource) Bars(_ context.Context, symbol string, _ model.Interval, r model.DateRange) (model.Series, error) {
	m.mu.Lock()
	if m.PriceCalls == nil {
		m.PriceCalls = make(map[string]int)
	}
	m.PriceCalls[symbol]++
	m.mu.Unlock()

	if err, ok := m.Errs[symbol]; ok {
		return nil, &FetchError{Symbol: symbol, Source: m.Name(), Err: err}
	}
	if bars, ok := m.Series[symbol]; ok {
		out := make(model.Series, len(bars))
		copy(out, bars)
		return out, nil
	}
	base := m.BasePrice
	if base == 0 {
		base = 20
	}
	return generateMockBars(symbol, base, r.End), nil
}

// generateMockBars produces one trading session of minute bars per weekday
// over the five sessions ending at end, with a deterministic per-symbol wiggle.
func generateMockBars(symbol string, basePrice float64, end time.Time) model.Series {
	seed := 0.0
	for _, ch := range symbol {
		seed += float64(ch)
	}
	var bars model.Series
	day := time.Date(end.Year(), end.Month(), end.Day(), 9, 30, 0, 0, exchangeLocation)
	sessions := 0
	for d := 0; sessions < 5 && d < 14; d++ {
		open := day.AddDate(0, 0, -d)
		if wd := open.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		sessions++
		for i := 0; i < 390; i++ {
			x := float64(i+d*390) + seed
			p := basePrice * (1 + 0.02*math.Sin(x/37) + 0.005*math.Cos(x/5))
			bars = append(bars, model.OHLCV{
				Time:   open.Add(time.Duration(i) * time.Minute),
				Open:   p * 0.999,
				High:   p * 1.002,
				Low:    p * 0.998,
				Close:  p,
				Volume: 1000 + float64(i%60)*10,
			})
		}
	}
	return sortAndDedup(bars)
}

// Verify interface conformance.
var (
	_ CalendarSource = (*MockSource)(nil)
	_ PriceSource    = (*MockSource)(nil)
	_ CalendarSource = (*FMPClient)(nil)
	_ PriceSource    = (*FMPClient)(nil)
	_ PriceSource    = (*YahooSource)(nil)
	_ PriceSource    = (*AlpacaSource)(nil)
	_ CalendarSource = (*CachedCalendar)(nil)
)
