package model

import "time"

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Series is a time-ordered run of bars for one symbol at one granularity.
// Timestamps are strictly increasing.
type Series []OHLCV

// Closes returns the close prices in order.
func (s Series) Closes() []float64 {
	closes := make([]float64, len(s))
	for i, b := range s {
		closes[i] = b.Close
	}
	return closes
}

// Interval is the sampling interval requested from a price source.
type Interval string

const (
	Interval1Min  Interval = "1min"
	Interval1Hour Interval = "1hour"
)

// DateLayout is the provider date format used for ranges and listing dates.
const DateLayout = "2006-01-02"

// DateRange is an inclusive [Start, End] pair of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// TrailingDays returns the range covering the last n days up to and including now.
func TrailingDays(now time.Time, n int) DateRange {
	return DateRange{Start: now.AddDate(0, 0, -n), End: now}
}

func (r DateRange) StartString() string { return r.Start.Format(DateLayout) }
func (r DateRange) EndString() string   { return r.End.Format(DateLayout) }

// Listing is one entry of the IPO calendar.
type Listing struct {
	Symbol   string
	Company  string
	Date     time.Time
	Exchange string
}
