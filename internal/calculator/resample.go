package calculator

import (
	"math"
	"time"

	"IPOTracker/internal/model"
)

// PeriodStart returns the start of the period of granularity g containing t,
// computed on the wall clock of t's location. Weeks start on Monday.
func PeriodStart(t time.Time, g model.Granularity) time.Time {
	y, m, d := t.Date()
	loc := t.Location()
	switch g {
	case model.Minute:
		return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc)
	case model.Hour:
		return time.Date(y, m, d, t.Hour(), 0, 0, 0, loc)
	case model.Day:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	default:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	}
}

// Resample rolls an ascending minute series up into one bar per period of g:
// first open, max high, min low, last close, summed volume. Periods without
// input bars are omitted. Minute granularity returns the input as is.
func Resample(bars model.Series, g model.Granularity) model.Series {
	if g == model.Minute {
		return bars
	}
	out := make(model.Series, 0, len(bars))
	if len(bars) == 0 {
		return out
	}

	var cur model.OHLCV
	for i, b := range bars {
		key := PeriodStart(b.Time, g)
		if i == 0 || !key.Equal(cur.Time) {
			if i > 0 {
				out = append(out, cur)
			}
			cur = model.OHLCV{Time: key, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
			continue
		}
		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.Volume += b.Volume
	}
	return append(out, cur)
}

// DropIncomplete removes bars with a NaN or infinite field.
func DropIncomplete(bars model.Series) model.Series {
	out := make(model.Series, 0, len(bars))
	for _, b := range bars {
		if bad(b.Open) || bad(b.High) || bad(b.Low) || bad(b.Close) || bad(b.Volume) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func bad(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
