package calculator

import "IPOTracker/internal/model"

// PercentChanges returns (close[i]-close[i-1])/close[i-1]*100 for every bar
// after the first, oldest first. Bars with an undefined close are removed
// before computing. A zero previous close yields a non-finite change, which is
// kept as is.
func PercentChanges(bars model.Series) []float64 {
	closes := make([]float64, 0, len(bars))
	for _, b := range bars {
		if !bad(b.Close) {
			closes = append(closes, b.Close)
		}
	}
	if len(closes) < 2 {
		return nil
	}
	changes := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		changes[i-1] = (closes[i] - closes[i-1]) / closes[i-1] * 100
	}
	return changes
}

// ExtractLags returns exactly n changes, most recent first. Slots beyond the
// available history are model.Missing.
func ExtractLags(bars model.Series, n int) []model.Value {
	if n <= 0 {
		return nil
	}
	changes := PercentChanges(bars)
	lags := make([]model.Value, n)
	for k := 1; k <= n; k++ {
		lags[k-1] = lagAt(changes, k)
	}
	return lags
}

// lagAt returns the change k steps back from the end, or Missing.
func lagAt(changes []float64, k int) model.Value {
	i := len(changes) - k
	if k < 1 || i < 0 {
		return model.Missing
	}
	return model.Present(changes[i])
}
