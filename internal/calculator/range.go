package calculator

import (
	"errors"
	"math"

	"IPOTracker/internal/model"
)

// CloseRange returns the lowest and highest close in the series.
func CloseRange(bars model.Series) (low, high float64, err error) {
	if len(bars) == 0 {
		return 0, 0, errors.New("no bars provided")
	}
	low = math.Inf(1)
	high = math.Inf(-1)
	for _, b := range bars {
		if b.Close < low {
			low = b.Close
		}
		if b.Close > high {
			high = b.Close
		}
	}
	return low, high, nil
}
