package collector

import (
	"fmt"
	"strings"

	"IPOTracker/internal/calculator"
	"IPOTracker/internal/model"
)

// Screener holds the eligibility rules applied before a symbol is scored.
type Screener struct {
	Exchanges  []string // allowed exchanges, case-insensitive; empty allows all
	MinBars    int
	PennyFloor float64
}

// DefaultScreener keeps Nasdaq listings with at least 10 bars and no close under 1.0.
func DefaultScreener() Screener {
	return Screener{Exchanges: []string{"Nasdaq"}, MinBars: 10, PennyFloor: 1.0}
}

// Listed reports whether the listing's exchange is on the allow-list.
func (s Screener) Listed(l model.Listing) bool {
	if len(s.Exchanges) == 0 {
		return true
	}
	for _, ex := range s.Exchanges {
		if strings.EqualFold(strings.TrimSpace(ex), strings.TrimSpace(l.Exchange)) {
			return true
		}
	}
	return false
}

// Filter keeps the listings on the allow-list, preserving order.
func (s Screener) Filter(listings []model.Listing) []model.Listing {
	out := make([]model.Listing, 0, len(listings))
	for _, l := range listings {
		if s.Listed(l) {
			out = append(out, l)
		}
	}
	return out
}

// Check applies the history and penny-floor rules to a cleaned series.
func (s Screener) Check(bars model.Series) error {
	if len(bars) < s.MinBars {
		return fmt.Errorf("%w: %d bars, need %d", ErrInsufficientHistory, len(bars), s.MinBars)
	}
	low, _, err := calculator.CloseRange(bars)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInsufficientHistory, err)
	}
	if low < s.PennyFloor {
		return fmt.Errorf("%w: min close %.4f below %.2f", ErrPennyStock, low, s.PennyFloor)
	}
	return nil
}
