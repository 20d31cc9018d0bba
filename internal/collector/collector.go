package collector

import (
	"context"
	"errors"
	"fmt"

	"IPOTracker/internal/calculator"
	"IPOTracker/internal/model"

	"go.uber.org/zap"
)

// Collector fetches the calendar and scores individual symbols.
type Collector struct {
	Calendar CalendarSource
	Prices   PriceSource
	Screener Screener
	Logger   *zap.Logger
}

// NewCollector creates a new Collector.
func NewCollector(calendar CalendarSource, prices PriceSource, screener Screener, logger *zap.Logger) *Collector {
	return &Collector{Calendar: calendar, Prices: prices, Screener: screener, Logger: logger}
}

// Listings returns the recent listings on allowed exchanges. Any calendar
// failure is reported as ErrCalendarUnavailable.
func (c *Collector) Listings(ctx context.Context, r model.DateRange) ([]model.Listing, error) {
	all, err := c.Calendar.Listings(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s..%s: %w", ErrCalendarUnavailable, c.Calendar.Name(), r.StartString(), r.EndString(), err)
	}
	listed := c.Screener.Filter(all)
	c.Logger.Info("calendar fetched",
		zap.String("source", c.Calendar.Name()),
		zap.Int("listings", len(all)),
		zap.Int("eligible", len(listed)))
	return listed, nil
}

// Score fetches one symbol's minute bars and computes its features. The
// returned error is a *FetchError, ErrInsufficientHistory or ErrPennyStock.
func (c *Collector) Score(ctx context.Context, l model.Listing, r model.DateRange) (model.SymbolRecord, error) {
	bars, err := c.Prices.Bars(ctx, l.Symbol, model.Interval1Min, r)
	if err != nil {
		var fe *FetchError
		if !errors.As(err, &fe) {
			err = &FetchError{Symbol: l.Symbol, Source: c.Prices.Name(), Err: err}
		}
		return model.SymbolRecord{}, err
	}

	bars = calculator.DropIncomplete(bars)
	if err := c.Screener.Check(bars); err != nil {
		return model.SymbolRecord{}, err
	}

	return model.SymbolRecord{
		Listing:  l,
		Features: calculator.CalculatePerformance(bars),
	}, nil
}
