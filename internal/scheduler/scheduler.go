package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"IPOTracker/internal/collector"
	"IPOTracker/internal/heatmap"
	"IPOTracker/internal/model"
	"IPOTracker/internal/recorder"
	"IPOTracker/internal/report"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultInterval is the pause between the end of one cycle and the start of the next.
const DefaultInterval = 60 * time.Second

// DefaultLookbackDays is the trailing window for both the calendar and price history.
const DefaultLookbackDays = 30

// Scheduler drives the tracker cycle and the housekeeping cron.
type Scheduler struct {
	Cron         *cron.Cron
	Collector    *collector.Collector
	Normalizer   *heatmap.Normalizer
	Sink         report.Sink
	Recorder     recorder.Recorder
	Logger       *zap.Logger
	Interval     time.Duration
	LookbackDays int
	Now          func() time.Time
}

// NewScheduler creates a new Scheduler.
func NewScheduler(col *collector.Collector, norm *heatmap.Normalizer, sink report.Sink, rec recorder.Recorder, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		Cron:         cron.New(cron.WithSeconds(), cron.WithLogger(cronLogger{logger})),
		Collector:    col,
		Normalizer:   norm,
		Sink:         sink,
		Recorder:     rec,
		Logger:       logger,
		Interval:     DefaultInterval,
		LookbackDays: DefaultLookbackDays,
		Now:          time.Now,
	}
}

// Run executes cycles back to back, sleeping Interval between them, until ctx
// is cancelled or the calendar becomes unavailable. Any other cycle failure is
// logged and the loop continues.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Logger.Info("tracker loop started", zap.Duration("interval", s.Interval))
	for {
		if _, err := s.RunCycle(ctx); err != nil {
			switch {
			case ctx.Err() != nil:
			case errors.Is(err, collector.ErrCalendarUnavailable):
				s.Logger.Error("calendar unavailable, stopping", zap.Error(err))
				return err
			default:
				s.Logger.Error("cycle failed", zap.Error(err))
			}
		}

		select {
		case <-ctx.Done():
			s.Logger.Info("tracker loop stopped")
			return nil
		case <-time.After(s.Interval):
		}
	}
}

// RunCycle performs one fetch, score, normalize and render pass and returns the rendered table.
func (s *Scheduler) RunCycle(ctx context.Context) (*model.CycleTable, error) {
	started := s.Now()
	window := model.TrailingDays(started, s.LookbackDays)

	listings, err := s.Collector.Listings(ctx, window)
	if err != nil {
		return nil, err
	}

	table := model.NewCycleTable(started, len(listings))
	skipped := 0
	for _, l := range listings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := s.Collector.Score(ctx, l, window)
		if err != nil {
			skipped++
			s.logSkip(l, err)
			continue
		}
		table.Append(rec)
	}

	if n := table.FillUndefined(); n > 0 {
		s.Logger.Debug("undefined cells filled with zero", zap.Int("cells", n))
	}
	s.Normalizer.Apply(table)

	if err := s.Sink.Render(table, model.ColumnNames()); err != nil {
		return table, fmt.Errorf("render %s: %w", s.Sink.Name(), err)
	}

	elapsed := s.Now().Sub(started)
	snap := recorder.NewCycleSnapshot(table, len(listings), skipped, elapsed)
	if err := s.Recorder.RecordCycle(snap); err != nil {
		s.Logger.Error("record cycle", zap.String("cycle", snap.ID), zap.Error(err))
	}

	s.Logger.Info("cycle complete",
		zap.String("cycle", snap.ID),
		zap.Int("listings", len(listings)),
		zap.Int("scored", table.Len()),
		zap.Int("skipped", skipped),
		zap.Duration("elapsed", elapsed))
	return table, nil
}

func (s *Scheduler) logSkip(l model.Listing, err error) {
	fields := []zap.Field{zap.String("symbol", l.Symbol), zap.Error(err)}
	switch {
	case errors.Is(err, collector.ErrInsufficientHistory), errors.Is(err, collector.ErrPennyStock):
		s.Logger.Info("symbol skipped", fields...)
	default:
		s.Logger.Warn("symbol fetch failed, skipping", fields...)
	}
}
