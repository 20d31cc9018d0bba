package recorder

import (
	"errors"
	"time"

	"IPOTracker/internal/model"

	"github.com/google/uuid"
)

// CycleSnapshot is the outcome of one tracker cycle.
type CycleSnapshot struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Listings  int // listings returned by the calendar
	Skipped   int // listings dropped by screening or fetch errors
	Table     *model.CycleTable
}

// NewCycleSnapshot stamps a finished table with a fresh cycle ID.
func NewCycleSnapshot(table *model.CycleTable, listings, skipped int, duration time.Duration) *CycleSnapshot {
	return &CycleSnapshot{
		ID:        uuid.NewString(),
		StartedAt: table.StartedAt,
		Duration:  duration,
		Listings:  listings,
		Skipped:   skipped,
		Table:     table,
	}
}

// Recorder persists cycle history for later analysis.
type Recorder interface {
	RecordCycle(snap *CycleSnapshot) error
	Close() error
}

// MultiRecorder fans a snapshot out to several recorders.
type MultiRecorder []Recorder

func (m MultiRecorder) RecordCycle(snap *CycleSnapshot) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordCycle(snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiRecorder) Close() error {
	var errs []error
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
