package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"IPOTracker/internal/model"

	"github.com/shopspring/decimal"
)

// Sink consumes a colored cycle table. columns are the feature headings in
// FeatureKey order.
type Sink interface {
	Render(table *model.CycleTable, columns []string) error
	Name() string
}

// MultiSink renders to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Name() string { return "multi" }

func (m MultiSink) Render(table *model.CycleTable, columns []string) error {
	var errs []error
	for _, s := range m {
		if err := s.Render(table, columns); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// FilePrefix starts every results file name.
const FilePrefix = "ipo_price_tracker-"

// DatedPath is the per-day results file; reruns on the same day overwrite it.
func DatedPath(dir string, day time.Time, ext string) string {
	return filepath.Join(dir, FilePrefix+day.Format(model.DateLayout)+ext)
}

// FormatPercent rounds to two decimals and appends "%". Missing values render as "n/a".
func FormatPercent(v model.Value) string {
	if !v.OK {
		return "n/a"
	}
	return decimal.NewFromFloat(v.Val).StringFixed(2) + "%"
}

func checkColumns(columns []string) error {
	if len(columns) != model.FeatureCount {
		return fmt.Errorf("expected %d feature columns, got %d", model.FeatureCount, len(columns))
	}
	return nil
}

func reportDay(table *model.CycleTable) time.Time {
	if table.StartedAt.IsZero() {
		return time.Now()
	}
	return table.StartedAt
}

// writeAtomic replaces path with data so readers never see a partial file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".report-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
