package collector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"IPOTracker/internal/model"

	"github.com/go-gota/gota/dataframe"
	"go.uber.org/zap"
)

var calendarColumns = []string{"symbol", "company", "date", "exchange"}

// CacheFilePrefix starts every calendar cache file name.
const CacheFilePrefix = "ipo-calendar-"

// csvOptions keep every cell a literal string. The header row is handled as
// data so that a header-only file (an empty calendar) still loads, and gota's
// NaN list is cleared because "NA" is a real ticker.
var csvOptions = []dataframe.LoadOption{
	dataframe.HasHeader(false),
	dataframe.DetectTypes(false),
	dataframe.NaNValues(nil),
}

// CachedCalendar wraps a CalendarSource with a CSV file per requested date
// range. A cached range is served from disk without calling the source.
// Empty answers are cached too; only errors leave the range uncached.
type CachedCalendar struct {
	Source   CalendarSource
	Dir      string
	Location *time.Location
	Logger   *zap.Logger
}

// NewCachedCalendar creates the cache directory if needed.
func NewCachedCalendar(src CalendarSource, dir string, logger *zap.Logger) (*CachedCalendar, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &CachedCalendar{Source: src, Dir: dir, Location: exchangeLocation, Logger: logger}, nil
}

func (c *CachedCalendar) Name() string { return c.Source.Name() + "+cache" }

// Path returns the cache file for a date range.
func (c *CachedCalendar) Path(r model.DateRange) string {
	return filepath.Join(c.Dir, fmt.Sprintf("%s%s-to-%s.csv", CacheFilePrefix, r.StartString(), r.EndString()))
}

func (c *CachedCalendar) Listings(ctx context.Context, r model.DateRange) ([]model.Listing, error) {
	path := c.Path(r)
	listings, err := c.load(path)
	switch {
	case err == nil:
		c.Logger.Debug("calendar cache hit", zap.String("path", path), zap.Int("listings", len(listings)))
		return listings, nil
	case !errors.Is(err, os.ErrNotExist):
		c.Logger.Warn("calendar cache unreadable, refetching", zap.String("path", path), zap.Error(err))
	}

	listings, err = c.Source.Listings(ctx, r)
	if err != nil {
		return nil, err
	}
	if err := c.store(path, listings); err != nil {
		c.Logger.Warn("calendar cache write failed", zap.String("path", path), zap.Error(err))
	}
	return listings, nil
}

func (c *CachedCalendar) load(path string) ([]model.Listing, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	df := dataframe.ReadCSV(f, csvOptions...)
	if df.Err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, df.Err)
	}
	// Records()[0] holds gota's generated names; the file's own header follows.
	records := df.Records()[1:]
	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[name] = i
	}
	for _, name := range calendarColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("parse %s: missing column %q", path, name)
		}
	}

	listings := make([]model.Listing, 0, len(records)-1)
	for _, rec := range records[1:] {
		d, _ := time.ParseInLocation(model.DateLayout, rec[col["date"]], c.Location)
		listings = append(listings, model.Listing{
			Symbol:   rec[col["symbol"]],
			Company:  rec[col["company"]],
			Date:     d,
			Exchange: rec[col["exchange"]],
		})
	}
	return listings, nil
}

func (c *CachedCalendar) store(path string, listings []model.Listing) error {
	records := make([][]string, 0, len(listings)+1)
	records = append(records, calendarColumns)
	for _, l := range listings {
		date := ""
		if !l.Date.IsZero() {
			date = l.Date.Format(model.DateLayout)
		}
		records = append(records, []string{l.Symbol, l.Company, date, l.Exchange})
	}
	df := dataframe.LoadRecords(records, csvOptions...)
	if df.Err != nil {
		return fmt.Errorf("build frame: %w", df.Err)
	}

	tmp, err := os.CreateTemp(c.Dir, ".ipo-calendar-*.tmp")
	if err != nil {
		return err
	}
	if err := df.WriteCSV(tmp, dataframe.WriteHeader(false)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
