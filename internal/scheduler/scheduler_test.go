package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"IPOTracker/internal/collector"
	"IPOTracker/internal/heatmap"
	"IPOTracker/internal/model"
	"IPOTracker/internal/recorder"
	"IPOTracker/internal/report"

	"go.uber.org/zap"
)

var cycleTime = time.Date(2024, 1, 12, 16, 0, 0, 0, time.UTC)

type recordingSink struct {
	tables   []*model.CycleTable
	columns  []string
	err      error
	onRender func(n int)
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Render(table *model.CycleTable, columns []string) error {
	r.tables = append(r.tables, table)
	r.columns = columns
	if r.onRender != nil {
		r.onRender(len(r.tables))
	}
	return r.err
}

type recordingRecorder struct {
	snaps []*recorder.CycleSnapshot
}

func (r *recordingRecorder) RecordCycle(s *recorder.CycleSnapshot) error {
	r.snaps = append(r.snaps, s)
	return nil
}
func (r *recordingRecorder) Close() error { return nil }

func bars(start time.Time, closes ...float64) model.Series {
	out := make(model.Series, len(closes))
	for i, c := range closes {
		out[i] = model.OHLCV{
			Time:   start.Add(time.Duration(i) * time.Minute),
			Open:   c,
			High:   c + 0.2,
			Low:    c - 0.2,
			Close:  c,
			Volume: 100,
		}
	}
	return out
}

func newTestScheduler(src *collector.MockSource, sink report.Sink, rec recorder.Recorder) *Scheduler {
	col := collector.NewCollector(src, src, collector.DefaultScreener(), zap.NewNop())
	s := NewScheduler(col, heatmap.NewNormalizer(heatmap.DefaultPalette()), sink, rec, zap.NewNop())
	s.Now = func() time.Time { return cycleTime }
	s.Interval = 5 * time.Millisecond
	return s
}

func trackerSource() *collector.MockSource {
	start := time.Date(2024, 1, 10, 14, 30, 0, 0, time.UTC)
	return &collector.MockSource{
		Calendar: []model.Listing{
			{Symbol: "ABC", Company: "ABC Holdings", Date: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), Exchange: "Nasdaq"},
			{Symbol: "PNY", Company: "Penny Co", Exchange: "NASDAQ"},
			{Symbol: "SHRT", Company: "Short History", Exchange: "Nasdaq"},
			{Symbol: "ERR", Company: "Broken Feed", Exchange: "Nasdaq"},
			{Symbol: "NYS", Company: "Big Board", Exchange: "NYSE"},
		},
		Series: map[string]model.Series{
			"ABC":  bars(start, 10, 10.5, 10.2, 10.8, 11, 11.3, 11.1, 11.6, 12, 12.4, 12.1, 12.9, 13.2, 13, 13.5),
			"PNY":  bars(start, 1.2, 1.1, 1.0, 0.9, 0.95, 1.05, 1.1, 1.2, 1.3, 1.25, 1.3, 1.4),
			"SHRT": bars(start, 5, 6, 7),
		},
		Errs: map[string]error{"ERR": errors.New("status 502")},
	}
}

func TestRunCycleEndToEnd(t *testing.T) {
	src := trackerSource()
	sink := &recordingSink{}
	rec := &recordingRecorder{}
	s := newTestScheduler(src, sink, rec)

	table, err := s.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(sink.tables) != 1 || sink.tables[0] != table {
		t.Fatalf("sink received %d tables", len(sink.tables))
	}
	if len(sink.columns) != model.FeatureCount || sink.columns[0] != "Δ 1 Min T -1" {
		t.Errorf("columns = %v", sink.columns)
	}
	if table.Len() != 1 || table.Records[0].Listing.Symbol != "ABC" {
		t.Fatalf("rows = %+v", table.Records)
	}

	abc := table.Records[0]
	for _, k := range model.FeatureKeys() {
		v := abc.Features.Get(k)
		color := abc.Colors.Get(k)
		if k.Granularity == model.Minute {
			if !v.Defined() {
				t.Errorf("%s missing", k.Label())
			}
			if color == heatmap.DefaultMissingColor || color == "" {
				t.Errorf("%s color = %q", k.Label(), color)
			}
			continue
		}
		if v.OK {
			t.Errorf("%s = %v, want missing", k.Label(), v.Val)
		}
		if color != heatmap.DefaultMissingColor {
			t.Errorf("%s color = %q, want %q", k.Label(), color, heatmap.DefaultMissingColor)
		}
	}

	if src.PriceCalls["NYS"] != 0 {
		t.Error("listing outside the exchange allow-list was fetched")
	}
	if len(rec.snaps) != 1 {
		t.Fatalf("recorded %d cycles", len(rec.snaps))
	}
	if snap := rec.snaps[0]; snap.Listings != 4 || snap.Skipped != 3 || snap.Table != table {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestRunCycleCalendarUnavailable(t *testing.T) {
	src := &collector.MockSource{CalendarErr: errors.New("connection refused")}
	sink := &recordingSink{}
	s := newTestScheduler(src, sink, recorder.NewNoopRecorder())

	_, err := s.RunCycle(context.Background())
	if !errors.Is(err, collector.ErrCalendarUnavailable) {
		t.Fatalf("err = %v, want ErrCalendarUnavailable", err)
	}
	if len(sink.tables) != 0 {
		t.Error("sink rendered after a calendar failure")
	}
}

func TestRunCycleEmptyCalendar(t *testing.T) {
	src := &collector.MockSource{}
	sink := &recordingSink{}
	s := newTestScheduler(src, sink, recorder.NewNoopRecorder())

	table, err := s.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if table.Len() != 0 || len(sink.tables) != 1 {
		t.Errorf("rows %d, renders %d", table.Len(), len(sink.tables))
	}
}

func TestRunCycleRendersHTML(t *testing.T) {
	dir := t.TempDir()
	sink, err := report.NewHTMLSink(dir, 60, "", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	s := newTestScheduler(trackerSource(), sink, recorder.NewNoopRecorder())
	if _, err := s.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "ipo_price_tracker-2024-01-12.html")); err != nil {
		t.Fatalf("report not written: %v", err)
	}
}

func TestRunStopsOnCalendarFailure(t *testing.T) {
	src := &collector.MockSource{CalendarErr: errors.New("timeout")}
	s := newTestScheduler(src, &recordingSink{}, recorder.NewNoopRecorder())

	err := s.Run(context.Background())
	if !errors.Is(err, collector.ErrCalendarUnavailable) {
		t.Fatalf("Run err = %v", err)
	}
	if src.CalendarCalls != 1 {
		t.Errorf("calendar called %d times, want 1", src.CalendarCalls)
	}
}

func TestRunRepeatsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &recordingSink{
		err: errors.New("disk full"),
		onRender: func(n int) {
			if n == 3 {
				cancel()
			}
		},
	}
	s := newTestScheduler(trackerSource(), sink, recorder.NewNoopRecorder())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run err = %v, want nil after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if len(sink.tables) != 3 {
		t.Errorf("rendered %d cycles, want 3", len(sink.tables))
	}
}

func TestRunCycleCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &recordingSink{}
	s := newTestScheduler(trackerSource(), sink, recorder.NewNoopRecorder())

	if _, err := s.RunCycle(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(sink.tables) != 0 {
		t.Error("cancelled cycle reached the sink")
	}
}
