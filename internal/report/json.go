package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"IPOTracker/internal/model"

	"github.com/tidwall/pretty"
	"go.uber.org/zap"
)

// JSONSink writes a machine-readable snapshot next to the HTML page.
type JSONSink struct {
	Dir    string
	Logger *zap.Logger
}

// NewJSONSink creates the results directory if needed.
func NewJSONSink(dir string, logger *zap.Logger) (*JSONSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	return &JSONSink{Dir: dir, Logger: logger}, nil
}

func (j *JSONSink) Name() string { return "json" }

type jsonCell struct {
	Key   string   `json:"key"`
	Label string   `json:"label"`
	Value *float64 `json:"value"`
	Color string   `json:"color"`
}

type jsonRow struct {
	Symbol   string     `json:"symbol"`
	Company  string     `json:"company"`
	Date     string     `json:"date,omitempty"`
	Exchange string     `json:"exchange,omitempty"`
	Features []jsonCell `json:"features"`
}

type jsonRange struct {
	Key string  `json:"key"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type jsonSnapshot struct {
	GeneratedAt time.Time   `json:"generated_at"`
	Rows        []jsonRow   `json:"rows"`
	Ranges      []jsonRange `json:"ranges"`
}

// Render writes DatedPath(Dir, StartedAt, ".json").
func (j *JSONSink) Render(table *model.CycleTable, columns []string) error {
	if err := checkColumns(columns); err != nil {
		return err
	}
	data, err := json.Marshal(snapshot(table, columns))
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	path := DatedPath(j.Dir, reportDay(table), ".json")
	if err := writeAtomic(path, pretty.Pretty(data)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	j.Logger.Debug("json snapshot written", zap.String("path", path))
	return nil
}

func snapshot(table *model.CycleTable, columns []string) jsonSnapshot {
	keys := model.FeatureKeys()
	snap := jsonSnapshot{GeneratedAt: reportDay(table), Rows: make([]jsonRow, 0, table.Len())}
	for _, rec := range table.Records {
		row := jsonRow{
			Symbol:   rec.Listing.Symbol,
			Company:  rec.Listing.Company,
			Exchange: rec.Listing.Exchange,
			Features: make([]jsonCell, model.FeatureCount),
		}
		if !rec.Listing.Date.IsZero() {
			row.Date = rec.Listing.Date.Format(model.DateLayout)
		}
		for i, v := range rec.Features {
			cell := jsonCell{Key: keys[i].ID(), Label: columns[i], Color: rec.Colors[i]}
			if v.Defined() {
				val := v.Val
				cell.Value = &val
			}
			row.Features[i] = cell
		}
		snap.Rows = append(snap.Rows, row)
	}
	for i, r := range table.Ranges {
		if r.OK {
			snap.Ranges = append(snap.Ranges, jsonRange{Key: keys[i].ID(), Min: r.Min, Max: r.Max})
		}
	}
	return snap
}
