package report

import (
	"io"
	"time"

	"IPOTracker/internal/model"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// ConsoleSink prints the most recent change at each granularity as a text table.
type ConsoleSink struct {
	Out io.Writer
}

func (c *ConsoleSink) Name() string { return "console" }

func (c *ConsoleSink) Render(tbl *model.CycleTable, columns []string) error {
	if err := checkColumns(columns); err != nil {
		return err
	}
	c.Writer(tbl, columns).Render()
	return nil
}

// Writer builds the table without rendering it.
func (c *ConsoleSink) Writer(tbl *model.CycleTable, columns []string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(c.Out)
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	t.SetStyle(style)
	t.SetAutoIndex(true)
	t.SetTitle("IPO Price Changes " + reportDay(tbl).Format(time.DateTime))

	var latest []model.FeatureKey
	for _, k := range model.FeatureKeys() {
		if k.Lag == 1 {
			latest = append(latest, k)
		}
	}
	header := table.Row{"Symbol", "Company"}
	for _, k := range latest {
		header = append(header, columns[k.Index()])
	}
	t.AppendHeader(header)

	for _, rec := range tbl.Records {
		row := table.Row{rec.Listing.Symbol, rec.Listing.Company}
		for _, k := range latest {
			row = append(row, FormatPercent(rec.Features.Get(k)))
		}
		t.AppendRow(row)
	}
	return t
}
