package report

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"os"

	"IPOTracker/internal/model"

	"go.uber.org/zap"
)

// DefaultQuoteURL links each symbol to a quote page.
const DefaultQuoteURL = "https://finance.yahoo.com/quote/%s"

// HTMLSink writes the dated, self-refreshing heatmap page.
type HTMLSink struct {
	Dir            string
	RefreshSeconds int
	QuoteURL       string
	Logger         *zap.Logger
}

// NewHTMLSink creates the results directory if needed.
func NewHTMLSink(dir string, refreshSeconds int, quoteURL string, logger *zap.Logger) (*HTMLSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	if refreshSeconds <= 0 {
		refreshSeconds = 60
	}
	if quoteURL == "" {
		quoteURL = DefaultQuoteURL
	}
	return &HTMLSink{Dir: dir, RefreshSeconds: refreshSeconds, QuoteURL: quoteURL, Logger: logger}, nil
}

func (h *HTMLSink) Name() string { return "html" }

type htmlCell struct {
	Text  string
	Color string
}

type htmlRow struct {
	Symbol   string
	Company  string
	Date     string
	QuoteURL string
	Cells    []htmlCell
}

type htmlPage struct {
	Refresh   int
	Generated string
	Columns   []string
	Rows      []htmlRow
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta http-equiv="refresh" content="{{.Refresh}}">
    <link rel="stylesheet" href="https://stackpath.bootstrapcdn.com/bootstrap/4.3.1/css/bootstrap.min.css">
    <title>IPO Price Tracker</title>
    <style>
        .percent-change { color: #fff; }
        .sticky-header th { position: sticky; top: 0; background-color: #fff; font-size: 10px; font-weight: bold; }
        .table-container { overflow-y: auto; max-height: 1024px; padding: 24px; }
        .table td { font-size: 10px; }
    </style>
</head>
<body>
<div class="table-container">
    <h2 class="mt-5">IPO Price Changes</h2>
    <p class="text-muted small">Updated {{.Generated}}</p>
    <table class="table table-striped sticky-header">
        <thead>
        <tr>
            <th>Symbol</th>
            <th>Company</th>
            <th>Date</th>
            {{- range .Columns}}
            <th>{{.}}</th>
            {{- end}}
        </tr>
        </thead>
        <tbody>
        {{- range .Rows}}
        <tr>
            <td><a href="{{.QuoteURL}}" target="_blank">{{.Symbol}}</a></td>
            <td><a href="{{.QuoteURL}}" target="_blank">{{.Company}}</a></td>
            <td>{{.Date}}</td>
            {{- range .Cells}}
            <td class="percent-change" style="background-color: {{.Color}}">{{.Text}}</td>
            {{- end}}
        </tr>
        {{- end}}
        </tbody>
    </table>
</div>
</body>
</html>
`))

// Render writes DatedPath(Dir, StartedAt, ".html").
func (h *HTMLSink) Render(table *model.CycleTable, columns []string) error {
	if err := checkColumns(columns); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, h.page(table, columns)); err != nil {
		return fmt.Errorf("execute template: %w", err)
	}
	path := DatedPath(h.Dir, reportDay(table), ".html")
	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	h.Logger.Info("html report written", zap.String("path", path), zap.Int("rows", table.Len()))
	return nil
}

func (h *HTMLSink) page(table *model.CycleTable, columns []string) htmlPage {
	p := htmlPage{
		Refresh:   h.RefreshSeconds,
		Generated: reportDay(table).Format("2006-01-02 15:04:05 MST"),
		Columns:   columns,
		Rows:      make([]htmlRow, 0, table.Len()),
	}
	for _, rec := range table.Records {
		row := htmlRow{
			Symbol:   rec.Listing.Symbol,
			Company:  rec.Listing.Company,
			QuoteURL: fmt.Sprintf(h.QuoteURL, url.PathEscape(rec.Listing.Symbol)),
			Cells:    make([]htmlCell, model.FeatureCount),
		}
		if !rec.Listing.Date.IsZero() {
			row.Date = rec.Listing.Date.Format(model.DateLayout)
		}
		for i, v := range rec.Features {
			row.Cells[i] = htmlCell{Text: FormatPercent(v), Color: rec.Colors[i]}
		}
		p.Rows = append(p.Rows, row)
	}
	return p
}
