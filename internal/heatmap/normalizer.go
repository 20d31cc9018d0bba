package heatmap

import (
	"math"

	"IPOTracker/internal/model"
)

const (
	DefaultNeutralColor = "#ccc"
	DefaultMissingColor = "#fff"
)

// Palette bundles the colormap with the fixed colors for zero and missing cells.
type Palette struct {
	Colormap Colormap
	Neutral  string
	Missing  string
}

// DefaultPalette is RdYlGn with grey zeros and white missing cells.
func DefaultPalette() Palette {
	return Palette{Colormap: RdYlGn, Neutral: DefaultNeutralColor, Missing: DefaultMissingColor}
}

// Position returns where value sits within [min,max] as a number in [0,1].
// A degenerate range (min == max) maps to the midpoint.
func Position(value, min, max float64) float64 {
	if max == min {
		return 0.5
	}
	return clamp01((value - min) / (max - min))
}

// Color maps value against its feature's range. Exactly zero is always the neutral color.
func Color(cm Colormap, neutral string, value, min, max float64) string {
	if value == 0 {
		return neutral
	}
	return cm.At(Position(value, min, max)).Hex()
}

// CellColor colors one cell, giving missing values and empty ranges the missing color.
func (p Palette) CellColor(v model.Value, r model.Range) string {
	if !v.Defined() || !r.OK {
		return p.Missing
	}
	return Color(p.Colormap, p.Neutral, v.Val, r.Min, r.Max)
}

// Ranges computes the per-feature min/max across all records. Missing and
// non-finite values are excluded.
func Ranges(records []model.SymbolRecord) [model.FeatureCount]model.Range {
	var ranges [model.FeatureCount]model.Range
	for i := range ranges {
		ranges[i] = model.Range{Min: math.Inf(1), Max: math.Inf(-1)}
	}
	for _, rec := range records {
		for i, v := range rec.Features {
			if !v.Defined() {
				continue
			}
			r := &ranges[i]
			r.OK = true
			if v.Val < r.Min {
				r.Min = v.Val
			}
			if v.Val > r.Max {
				r.Max = v.Val
			}
		}
	}
	for i := range ranges {
		if !ranges[i].OK {
			ranges[i] = model.Range{}
		}
	}
	return ranges
}

// Normalizer colors a cycle table cross-sectionally.
type Normalizer struct {
	Palette Palette
}

// NewNormalizer creates a Normalizer with the given palette.
func NewNormalizer(p Palette) *Normalizer {
	return &Normalizer{Palette: p}
}

// Apply computes the table's ranges and fills every record's color vector.
func (n *Normalizer) Apply(table *model.CycleTable) {
	table.Ranges = Ranges(table.Records)
	for i := range table.Records {
		rec := &table.Records[i]
		for j, v := range rec.Features {
			rec.Colors[j] = n.Palette.CellColor(v, table.Ranges[j])
		}
	}
}
