package model

import "time"

// SymbolRecord is one report row: listing data, features and their colors.
type SymbolRecord struct {
	Listing  Listing
	Features FeatureVector
	Colors   ColorVector
}

// Range is the min/max of one feature across a cycle. OK is false when no symbol had a value.
type Range struct {
	Min float64
	Max float64
	OK  bool
}

// CycleTable is built fresh every cycle and dropped once the sinks are done with it.
type CycleTable struct {
	StartedAt time.Time
	Records   []SymbolRecord
	Ranges    [FeatureCount]Range
}

// NewCycleTable returns an empty table with room for capacity rows.
func NewCycleTable(startedAt time.Time, capacity int) *CycleTable {
	return &CycleTable{
		StartedAt: startedAt,
		Records:   make([]SymbolRecord, 0, capacity),
	}
}

// Append adds a row.
func (t *CycleTable) Append(rec SymbolRecord) {
	t.Records = append(t.Records, rec)
}

// Len returns the number of rows.
func (t *CycleTable) Len() int { return len(t.Records) }

// FillUndefined replaces present but non-finite cells with 0 and returns how many were replaced.
// Missing cells are left alone.
func (t *CycleTable) FillUndefined() int {
	filled := 0
	for i := range t.Records {
		for j, v := range t.Records[i].Features {
			if v.OK && !v.Defined() {
				t.Records[i].Features[j] = Present(0)
				filled++
			}
		}
	}
	return filled
}
