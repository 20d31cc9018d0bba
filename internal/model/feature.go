package model

import (
	"fmt"
	"math"
)

// Granularity is the bar period at which a percentage change is measured.
type Granularity int

const (
	Minute Granularity = iota
	Hour
	Day
	Week
)

// Granularities lists every granularity in column order.
var Granularities = [...]Granularity{Minute, Hour, Day, Week}

func (g Granularity) String() string {
	switch g {
	case Minute:
		return "Min"
	case Hour:
		return "Hour"
	case Day:
		return "Day"
	case Week:
		return "Week"
	default:
		return fmt.Sprintf("Granularity(%d)", int(g))
	}
}

// Slug is the lower-case identifier used in storage tags and JSON.
func (g Granularity) Slug() string {
	switch g {
	case Minute:
		return "minute"
	case Hour:
		return "hour"
	case Day:
		return "day"
	case Week:
		return "week"
	default:
		return "unknown"
	}
}

const (
	// LagCount is the number of trailing changes kept per granularity.
	LagCount = 4
	// FeatureCount is the fixed width of a FeatureVector.
	FeatureCount = len(Granularities) * LagCount
)

// FeatureKey identifies one cell of a FeatureVector. Lag runs from 1 (most recent) to LagCount.
type FeatureKey struct {
	Granularity Granularity
	Lag         int
}

// Index returns the position of the key inside FeatureVector and ColorVector.
func (k FeatureKey) Index() int {
	return int(k.Granularity)*LagCount + k.Lag - 1
}

// Label is the report column heading, e.g. "Δ 1 Hour T -2".
func (k FeatureKey) Label() string {
	return fmt.Sprintf("Δ 1 %s T -%d", k.Granularity, k.Lag)
}

// ID is a compact identifier such as "hour_t2".
func (k FeatureKey) ID() string {
	return fmt.Sprintf("%s_t%d", k.Granularity.Slug(), k.Lag)
}

var featureKeys = func() []FeatureKey {
	keys := make([]FeatureKey, 0, FeatureCount)
	for _, g := range Granularities {
		for lag := 1; lag <= LagCount; lag++ {
			keys = append(keys, FeatureKey{Granularity: g, Lag: lag})
		}
	}
	return keys
}()

// FeatureKeys returns all keys in column order.
func FeatureKeys() []FeatureKey {
	out := make([]FeatureKey, len(featureKeys))
	copy(out, featureKeys)
	return out
}

// ColumnNames returns the report headings in column order.
func ColumnNames() []string {
	names := make([]string, len(featureKeys))
	for i, k := range featureKeys {
		names[i] = k.Label()
	}
	return names
}

// Value is a percentage change or Missing.
type Value struct {
	Val float64
	OK  bool
}

// Missing marks a lag slot with no history behind it.
var Missing = Value{}

// Present wraps a computed change.
func Present(v float64) Value { return Value{Val: v, OK: true} }

// Defined reports whether the value is present and a finite number.
func (v Value) Defined() bool {
	return v.OK && !math.IsNaN(v.Val) && !math.IsInf(v.Val, 0)
}

// FeatureVector holds one Value per FeatureKey. It is an array so that copies never alias.
type FeatureVector [FeatureCount]Value

func (fv FeatureVector) Get(k FeatureKey) Value { return fv[k.Index()] }

// ColorVector holds one CSS color per FeatureKey, parallel to FeatureVector.
type ColorVector [FeatureCount]string

func (cv ColorVector) Get(k FeatureKey) string { return cv[k.Index()] }
