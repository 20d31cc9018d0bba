package heatmap

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RGB is a color with channels in [0,1].
type RGB struct {
	R, G, B float64
}

// ParseHex parses "#rrggbb" or "#rgb".
func ParseHex(s string) (RGB, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return RGB{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return RGB{
		R: float64(v>>16&0xff) / 255,
		G: float64(v>>8&0xff) / 255,
		B: float64(v&0xff) / 255,
	}, nil
}

// Hex formats the color as lower-case "#rrggbb".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", channel(c.R), channel(c.G), channel(c.B))
}

func channel(v float64) int {
	return int(math.Round(clamp01(v) * 255))
}

// Colormap maps [0,1] onto evenly spaced color stops with linear interpolation.
type Colormap struct {
	Name  string
	Stops []RGB
}

// NewColormap builds a colormap from hex stops. At least two stops are required.
func NewColormap(name string, hexStops ...string) (Colormap, error) {
	if len(hexStops) < 2 {
		return Colormap{}, fmt.Errorf("colormap %s: need at least 2 stops, got %d", name, len(hexStops))
	}
	stops := make([]RGB, len(hexStops))
	for i, h := range hexStops {
		c, err := ParseHex(h)
		if err != nil {
			return Colormap{}, fmt.Errorf("colormap %s: %w", name, err)
		}
		stops[i] = c
	}
	return Colormap{Name: name, Stops: stops}, nil
}

func mustColormap(name string, hexStops ...string) Colormap {
	cm, err := NewColormap(name, hexStops...)
	if err != nil {
		panic(err)
	}
	return cm
}

// LUTSize is the number of discrete entries a colormap resolves to.
const LUTSize = 256

// At returns the color at position t. t is clamped to [0,1]; NaN maps to the midpoint.
// Positions are snapped to one of LUTSize table entries before interpolating,
// so At(0.5) is entry 128, not the exact middle stop.
func (cm Colormap) At(t float64) RGB {
	if math.IsNaN(t) {
		t = 0.5
	}
	idx := int(clamp01(t) * LUTSize)
	if idx > LUTSize-1 {
		idx = LUTSize - 1
	}
	t = float64(idx) / (LUTSize - 1)
	segments := len(cm.Stops) - 1
	pos := t * float64(segments)
	i := int(math.Floor(pos))
	if i >= segments {
		return cm.Stops[segments]
	}
	frac := pos - float64(i)
	a, b := cm.Stops[i], cm.Stops[i+1]
	return RGB{
		R: a.R + (b.R-a.R)*frac,
		G: a.G + (b.G-a.G)*frac,
		B: a.B + (b.B-a.B)*frac,
	}
}

// Reversed returns the colormap with its stops in opposite order.
func (cm Colormap) Reversed() Colormap {
	stops := make([]RGB, len(cm.Stops))
	for i, s := range cm.Stops {
		stops[len(stops)-1-i] = s
	}
	return Colormap{Name: cm.Name + "_r", Stops: stops}
}

// RdYlGn is the ColorBrewer red-yellow-green diverging scale.
var RdYlGn = mustColormap("RdYlGn",
	"#a50026", "#d73027", "#f46d43", "#fdae61", "#fee08b", "#ffffbf",
	"#d9ef8b", "#a6d96a", "#66bd63", "#1a9850", "#006837")

// RdYlBu is the ColorBrewer red-yellow-blue diverging scale.
var RdYlBu = mustColormap("RdYlBu",
	"#a50026", "#d73027", "#f46d43", "#fdae61", "#fee090", "#ffffbf",
	"#e0f3f8", "#abd9e9", "#74add1", "#4575b4", "#313695")

// LookupColormap finds a built-in colormap by name. A "_r" suffix reverses it.
func LookupColormap(name string) (Colormap, error) {
	base, reversed := strings.CutSuffix(name, "_r")
	var cm Colormap
	switch base {
	case "RdYlGn", "":
		cm = RdYlGn
	case "RdYlBu":
		cm = RdYlBu
	default:
		return Colormap{}, fmt.Errorf("unknown colormap %q", name)
	}
	if reversed {
		return cm.Reversed(), nil
	}
	return cm, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
