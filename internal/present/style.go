package present

import (
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-shpview/internal/quality"
)

// Style is the Leaflet path style of a rendered layer.
type Style struct {
	Color       string  `json:"color"`
	Weight      float64 `json:"weight"`
	Opacity     float64 `json:"opacity"`
	FillColor   string  `json:"fillColor"`
	FillOpacity float64 `json:"fillOpacity"`
	Radius      float64 `json:"radius,omitempty"`
}

// Fill colours per status category.
const (
	FillGood    = "#4caf50"
	FillMedium  = "#ff9800"
	FillUnknown = "#9e9e9e"
	PointFill   = "#0288d1"
)

// StyleFor returns the style of a feature. Points are fixed-radius circle
// markers whatever their status; everything else is filled by category.
func StyleFor(g orb.Geometry, c quality.Category) Style {
	if _, ok := g.(orb.Point); ok {
		return Style{
			Color:       "#000",
			Weight:      1,
			Opacity:     1,
			FillColor:   PointFill,
			FillOpacity: 0.8,
			Radius:      8,
		}
	}
	return Style{
		Color:       "#333",
		Weight:      1.5,
		Opacity:     1,
		FillColor:   FillColor(c),
		FillOpacity: 0.7,
	}
}

// FillColor maps a status category to its fill colour.
func FillColor(c quality.Category) string {
	switch c {
	case quality.Good:
		return FillGood
	case quality.Medium:
		return FillMedium
	default:
		return FillUnknown
	}
}
