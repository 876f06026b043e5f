// Package viewer holds the per-browser session of the shapefile viewer and
// the controller that drives its map and display.
//
// The controller never touches a concrete widget. It talks to a Map and a
// Display, which the ui package implements by streaming Datastar events to
// the browser, and which tests implement with a recorder.
package viewer

import (
	"context"
	"errors"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-shpview/internal/dataset"
	"github.com/joeblew999/plat-shpview/internal/geocode"
	"github.com/joeblew999/plat-shpview/internal/present"
	"github.com/joeblew999/plat-shpview/internal/quality"
)

var (
	// ErrNotLoaded is returned by interactions issued before the dataset
	// load was started.
	ErrNotLoaded = errors.New("dataset not loaded")
	// ErrUnknownLayer is returned when a selection names no interactive layer.
	ErrUnknownLayer = errors.New("unknown layer")
)

// AllCategories is the filter selection that shows every feature.
const AllCategories = "all"

// LayerSpec is everything the map needs to draw one feature.
type LayerSpec struct {
	ID          int               `json:"id"`
	Geometry    *geojson.Geometry `json:"geometry"`
	Style       present.Style     `json:"style"`
	Popup       string            `json:"popup,omitempty"`
	Interactive bool              `json:"interactive"`
	Concealed   bool              `json:"concealed"`
}

// Map is the map widget.
type Map interface {
	// AddLayers attaches new layers, concealed when Concealed is set.
	AddLayers(layers []LayerSpec)
	// RemoveLayers detaches layers; they stay known to the widget.
	RemoveLayers(ids []int)
	// RestoreLayers re-attaches removed layers, concealed.
	RestoreLayers(ids []int)
	FadeIn(ids []int, d time.Duration)
	FadeOut(ids []int, d time.Duration)
	FitBounds(b orb.Bound)
	PanTo(p orb.Point, d time.Duration)
	FlyTo(p orb.Point, zoom float64, d time.Duration)
	OpenPopup(id int, at orb.Point)
	Highlight(id int, on bool)
	PlaceMarker(at orb.Point, popup string)
	RemoveMarker()
	// Reset forgets every layer and the marker.
	Reset()
}

// Overlay is the state of the loading overlay.
type Overlay string

const (
	OverlayVisible Overlay = "visible"
	OverlayFading  Overlay = "fading"
	OverlayHidden  Overlay = "hidden"
)

// Notice is a transient notification.
type Notice struct {
	ID   string
	Text string
}

// Display is the page around the map: counters, overlay, theme and
// notifications.
type Display interface {
	SetCounts(c quality.Counts)
	SetOverlay(o Overlay)
	SetTheme(dark bool, label string)
	SetCategory(category string)
	ShowNotice(n Notice)
	FadeNotice(n Notice)
	RemoveNotice(id string)
	Alert(msg string)
}

// Loader loads the dataset.
type Loader interface {
	Load(ctx context.Context) (*dataset.Collection, error)
}

// Geocoder resolves place names.
type Geocoder interface {
	Search(ctx context.Context, q string) ([]geocode.Place, error)
}

// Popups renders popup content.
type Popups interface {
	Build(props map[string]any, order []string) (string, error)
	BuildMarker(displayName string) (string, error)
}

// Mirror receives every successfully loaded collection.
type Mirror interface {
	Mirror(ctx context.Context, coll *dataset.Collection) error
}

// Timings are the durations of the viewer's visual transitions.
type Timings struct {
	CountStep    time.Duration
	RenderDelay  time.Duration
	RenderFade   time.Duration
	EnterDelay   time.Duration
	EnterFade    time.Duration
	ExitFade     time.Duration
	Highlight    time.Duration
	Pan          time.Duration
	Fly          time.Duration
	FlyZoom      float64
	OverlayFade  time.Duration
	NoticeLinger time.Duration
	NoticeFade   time.Duration
}

// DefaultTimings returns the standard transition timings.
func DefaultTimings() Timings {
	return Timings{
		CountStep:    50 * time.Millisecond,
		RenderDelay:  200 * time.Millisecond,
		RenderFade:   800 * time.Millisecond,
		EnterDelay:   10 * time.Millisecond,
		EnterFade:    500 * time.Millisecond,
		ExitFade:     300 * time.Millisecond,
		Highlight:    3 * time.Second,
		Pan:          500 * time.Millisecond,
		Fly:          time.Second,
		FlyZoom:      15,
		OverlayFade:  800 * time.Millisecond,
		NoticeLinger: 3 * time.Second,
		NoticeFade:   500 * time.Millisecond,
	}
}
