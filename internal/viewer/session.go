package viewer

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-shpview/internal/quality"
)

// LoadState is the one-shot state of the dataset load.
type LoadState int

const (
	LoadIdle LoadState = iota
	LoadPending
	LoadLoaded
	LoadFailed
)

func (s LoadState) String() string {
	switch s {
	case LoadPending:
		return "pending"
	case LoadLoaded:
		return "loaded"
	case LoadFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Layer is a rendered feature. Layers stay in memory while filtered out so
// they can be shown again without reloading.
type Layer struct {
	Spec      LayerSpec
	Feature   *geojson.Feature
	Group     int
	Category  quality.Category
	Status    string
	HasStatus bool
}

// Marker is the search result marker.
type Marker struct {
	At    orb.Point
	Name  string
	Popup string
}

// Session is the state of one browser session. It is not safe for concurrent
// use; the owning Controller serialises access.
type Session struct {
	features  []*geojson.Feature
	layers    []*Layer
	groups    int
	shown     *roaring.Bitmap
	attached  *roaring.Bitmap
	bound     orb.Bound
	hasBound  bool
	marker    *Marker
	dark      bool
	category  string
	displayed quality.Counts
	state     LoadState
	loadErr   error
	overlay   Overlay
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{
		shown:    roaring.New(),
		attached: roaring.New(),
		category: AllCategories,
		overlay:  OverlayVisible,
	}
}

// Features returns the current Feature Set.
func (s *Session) Features() []*geojson.Feature {
	return s.features
}

// ReplaceFeatures replaces the Feature Set.
func (s *Session) ReplaceFeatures(fs []*geojson.Feature) {
	s.features = fs
}

// Layers returns every rendered layer, indexed by layer ID.
func (s *Session) Layers() []*Layer {
	return s.layers
}

// Layer returns the layer with the given ID.
func (s *Session) Layer(id int) (*Layer, bool) {
	if id < 0 || id >= len(s.layers) {
		return nil, false
	}
	return s.layers[id], true
}

// AppendGroup appends the layers of one render and returns the group number.
// Layer IDs must continue the existing sequence.
func (s *Session) AppendGroup(layers []*Layer) int {
	g := s.groups
	s.groups++
	for _, l := range layers {
		l.Group = g
		s.layers = append(s.layers, l)
	}
	return g
}

// Shown reports whether the layer is meant to be visible.
func (s *Session) Shown(id int) bool {
	return s.shown.Contains(uint32(id))
}

// SetShown marks the layer visible or hidden.
func (s *Session) SetShown(id int, on bool) {
	if on {
		s.shown.Add(uint32(id))
	} else {
		s.shown.Remove(uint32(id))
	}
}

// Attached reports whether the layer is on the map, which includes layers
// still fading out.
func (s *Session) Attached(id int) bool {
	return s.attached.Contains(uint32(id))
}

// SetAttached records whether the layer is on the map.
func (s *Session) SetAttached(id int, on bool) {
	if on {
		s.attached.Add(uint32(id))
	} else {
		s.attached.Remove(uint32(id))
	}
}

// ShownCount returns the number of visible layers.
func (s *Session) ShownCount() int {
	return int(s.shown.GetCardinality())
}

// ExtendBound grows the combined bounds of all rendered layers.
func (s *Session) ExtendBound(b orb.Bound) {
	if !s.hasBound {
		s.bound, s.hasBound = b, true
		return
	}
	s.bound = s.bound.Union(b)
}

// Bound returns the combined bounds of all rendered layers.
func (s *Session) Bound() (orb.Bound, bool) {
	return s.bound, s.hasBound
}

// Marker returns the search marker, or nil.
func (s *Session) Marker() *Marker {
	return s.marker
}

// ReplaceMarker sets or clears the search marker.
func (s *Session) ReplaceMarker(m *Marker) {
	s.marker = m
}

// Dark reports the theme.
func (s *Session) Dark() bool {
	return s.dark
}

// SetDark sets the theme.
func (s *Session) SetDark(dark bool) {
	s.dark = dark
}

// Category returns the active filter selection.
func (s *Session) Category() string {
	return s.category
}

// SetCategory records the active filter selection.
func (s *Session) SetCategory(c string) {
	s.category = c
}

// Displayed returns the counter values currently on screen.
func (s *Session) Displayed() quality.Counts {
	return s.displayed
}

// SetDisplayed records the counter values on screen.
func (s *Session) SetDisplayed(c quality.Counts) {
	s.displayed = c
}

// State returns the load state and the load error, if it failed.
func (s *Session) State() (LoadState, error) {
	return s.state, s.loadErr
}

// SetState moves the load state.
func (s *Session) SetState(st LoadState, err error) {
	s.state, s.loadErr = st, err
}

// Overlay returns the loading overlay state.
func (s *Session) Overlay() Overlay {
	return s.overlay
}

// SetOverlay records the loading overlay state.
func (s *Session) SetOverlay(o Overlay) {
	s.overlay = o
}
