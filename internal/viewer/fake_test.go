package viewer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-shpview/internal/dataset"
	"github.com/joeblew999/plat-shpview/internal/geocode"
	"github.com/joeblew999/plat-shpview/internal/quality"
)

// recorder is a Map and Display that keeps the state a browser would show.
type recorder struct {
	mu sync.Mutex

	known     map[int]LayerSpec
	attached  map[int]bool
	visible   map[int]bool
	added     int
	removed   []int
	fits      []orb.Bound
	pans      []orb.Point
	flights   []orb.Point
	zoom      float64
	popups    []int
	highlight map[int]bool
	marker    *orb.Point
	markerPop string
	placed    int
	resets    int

	counts   quality.Counts
	history  []quality.Counts
	overlays []Overlay
	dark     bool
	label    string
	category string
	notices  map[string]string
	shown    []Notice
	faded    []string
	alerts   []string
}

func newRecorder() *recorder {
	return &recorder{
		known:     map[int]LayerSpec{},
		attached:  map[int]bool{},
		visible:   map[int]bool{},
		highlight: map[int]bool{},
		notices:   map[string]string{},
		label:     ThemeLabel(false),
	}
}

func (r *recorder) AddLayers(specs []LayerSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range specs {
		r.known[s.ID] = s
		r.attached[s.ID] = true
		r.visible[s.ID] = !s.Concealed
		r.added++
	}
}

func (r *recorder) RemoveLayers(ids []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.attached[id] = false
		r.removed = append(r.removed, id)
	}
}

func (r *recorder) RestoreLayers(ids []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.attached[id] = true
		r.visible[id] = false
	}
}

func (r *recorder) FadeIn(ids []int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.visible[id] = true
	}
}

func (r *recorder) FadeOut(ids []int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.visible[id] = false
	}
}

func (r *recorder) FitBounds(b orb.Bound) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fits = append(r.fits, b)
}

func (r *recorder) PanTo(p orb.Point, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pans = append(r.pans, p)
}

func (r *recorder) FlyTo(p orb.Point, zoom float64, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flights = append(r.flights, p)
	r.zoom = zoom
}

func (r *recorder) OpenPopup(id int, _ orb.Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.popups = append(r.popups, id)
}

func (r *recorder) Highlight(id int, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.highlight[id] = on
}

func (r *recorder) PlaceMarker(at orb.Point, popup string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.marker != nil {
		panic("marker placed while another is present")
	}
	r.marker = &at
	r.markerPop = popup
	r.placed++
}

func (r *recorder) RemoveMarker() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marker = nil
}

func (r *recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.known = map[int]LayerSpec{}
	r.attached = map[int]bool{}
	r.visible = map[int]bool{}
	r.marker = nil
	r.resets++
}

func (r *recorder) SetCounts(c quality.Counts) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = c
	r.history = append(r.history, c)
}

func (r *recorder) SetOverlay(o Overlay) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overlays = append(r.overlays, o)
}

func (r *recorder) SetTheme(dark bool, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dark, r.label = dark, label
}

func (r *recorder) SetCategory(category string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.category = category
}

func (r *recorder) ShowNotice(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices[n.ID] = n.Text
	r.shown = append(r.shown, n)
}

func (r *recorder) FadeNotice(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faded = append(r.faded, n.ID)
}

func (r *recorder) RemoveNotice(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.notices, id)
}

func (r *recorder) Alert(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, msg)
}

// read runs fn with the recorder locked.
func (r *recorder) read(fn func(r *recorder)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r)
}

func (r *recorder) lastOverlay() Overlay {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.overlays) == 0 {
		return ""
	}
	return r.overlays[len(r.overlays)-1]
}

func (r *recorder) displayed() quality.Counts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts
}

type loaderFunc func(ctx context.Context) (*dataset.Collection, error)

func (f loaderFunc) Load(ctx context.Context) (*dataset.Collection, error) { return f(ctx) }

type fakeGeocoder struct {
	mu      sync.Mutex
	places  map[string][]geocode.Place
	err     error
	queries []string
}

func (g *fakeGeocoder) Search(_ context.Context, q string) ([]geocode.Place, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queries = append(g.queries, q)
	if g.err != nil {
		return nil, g.err
	}
	return g.places[q], nil
}

type fakePopups struct{}

func (fakePopups) Build(props map[string]any, _ []string) (string, error) {
	if _, ok := props["broken"]; ok {
		return "", errors.New("template failed")
	}
	return "<div>popup</div>", nil
}

func (fakePopups) BuildMarker(name string) (string, error) {
	return "<p>" + name + "</p>", nil
}

func fastTimings() Timings {
	return Timings{
		CountStep:    time.Millisecond,
		RenderDelay:  time.Millisecond,
		RenderFade:   time.Millisecond,
		EnterDelay:   time.Millisecond,
		EnterFade:    time.Millisecond,
		ExitFade:     20 * time.Millisecond,
		Highlight:    30 * time.Millisecond,
		Pan:          time.Millisecond,
		Fly:          time.Millisecond,
		FlyZoom:      15,
		OverlayFade:  5 * time.Millisecond,
		NoticeLinger: 20 * time.Millisecond,
		NoticeFade:   10 * time.Millisecond,
	}
}

const (
	good   = "Baik (Memenuhi)"
	medium = "Cemar Ringan"
)

// ponds is a five-feature collection: two good, one medium, one with another
// status and one without attributes.
func ponds() *dataset.Collection {
	geoms := []orb.Geometry{
		orb.Polygon{{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}},
		orb.Polygon{{{2, 0}, {2, 1}, {3, 1}, {3, 0}, {2, 0}}},
		orb.Polygon{{{4, 0}, {4, 1}, {5, 1}, {5, 0}, {4, 0}}},
		orb.Point{6, 0.5},
		orb.Polygon{{{7, 0}, {7, 2}, {8, 2}, {8, 0}, {7, 0}}},
	}
	records := []map[string]any{
		{"Name": "A", "Status": good},
		{"Name": "B", "Status": good},
		{"Name": "C", "Status": medium},
		{"Name": "D", "Status": "Cemar Berat"},
	}
	return dataset.Combine(geoms, []string{"Name", "Status"}, records)
}

type harness struct {
	ctrl *Controller
	ui   *recorder
	geo  *fakeGeocoder
}

func newHarness(t *testing.T, load loaderFunc) *harness {
	t.Helper()
	if load == nil {
		load = func(context.Context) (*dataset.Collection, error) { return ponds(), nil }
	}
	ui := newRecorder()
	geo := &fakeGeocoder{places: map[string][]geocode.Place{}}
	ctrl := New("test", Deps{Loader: load, Geocoder: geo, Popups: fakePopups{}}, ui, ui, Config{
		Labels:  quality.DefaultLabels,
		Timings: fastTimings(),
		Log:     zerolog.Nop(),
	})
	t.Cleanup(ctrl.Close)
	return &harness{ctrl: ctrl, ui: ui, geo: geo}
}

// waitFor polls cond until it holds or a second has passed.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
