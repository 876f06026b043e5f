package viewer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-shpview/internal/anim"
	"github.com/joeblew999/plat-shpview/internal/metrics"
	"github.com/joeblew999/plat-shpview/internal/quality"
)

// Config configures a Controller.
type Config struct {
	Labels      quality.Labels
	Timings     Timings
	LoadTimeout time.Duration
	Log         zerolog.Logger
}

// Deps are the collaborators of a Controller. Mirror may be nil.
type Deps struct {
	Loader   Loader
	Geocoder Geocoder
	Popups   Popups
	Mirror   Mirror
}

// Controller owns one Session and turns user actions into map and display
// updates. All methods are safe for concurrent use.
type Controller struct {
	mu    sync.Mutex
	id    string
	cfg   Config
	deps  Deps
	m     Map
	d     Display
	sched *anim.Scheduler
	sess  *Session
	log   zerolog.Logger

	started   bool
	ready     chan struct{}
	readyOnce sync.Once

	seq    int
	tokens map[string]int
}

// New creates a controller for session id.
func New(id string, deps Deps, m Map, d Display, cfg Config) *Controller {
	if cfg.Labels.Field == "" {
		cfg.Labels = quality.DefaultLabels
	}
	if cfg.Timings == (Timings{}) {
		cfg.Timings = DefaultTimings()
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = time.Minute
	}
	return &Controller{
		id:     id,
		cfg:    cfg,
		deps:   deps,
		m:      m,
		d:      d,
		sched:  anim.NewScheduler(),
		sess:   NewSession(),
		log:    cfg.Log.With().Str("component", "viewer").Str("session", id).Logger(),
		ready:  make(chan struct{}),
		tokens: make(map[string]int),
	}
}

// ID returns the session ID.
func (c *Controller) ID() string {
	return c.id
}

// Connect is called for every new event stream of the session. The first
// connection starts the load; later ones replay the current state.
func (c *Controller) Connect() {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		c.Start()
		return
	}
	c.Resync()
}

// Start begins the dataset load in the background. Only the first call has
// any effect.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.sess.SetState(LoadPending, nil)
	c.setOverlay(OverlayVisible)
	c.mu.Unlock()

	go c.Load(context.Background())
}

// Load fetches and renders the dataset. It marks the session started, so a
// direct call replaces Start. A second Load appends another layer group.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.started = true
		c.sess.SetState(LoadPending, nil)
		c.setOverlay(OverlayVisible)
	}
	c.mu.Unlock()
	defer c.readyOnce.Do(func() { close(c.ready) })

	ctx, cancel := context.WithTimeout(ctx, c.cfg.LoadTimeout)
	defer cancel()

	c.log.Info().Msg("dataset load started")
	start := time.Now()
	coll, err := c.deps.Loader.Load(ctx)
	if err != nil {
		metrics.ObserveLoad("error", time.Since(start), 0)
		c.log.Error().Err(err).Dur("took", time.Since(start)).Msg("dataset load failed")
		c.fail(err)
		return err
	}
	metrics.ObserveLoad("ok", time.Since(start), coll.Len())
	c.log.Info().Int("features", coll.Len()).Dur("took", time.Since(start)).Msg("dataset loaded")

	c.mu.Lock()
	c.render(coll)
	c.sess.SetState(LoadLoaded, nil)
	c.mu.Unlock()

	if c.deps.Mirror != nil {
		if err := c.deps.Mirror.Mirror(ctx, coll); err != nil {
			c.log.Warn().Err(err).Msg("feature mirror failed")
		}
	}
	return nil
}

func (c *Controller) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sess.SetState(LoadFailed, err)
	c.sched.Cancel("overlay")
	c.setOverlay(OverlayHidden)
	c.d.Alert(failureMessage(err))
}

func failureMessage(err error) string {
	return "Failed to load shapefile: " + err.Error()
}

// awaitLoad blocks until the load has settled, either way.
func (c *Controller) awaitLoad(ctx context.Context) error {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return ErrNotLoaded
	}
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the load state.
func (c *Controller) State() LoadState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, _ := c.sess.State()
	return st
}

// Counts returns the Quality Counts of the current Feature Set.
func (c *Controller) Counts() quality.Counts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Labels.Tally(c.sess.Features())
}

// Displayed returns the counter values currently on screen.
func (c *Controller) Displayed() quality.Counts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Displayed()
}

// Close stops every pending transition.
func (c *Controller) Close() {
	c.sched.Stop()
}

// Resync replays the session state to a freshly connected page.
func (c *Controller) Resync() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.m.Reset()
	if layers := c.sess.Layers(); len(layers) > 0 {
		specs := make([]LayerSpec, len(layers))
		var detached, visible []int
		for i, l := range layers {
			specs[i] = l.Spec
			specs[i].Concealed = true
			switch {
			case !c.sess.Attached(i):
				detached = append(detached, i)
			case c.sess.Shown(i):
				visible = append(visible, i)
			}
		}
		c.m.AddLayers(specs)
		if len(detached) > 0 {
			c.m.RemoveLayers(detached)
		}
		if len(visible) > 0 {
			c.m.FadeIn(visible, 0)
		}
	}
	if b, ok := c.sess.Bound(); ok {
		c.m.FitBounds(b)
	}
	if mk := c.sess.Marker(); mk != nil {
		c.m.PlaceMarker(mk.At, mk.Popup)
	}

	c.d.SetTheme(c.sess.Dark(), ThemeLabel(c.sess.Dark()))
	c.d.SetCategory(c.sess.Category())
	c.d.SetCounts(c.sess.Displayed())
	c.d.SetOverlay(c.sess.Overlay())
	if st, err := c.sess.State(); st == LoadFailed && err != nil {
		c.d.Alert(failureMessage(err))
	}
}

func (c *Controller) setOverlay(o Overlay) {
	c.sess.SetOverlay(o)
	c.d.SetOverlay(o)
}

// next returns a fresh sequence number for task keys and notice IDs.
func (c *Controller) next() int {
	c.seq++
	return c.seq
}

// claim issues a new token for key, invalidating earlier ones.
func (c *Controller) claim(key string) int {
	t := c.next()
	c.tokens[key] = t
	return t
}

// holds reports whether token t is still the current one for key.
func (c *Controller) holds(key string, t int) bool {
	return c.tokens[key] == t
}

func (c *Controller) release(key string) {
	delete(c.tokens, key)
}

// tally recomputes the Quality Counts and animates the counters towards them.
func (c *Controller) tally() {
	target := c.cfg.Labels.Tally(c.sess.Features())
	for _, cat := range quality.Categories {
		c.animateCounter(cat, target.Get(cat))
	}
}

func (c *Controller) animateCounter(cat quality.Category, target int) {
	key := "count:" + cat.String()
	if c.sess.Displayed().Get(cat) == target {
		c.sched.Cancel(key)
		c.release(key)
		return
	}
	tok := c.claim(key)
	c.sched.Every(key, c.cfg.Timings.CountStep, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.holds(key, tok) {
			return false
		}
		next := quality.Next(c.sess.Displayed().Get(cat), target)
		c.sess.SetDisplayed(c.sess.Displayed().Set(cat, next))
		c.d.SetCounts(c.sess.Displayed())
		if next == target {
			c.release(key)
			return false
		}
		return true
	})
}

func taskKey(kind string, n int) string {
	return fmt.Sprintf("%s:%d", kind, n)
}
