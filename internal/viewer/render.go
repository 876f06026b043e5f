package viewer

import (
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-shpview/internal/dataset"
	"github.com/joeblew999/plat-shpview/internal/present"
)

var _ Loader = (*dataset.Loader)(nil)

// render replaces the Feature Set with coll and draws it as a new layer
// group. Callers hold c.mu.
func (c *Controller) render(coll *dataset.Collection) {
	features := coll.Features.Features
	c.sess.ReplaceFeatures(features)

	base := len(c.sess.Layers())
	layers := make([]*Layer, len(features))
	specs := make([]LayerSpec, len(features))
	ids := make([]int, 0, len(features))
	for i, f := range features {
		id := base + i
		l := c.layer(id, f, coll.Fields)
		layers[i] = l
		specs[i] = l.Spec
		ids = append(ids, id)
		c.sess.SetShown(id, true)
		c.sess.SetAttached(id, true)
	}
	group := c.sess.AppendGroup(layers)

	c.m.AddLayers(specs)
	c.fadeIn(ids, c.cfg.Timings.RenderDelay, c.cfg.Timings.RenderFade)

	if b, ok := coll.Bound(); ok {
		c.sess.ExtendBound(b)
		c.m.FitBounds(b)
	}
	c.tally()

	if c.sess.Overlay() == OverlayVisible {
		c.setOverlay(OverlayFading)
		c.sched.After("overlay", c.cfg.Timings.OverlayFade, func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.setOverlay(OverlayHidden)
		})
	}
	c.log.Debug().Int("group", group).Int("layers", len(layers)).Msg("layers rendered")
}

// layer builds the rendered layer of feature f. Features with attributes get
// a popup and respond to clicks.
func (c *Controller) layer(id int, f *geojson.Feature, fields []string) *Layer {
	status, hasStatus := c.cfg.Labels.Status(f.Properties)
	cat := c.cfg.Labels.Classify(f.Properties)
	l := &Layer{
		Feature:   f,
		Category:  cat,
		Status:    status,
		HasStatus: hasStatus,
		Spec: LayerSpec{
			ID:        id,
			Style:     present.StyleFor(f.Geometry, cat),
			Concealed: true,
		},
	}
	if f.Geometry != nil {
		l.Spec.Geometry = geojson.NewGeometry(f.Geometry)
	}
	if len(f.Properties) > 0 {
		popup, err := c.deps.Popups.Build(f.Properties, fields)
		if err != nil {
			c.log.Warn().Err(err).Int("layer", id).Msg("popup render failed")
		}
		l.Spec.Popup = popup
		l.Spec.Interactive = true
	}
	return l
}

// fadeIn reveals layers after delay, skipping any hidden again meanwhile.
func (c *Controller) fadeIn(ids []int, delay, d time.Duration) {
	if len(ids) == 0 {
		return
	}
	c.sched.After(taskKey("enter", c.next()), delay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		var visible []int
		for _, id := range ids {
			if c.sess.Shown(id) {
				visible = append(visible, id)
			}
		}
		if len(visible) > 0 {
			c.m.FadeIn(visible, d)
		}
	})
}
