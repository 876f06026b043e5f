package viewer

import (
	"context"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-shpview/internal/metrics"
	"github.com/joeblew999/plat-shpview/internal/quality"
)

// CategoryChanged applies a status filter: AllCategories or an exact status
// label. It waits for the dataset load to settle; after a failed load it
// acts on an empty layer set.
func (c *Controller) CategoryChanged(ctx context.Context, category string) error {
	if err := c.awaitLoad(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyFilter(category)
	metrics.IncFilter(c.filterLabel(category))
	return nil
}

func (c *Controller) applyFilter(category string) {
	all := category == AllCategories
	layers := c.sess.Layers()

	// start from every rendered feature so earlier filters do not accumulate
	features := make([]*geojson.Feature, 0, len(layers))
	var entering, restoring, exiting []int
	for id, l := range layers {
		features = append(features, l.Feature)
		match := all || (l.HasStatus && l.Status == category)
		switch {
		case match && !c.sess.Shown(id):
			c.sess.SetShown(id, true)
			entering = append(entering, id)
			if c.sess.Attached(id) {
				// still fading out: keep it on the map
				c.release(exitKey(id))
			} else {
				c.sess.SetAttached(id, true)
				restoring = append(restoring, id)
			}
		case !match && c.sess.Shown(id):
			c.sess.SetShown(id, false)
			exiting = append(exiting, id)
		}
	}

	if len(restoring) > 0 {
		c.m.RestoreLayers(restoring)
	}
	c.fadeIn(entering, c.cfg.Timings.EnterDelay, c.cfg.Timings.EnterFade)
	c.fadeOut(exiting)

	if !all {
		narrowed := features[:0]
		for _, f := range features {
			if s, ok := c.cfg.Labels.Status(f.Properties); ok && s == category {
				narrowed = append(narrowed, f)
			}
		}
		features = narrowed
	}
	c.sess.ReplaceFeatures(features)
	c.sess.SetCategory(category)
	c.log.Debug().Str("category", category).Int("features", len(features)).
		Int("entering", len(entering)).Int("exiting", len(exiting)).Msg("filter applied")
	c.tally()
}

// fadeOut fades layers out and detaches them once the transition is over,
// unless they were shown again in between.
func (c *Controller) fadeOut(ids []int) {
	if len(ids) == 0 {
		return
	}
	c.m.FadeOut(ids, c.cfg.Timings.ExitFade)
	toks := make([]int, len(ids))
	for i, id := range ids {
		toks[i] = c.claim(exitKey(id))
	}
	c.sched.After(taskKey("exit", c.next()), c.cfg.Timings.ExitFade, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		var gone []int
		for i, id := range ids {
			if !c.holds(exitKey(id), toks[i]) {
				continue
			}
			c.release(exitKey(id))
			c.sess.SetAttached(id, false)
			gone = append(gone, id)
		}
		if len(gone) > 0 {
			c.m.RemoveLayers(gone)
		}
	})
}

func exitKey(id int) string {
	return taskKey("exit-layer", id)
}

func (c *Controller) filterLabel(category string) string {
	switch category {
	case AllCategories:
		return AllCategories
	case c.cfg.Labels.Good:
		return quality.Good.String()
	case c.cfg.Labels.Medium:
		return quality.Medium.String()
	default:
		return "other"
	}
}

// Category returns the active filter selection.
func (c *Controller) Category() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Category()
}
