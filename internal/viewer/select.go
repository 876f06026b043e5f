package viewer

import "github.com/paulmach/orb"

// FeatureSelected handles a click on layer id at the clicked point: the map
// pans there, opens the layer's popup and highlights it for a while.
func (c *Controller) FeatureSelected(id int, at orb.Point) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.sess.Layer(id)
	if !ok || !l.Spec.Interactive || !c.sess.Shown(id) {
		return ErrUnknownLayer
	}

	c.m.PanTo(at, c.cfg.Timings.Pan)
	c.m.OpenPopup(id, at)
	c.m.Highlight(id, true)
	c.sched.After(taskKey("highlight", id), c.cfg.Timings.Highlight, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.m.Highlight(id, false)
	})
	return nil
}
