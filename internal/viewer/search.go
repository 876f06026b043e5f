package viewer

import (
	"context"
	"fmt"
	"strings"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-shpview/internal/metrics"
)

// SearchSubmitted looks up a place and marks it on the map. Blank input does
// nothing. A lookup failure is only logged; no match shows a notice.
func (c *Controller) SearchSubmitted(ctx context.Context, query string) error {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil
	}

	places, err := c.deps.Geocoder.Search(ctx, q)
	if err != nil {
		metrics.IncSearch("error")
		c.log.Warn().Err(err).Str("query", q).Msg("place lookup failed")
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(places) == 0 {
		metrics.IncSearch("not_found")
		c.notify(`Location "` + q + `" not found`)
		return nil
	}
	metrics.IncSearch("found")

	p := places[0]
	at := orb.Point{p.Lon, p.Lat}
	popup, err := c.deps.Popups.BuildMarker(p.DisplayName)
	if err != nil {
		c.log.Warn().Err(err).Msg("marker popup render failed")
	}

	if c.sess.Marker() != nil {
		c.m.RemoveMarker()
	}
	c.sess.ReplaceMarker(&Marker{At: at, Name: p.DisplayName, Popup: popup})
	c.m.PlaceMarker(at, popup)
	c.m.FlyTo(at, c.cfg.Timings.FlyZoom, c.cfg.Timings.Fly)
	return nil
}

// notify shows a notice that fades away on its own. Callers hold c.mu.
func (c *Controller) notify(text string) {
	n := Notice{ID: fmt.Sprintf("notice-%d", c.next()), Text: text}
	c.d.ShowNotice(n)

	key := "notice:" + n.ID
	c.sched.After(key, c.cfg.Timings.NoticeLinger, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.d.FadeNotice(n)
		c.sched.After(key, c.cfg.Timings.NoticeFade, func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.d.RemoveNotice(n.ID)
		})
	})
}
