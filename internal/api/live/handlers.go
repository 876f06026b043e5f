package live

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-shpview/internal/humastar"
	"github.com/joeblew999/plat-shpview/internal/logger"
	"github.com/joeblew999/plat-shpview/internal/service"
	"github.com/joeblew999/plat-shpview/internal/viewer"
)

// StreamInput identifies the session of an event stream.
type StreamInput struct {
	Session string `cookie:"shpview_session" doc:"Viewer session ID"`
}

// ActionInput carries the session and the page's Datastar signals.
type ActionInput struct {
	Session string `cookie:"shpview_session" doc:"Viewer session ID"`
	RawBody []byte
}

func (i *ActionInput) signals() (humastar.Signals, error) {
	in := humastar.SignalsInput{RawBody: i.RawBody}
	return in.MustParse()
}

// Handler serves the viewer's event stream and user actions.
type Handler struct {
	humastar.Handler
	sessions *Registry
	log      zerolog.Logger
}

// NewHandler creates a handler over sessions.
func NewHandler(sessions *Registry, log zerolog.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		log:      logger.Component(log, "live"),
	}
}

func (h *Handler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/viewer/events", h.Events, huma.OperationTags("viewer"))
	huma.Post(api, "/api/v1/viewer/filter", h.Filter, huma.OperationTags("viewer"))
	huma.Post(api, "/api/v1/viewer/search", h.Search, huma.OperationTags("viewer"))
	huma.Post(api, "/api/v1/viewer/theme", h.Theme, huma.OperationTags("viewer"))
	huma.Post(api, "/api/v1/viewer/select", h.Select, huma.OperationTags("viewer"))
}

var errNoSession = huma.Error400BadRequest("missing session cookie")

// Events streams the session's updates until the client goes away. The
// first stream of a session starts the dataset load; later ones replay the
// current state.
func (h *Handler) Events(ctx context.Context, input *StreamInput) (*huma.StreamResponse, error) {
	if input.Session == "" {
		return nil, errNoSession
	}
	sess := h.sessions.Session(input.Session)

	return h.Stream(func(sse humastar.SSE) {
		ch := sess.Bus.Subscribe()
		defer sess.Bus.Unsubscribe(ch)
		sess.Controller.Connect()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if err := Send(sse, ev); err != nil {
					h.log.Debug().Err(err).Str("session", input.Session).Msg("event stream closed")
					return
				}
			}
		}
	}), nil
}

// Send writes one bus event to the Datastar stream.
func Send(sse humastar.SSE, ev service.Event) error {
	switch ev.Kind {
	case service.EventSignals:
		return sse.Signals(ev.Signals)
	case service.EventScript:
		return sse.Script(ev.Script)
	case service.EventRemove:
		return sse.Remove(ev.ID)
	case service.EventPatch:
		if ev.Mode == service.PatchOuter {
			return sse.Replace(ev.HTML, ev.Selector)
		}
		return sse.Append(ev.HTML, ev.Selector)
	}
	return nil
}

// action parses the signals of a user action and runs fn against the
// session's controller. Failures come back through the error signal.
func (h *Handler) action(ctx context.Context, input *ActionInput, fn func(ctx context.Context, c *viewer.Controller, s humastar.Signals) error) (*huma.StreamResponse, error) {
	if input.Session == "" {
		return nil, errNoSession
	}
	signals, err := input.signals()
	if err != nil {
		return nil, err
	}
	sess := h.sessions.Session(input.Session)
	err = fn(ctx, sess.Controller, signals)

	return h.Stream(func(sse humastar.SSE) {
		if err != nil {
			sse.Error(err.Error())
			return
		}
		sse.Signals(map[string]any{"error": ""})
	}), nil
}

// Filter applies the category selection.
func (h *Handler) Filter(ctx context.Context, input *ActionInput) (*huma.StreamResponse, error) {
	return h.action(ctx, input, func(ctx context.Context, c *viewer.Controller, s humastar.Signals) error {
		category := s.String("category")
		if category == "" {
			category = viewer.AllCategories
		}
		err := c.CategoryChanged(ctx, category)
		if errors.Is(err, viewer.ErrNotLoaded) {
			return errors.New("dataset not loaded yet")
		}
		return err
	})
}

// Search looks up the query signal.
func (h *Handler) Search(ctx context.Context, input *ActionInput) (*huma.StreamResponse, error) {
	return h.action(ctx, input, func(ctx context.Context, c *viewer.Controller, s humastar.Signals) error {
		return c.SearchSubmitted(ctx, s.String("query"))
	})
}

// Theme applies the dark signal, or flips the theme when it is absent.
func (h *Handler) Theme(ctx context.Context, input *ActionInput) (*huma.StreamResponse, error) {
	return h.action(ctx, input, func(_ context.Context, c *viewer.Controller, s humastar.Signals) error {
		if s.Has("dark") {
			c.SetDark(s.Bool("dark"))
		} else {
			c.ThemeToggled()
		}
		return nil
	})
}

// Select handles a click on a rendered feature.
func (h *Handler) Select(ctx context.Context, input *ActionInput) (*huma.StreamResponse, error) {
	return h.action(ctx, input, func(_ context.Context, c *viewer.Controller, s humastar.Signals) error {
		if !s.Has("selected") {
			return errors.New("no feature selected")
		}
		at := orb.Point{s.Float("clickLng"), s.Float("clickLat")}
		if err := c.FeatureSelected(s.Int("selected"), at); err != nil {
			return errors.New("feature not found")
		}
		return nil
	})
}
