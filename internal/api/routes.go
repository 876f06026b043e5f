// Package api defines the Huma JSON API routes and handlers.
package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-shpview/internal/humastar"
	"github.com/joeblew999/plat-shpview/internal/quality"
)

// SessionCookie names the cookie that carries the viewer session ID.
const SessionCookie = "shpview_session"

// Version is the API version reported by /health and /api/v1/info.
const Version = "0.1.0"

// Sessions looks up the viewer state of a browser session.
type Sessions interface {
	// Snapshot returns the Quality Counts and active filter of session id.
	Snapshot(id string) (counts quality.Counts, category string, ok bool)
}

// Types

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.1.0"`
}

// SessionInput identifies the caller's viewer session.
type SessionInput struct {
	Session string `cookie:"shpview_session" doc:"Viewer session ID"`
}

// CountsBody is the Quality Counts of a session's Feature Set.
type CountsBody struct {
	quality.Counts
	Total    int    `json:"total" doc:"Size of the Feature Set"`
	Category string `json:"category" doc:"Active filter selection" example:"all"`

	labels quality.Labels
}

// Actions links the filter selections the viewer currently offers.
func (b *CountsBody) Actions() []humastar.Action {
	var out []humastar.Action
	for _, sel := range []string{"all", b.labels.Good, b.labels.Medium} {
		if sel == b.Category {
			continue
		}
		out = append(out, humastar.Action{
			Rel:    "filter",
			Href:   "/api/v1/viewer/filter",
			Method: "POST",
			Title:  "Show " + sel,
		})
	}
	return out
}

// APIHandler holds the REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	sessions Sessions
	labels   quality.Labels
}

func NewAPIHandler(sessions Sessions, labels quality.Labels) *APIHandler {
	return &APIHandler{sessions: sessions, labels: labels}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterCounts registers the session counts route.
func (h *APIHandler) RegisterCounts(api huma.API) {
	huma.Get(api, "/api/v1/viewer/counts", h.GetCounts, huma.OperationTags("viewer"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

func (h *APIHandler) GetCounts(ctx context.Context, input *SessionInput) (*struct{ Body *CountsBody }, error) {
	if h.sessions == nil || input.Session == "" {
		return nil, huma.Error404NotFound("no viewer session")
	}
	counts, category, ok := h.sessions.Snapshot(input.Session)
	if !ok {
		return nil, huma.Error404NotFound("no viewer session")
	}
	return &struct{ Body *CountsBody }{Body: &CountsBody{
		Counts:   counts,
		Total:    counts.Total(),
		Category: category,
		labels:   h.labels,
	}}, nil
}
