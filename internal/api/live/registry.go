// Package live contains the Datastar SSE handlers that connect a browser
// page to its viewer session.
package live

import (
	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-shpview/internal/logger"
	"github.com/joeblew999/plat-shpview/internal/metrics"
	"github.com/joeblew999/plat-shpview/internal/quality"
	"github.com/joeblew999/plat-shpview/internal/service"
	"github.com/joeblew999/plat-shpview/internal/viewer"
)

// Session pairs a viewer controller with the bus its updates are published on.
type Session struct {
	Bus        *service.EventBus
	Controller *viewer.Controller
}

// Close stops the controller and disconnects every stream.
func (s *Session) Close() {
	s.Controller.Close()
	s.Bus.Close()
}

// Registry holds the live sessions, bounded by an LRU.
type Registry struct {
	store *service.SessionStore[*Session]
	log   zerolog.Logger
}

// NewRegistry creates a registry of up to size sessions built by create.
// Evicted sessions are closed.
func NewRegistry(size int, create func(id string) *Session, log zerolog.Logger) *Registry {
	r := &Registry{log: logger.Component(log, "sessions")}
	r.store = service.NewSessionStore(size, create, func(id string, s *Session) {
		s.Close()
		r.log.Debug().Str("session", id).Msg("session evicted")
	})
	return r
}

// Session returns the session for id, creating it on first use.
func (r *Registry) Session(id string) *Session {
	s, created := r.store.GetOrCreate(id)
	if created {
		r.log.Debug().Str("session", id).Msg("session created")
	}
	metrics.SetSessions(r.store.Len())
	return s
}

// Snapshot returns the Quality Counts and filter selection of session id.
func (r *Registry) Snapshot(id string) (quality.Counts, string, bool) {
	s, ok := r.store.Get(id)
	if !ok {
		return quality.Counts{}, "", false
	}
	return s.Controller.Counts(), s.Controller.Category(), true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return r.store.Len()
}

// Close closes every session.
func (r *Registry) Close() {
	r.store.Purge()
	metrics.SetSessions(0)
}
