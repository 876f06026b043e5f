// Package server composes the shpview HTTP server: the viewer page, static
// assets, the Datastar viewer routes, the JSON API and metrics.
package server

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-shpview/internal/api"
	"github.com/joeblew999/plat-shpview/internal/api/live"
	"github.com/joeblew999/plat-shpview/internal/dataset"
	"github.com/joeblew999/plat-shpview/internal/db"
	"github.com/joeblew999/plat-shpview/internal/geocode"
	"github.com/joeblew999/plat-shpview/internal/logger"
	"github.com/joeblew999/plat-shpview/internal/metrics"
	"github.com/joeblew999/plat-shpview/internal/present"
	"github.com/joeblew999/plat-shpview/internal/quality"
	"github.com/joeblew999/plat-shpview/internal/service"
	"github.com/joeblew999/plat-shpview/internal/templates"
	"github.com/joeblew999/plat-shpview/internal/ui"
	"github.com/joeblew999/plat-shpview/internal/viewer"
	"github.com/joeblew999/plat-shpview/web"
)

// Config holds the server configuration.
type Config struct {
	Host        string
	Port        string
	Dataset     string
	DataDir     string
	WebDir      string // optional on-disk web/ directory overriding the embedded assets
	Labels      quality.Labels
	S3          dataset.S3Config
	UserAgent   string
	GeocoderURL string
	GeocoderRPS float64
	RedisAddr   string
	MaxSessions int
	LoadTimeout time.Duration
	Log         zerolog.Logger
}

// Server is the shpview HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	db       *sql.DB
	renderer *templates.Renderer
	webFS    fs.FS
	sessions *live.Registry
	redis    *geocode.RedisCache
	log      zerolog.Logger
}

// New creates a new shpview server. The DuckDB mirror and the Redis cache
// are optional: the server runs without them when they cannot be opened.
func New(cfg Config) (*Server, error) {
	if cfg.Labels.Field == "" {
		cfg.Labels = quality.DefaultLabels
	}
	log := logger.Component(cfg.Log, "server")

	webFS := fs.FS(web.FS)
	if cfg.WebDir != "" {
		webFS = os.DirFS(cfg.WebDir)
	}
	renderer, err := templates.New(webFS)
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	loc, err := dataset.ParseLocation(cfg.Dataset, cfg.S3, cfg.UserAgent)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("shpview API", api.Version)
	humaConfig.Info.Description = "Shapefile map viewer: status filter, place search and live map updates over Datastar SSE."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	s := &Server{
		config:   cfg,
		mux:      mux,
		humaAPI:  humago.New(mux, humaConfig),
		renderer: renderer,
		webFS:    webFS,
		log:      log,
	}

	conn, err := db.Open(db.Config{DataDir: cfg.DataDir, DBName: "shpview"})
	if err != nil {
		log.Warn().Err(err).Msg("duckdb unavailable, SQL routes disabled")
	} else {
		s.db = conn
	}

	deps := viewer.Deps{
		Loader:   dataset.NewLoader(loc),
		Geocoder: s.geocoder(),
		Popups:   present.NewPopupBuilder(renderer),
	}
	if s.db != nil {
		deps.Mirror = db.NewMirror(s.db, cfg.Labels, cfg.Log)
	}
	vcfg := viewer.Config{Labels: cfg.Labels, LoadTimeout: cfg.LoadTimeout, Log: cfg.Log}

	s.sessions = live.NewRegistry(cfg.MaxSessions, func(id string) *live.Session {
		bus := service.NewEventBus(256)
		bus.OnDrop(func(ev service.Event) {
			metrics.IncDropped(ev.Kind.String())
			s.log.Warn().Str("session", id).Stringer("kind", ev.Kind).Msg("event dropped for slow stream")
		})
		script := ui.New(bus, renderer, cfg.Log)
		return &live.Session{Bus: bus, Controller: viewer.New(id, deps, script, script, vcfg)}
	}, cfg.Log)

	s.routes()

	wrap, err := gzhttp.NewWrapper(gzhttp.ExceptContentTypes([]string{"text/event-stream"}))
	if err != nil {
		return nil, err
	}
	s.handler = wrap(mux)
	return s, nil
}

func (s *Server) geocoder() *geocode.Client {
	var cache geocode.Cache = geocode.NewLRUCache(1024)
	if s.config.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rc, err := geocode.NewRedisCache(ctx, s.config.RedisAddr, 24*time.Hour)
		if err != nil {
			s.log.Warn().Err(err).Str("addr", s.config.RedisAddr).Msg("redis unavailable, caching lookups in memory")
		} else {
			s.redis = rc
			cache = rc
		}
	}
	return geocode.NewClient(geocode.Config{
		BaseURL:   s.config.GeocoderURL,
		UserAgent: s.config.UserAgent,
		RPS:       s.config.GeocoderRPS,
		Cache:     cache,
	}, s.config.Log)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the OpenAPI document of the JSON and Datastar routes.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Sessions returns the live session registry.
func (s *Server) Sessions() *live.Registry {
	return s.sessions
}

// Close closes server resources.
func (s *Server) Close() error {
	s.sessions.Close()
	if s.redis != nil {
		s.redis.Close()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Server) routes() {
	// Huma REST API routes (OpenAPI-documented JSON endpoints)
	huma.AutoRegister(s.humaAPI, api.NewAPIHandler(s.sessions, s.config.Labels))
	api.NewInfoHandler(s.config.Dataset, s.config.DataDir, s.db != nil).RegisterRoutes(s.humaAPI)
	api.NewDBHandler(s.db).RegisterRoutes(s.humaAPI)

	// Viewer Datastar SSE routes
	live.NewHandler(s.sessions, s.config.Log).RegisterRoutes(s.humaAPI)

	static, err := fs.Sub(s.webFS, "static")
	if err == nil {
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	}
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/", s.handleViewer)
}

// PageData is the data of the viewer page template.
type PageData struct {
	Title   string
	Dataset string
	Labels  quality.Labels
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if s.config.WebDir != "" {
		if err := s.renderer.Reload(s.webFS); err != nil {
			s.log.Error().Err(err).Msg("reloading templates")
		}
	}

	if c, err := r.Cookie(api.SessionCookie); err != nil || c.Value == "" {
		http.SetCookie(w, &http.Cookie{
			Name:     api.SessionCookie,
			Value:    uuid.NewString(),
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	var buf bytes.Buffer
	err := s.renderer.RenderToBuffer(&buf, "viewer", PageData{
		Title:   "Shapefile Viewer",
		Dataset: s.config.Dataset,
		Labels:  s.config.Labels,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("rendering viewer page")
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
