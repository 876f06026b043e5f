// Package geocode resolves free-text place names through a Nominatim
// compatible search service.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/joeblew999/plat-shpview/internal/metrics"
)

// DefaultBaseURL is the public OpenStreetMap Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// Place is one lookup candidate.
type Place struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DisplayName string  `json:"display_name"`
}

// nominatimResult is the subset of a search result we read. Nominatim sends
// coordinates as strings.
type nominatimResult struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Config configures a Client.
type Config struct {
	BaseURL   string
	UserAgent string
	// RPS bounds requests per second against the service; 0 disables it.
	RPS   float64
	Cache Cache
	HTTP  *http.Client
}

// Client searches places, throttled and cached.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	cache     Cache
	log       zerolog.Logger
}

// NewClient creates a client. A nil cache disables caching.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	hc := cfg.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}
	return &Client{
		baseURL:   base,
		userAgent: cfg.UserAgent,
		http:      hc,
		limiter:   limiter,
		cache:     cfg.Cache,
		log:       log.With().Str("component", "geocode").Logger(),
	}
}

// Search returns the candidates for q, best first. An empty slice means
// nothing matched. Only non-empty results are cached.
func (c *Client) Search(ctx context.Context, q string) ([]Place, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}

	key := Key(q)
	if c.cache != nil {
		if places, ok := c.cache.Get(ctx, key); ok {
			metrics.IncCacheHit()
			return places, nil
		}
		metrics.IncCacheMiss()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	places, err := c.fetch(ctx, q)
	if err != nil {
		return nil, err
	}

	if c.cache != nil && len(places) > 0 {
		if err := c.cache.Set(ctx, key, places); err != nil {
			c.log.Warn().Err(err).Msg("geocode cache write failed")
		}
	}
	return places, nil
}

func (c *Client) fetch(ctx context.Context, q string) ([]Place, error) {
	u := fmt.Sprintf("%s/search?format=json&q=%s", c.baseURL, url.QueryEscape(q))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nominatim request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim returned status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decoding nominatim response: %w", err)
	}

	places := make([]Place, 0, len(results))
	for _, r := range results {
		lat, err1 := strconv.ParseFloat(r.Lat, 64)
		lon, err2 := strconv.ParseFloat(r.Lon, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		places = append(places, Place{Lat: lat, Lon: lon, DisplayName: r.DisplayName})
	}
	return places, nil
}
