// Package metrics exposes the viewer's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	datasetLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shpview_dataset_loads_total",
			Help: "Dataset loads by outcome.",
		},
		[]string{"outcome"},
	)

	loadDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shpview_dataset_load_duration_seconds",
			Help:    "Duration of dataset fetch and decode in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
	)

	featuresLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shpview_features_loaded",
			Help: "Features in the most recently loaded dataset.",
		},
	)

	searches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shpview_searches_total",
			Help: "Place searches by outcome.",
		},
		[]string{"outcome"},
	)

	filterSelections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shpview_filter_selections_total",
			Help: "Status filter selections by category.",
		},
		[]string{"category"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shpview_sessions_active",
			Help: "Viewer sessions held in the session store.",
		},
	)

	eventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shpview_events_dropped_total",
			Help: "Browser events skipped for slow event streams, by kind.",
		},
		[]string{"kind"},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shpview_geocode_cache_results_total",
			Help: "Geocode cache results by outcome.",
		},
		[]string{"outcome"},
	)
)

// ObserveLoad records one dataset load. outcome is "ok" or "error".
func ObserveLoad(outcome string, d time.Duration, features int) {
	datasetLoads.WithLabelValues(outcome).Inc()
	loadDurationSeconds.Observe(d.Seconds())
	if outcome == "ok" {
		featuresLoaded.Set(float64(features))
	}
}

// IncSearch counts a search: "found", "not_found" or "error".
func IncSearch(outcome string) {
	searches.WithLabelValues(outcome).Inc()
}

// IncFilter counts a filter selection.
func IncFilter(category string) {
	filterSelections.WithLabelValues(category).Inc()
}

// SetSessions sets the active session gauge.
func SetSessions(n int) {
	activeSessions.Set(float64(n))
}

// IncDropped counts an event skipped for a slow stream.
func IncDropped(kind string) {
	eventsDropped.WithLabelValues(kind).Inc()
}

func IncCacheHit() {
	cacheResults.WithLabelValues("hit").Inc()
}

func IncCacheMiss() {
	cacheResults.WithLabelValues("miss").Inc()
}
