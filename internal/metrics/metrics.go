package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CapturesTotal counts records added to the registry by source.
	CapturesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiosniff_captures_total",
			Help: "Audio records added to the capture registry",
		},
		[]string{"source"},
	)

	// DuplicatesTotal counts observations dropped by URL deduplication.
	DuplicatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiosniff_duplicates_total",
			Help: "Audio observations ignored because the URL was already captured",
		},
		[]string{"source"},
	)

	// RegistrySize tracks the number of records currently held.
	RegistrySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audiosniff_registry_records",
			Help: "Records currently in the capture registry",
		},
	)

	// RequestsTotal counts relay requests by type and outcome.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiosniff_relay_requests_total",
			Help: "Relay requests handled",
		},
		[]string{"type", "result"},
	)

	// DownloadsTotal counts single-file downloads and bundle entries by result.
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiosniff_downloads_total",
			Help: "Media fetches performed for downloads and bundles",
		},
		[]string{"kind", "result"},
	)

	// EventsDroppedTotal counts events a full subscriber buffer refused.
	EventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiosniff_events_dropped_total",
			Help: "Stream events dropped for slow subscribers",
		},
		[]string{"feed"},
	)

	// Subscribers tracks open event stream subscriptions.
	Subscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audiosniff_event_subscribers",
			Help: "Open event stream subscriptions",
		},
	)

	// ScansTotal counts page scans by result.
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiosniff_page_scans_total",
			Help: "DOM scans evaluated in attached tabs",
		},
		[]string{"result"},
	)
)

// Handler exposes the default registry in Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
