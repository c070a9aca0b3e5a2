// Package telemetry provides Prometheus metrics and the health/status HTTP server.
package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	PollCycles         *prometheus.CounterVec // labels: cycle, outcome
	CacheLookups       *prometheus.CounterVec // labels: result (hit, miss, stale)
	DashboardPublishes *prometheus.CounterVec // labels: action
	RequestFailures    *prometheus.CounterVec // labels: kind

	// Histograms (seconds)
	CycleDuration *prometheus.HistogramVec // labels: cycle

	// Gauges
	ActiveStreamsGauge prometheus.Gauge
	ServerOnlineGauge  prometheus.Gauge     // 1=online,0=offline
	LibraryItemsGauge  *prometheus.GaugeVec // labels: library
)

// Init registers metrics (idempotent). Helpers are no-ops until it runs.
func Init() {
	once.Do(func() {
		PollCycles = promauto.NewCounterVec(prometheus.CounterOpts{Name: "embywatch_poll_cycles_total", Help: "Poll cycles by cycle and outcome"}, []string{"cycle", "outcome"})
		CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{Name: "embywatch_library_cache_lookups_total", Help: "Library stats cache lookups by result"}, []string{"result"})
		DashboardPublishes = promauto.NewCounterVec(prometheus.CounterOpts{Name: "embywatch_dashboard_publishes_total", Help: "Dashboard publishes by action"}, []string{"action"})
		RequestFailures = promauto.NewCounterVec(prometheus.CounterOpts{Name: "embywatch_media_request_failures_total", Help: "Failed media server requests by kind"}, []string{"kind"})
		CycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{Name: "embywatch_cycle_duration_seconds", Help: "Poll cycle duration seconds", Buckets: prometheus.DefBuckets}, []string{"cycle"})
		ActiveStreamsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "embywatch_active_streams", Help: "Sessions currently playing"})
		ServerOnlineGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "embywatch_server_online", Help: "Media server online=1 offline=0"})
		LibraryItemsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "embywatch_library_items", Help: "Item count per library"}, []string{"library"})
	})
}

// ObserveCycle records one poll cycle.
func ObserveCycle(cycle string, d time.Duration, err error) {
	if PollCycles == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	PollCycles.WithLabelValues(cycle, outcome).Inc()
	CycleDuration.WithLabelValues(cycle).Observe(d.Seconds())
}

// RecordCacheLookup counts a library cache lookup.
func RecordCacheLookup(result string) {
	if CacheLookups != nil {
		CacheLookups.WithLabelValues(result).Inc()
	}
}

// RecordPublish counts a dashboard publish.
func RecordPublish(action string) {
	if DashboardPublishes != nil {
		DashboardPublishes.WithLabelValues(action).Inc()
	}
}

// RecordRequestFailure counts a failed media server request.
func RecordRequestFailure(kind string) {
	if RequestFailures != nil {
		RequestFailures.WithLabelValues(kind).Inc()
	}
}

// SetActiveStreams records current stream count.
func SetActiveStreams(n int) {
	if ActiveStreamsGauge != nil {
		ActiveStreamsGauge.Set(float64(n))
	}
}

// SetServerOnline sets gauge to 1 if online else 0.
func SetServerOnline(online bool) {
	if ServerOnlineGauge == nil {
		return
	}
	if online {
		ServerOnlineGauge.Set(1)
	} else {
		ServerOnlineGauge.Set(0)
	}
}

// SetLibraryItems records the item count of a library by display name.
func SetLibraryItems(library string, n int) {
	if LibraryItemsGauge != nil {
		LibraryItemsGauge.WithLabelValues(library).Set(float64(n))
	}
}
