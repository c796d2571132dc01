package telemetry

import "github.com/prometheus/client_golang/prometheus"

var HTTPRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "planningserver",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests by method, route, and status code.",
	},
	[]string{"method", "route", "status"},
)

var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "planningserver",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
	[]string{"method", "route"},
)

var LiveSyncConnectedClients = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "planningserver",
		Subsystem: "livesync",
		Name:      "connected_clients",
		Help:      "Number of currently connected push-channel clients.",
	},
)

var LiveSyncEnvelopesPublishedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "planningserver",
		Subsystem: "livesync",
		Name:      "envelopes_published_total",
		Help:      "Total number of change envelopes published, by type.",
	},
	[]string{"type"},
)

var LoginAttemptsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "planningserver",
		Subsystem: "auth",
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts by outcome.",
	},
	[]string{"outcome"},
)

var SnapshotsCreatedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "planningserver",
		Subsystem: "snapshot",
		Name:      "created_total",
		Help:      "Total number of snapshots created by the scheduler or operator.",
	},
)

// All returns all domain-specific metrics for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestsTotal,
		HTTPRequestDuration,
		LiveSyncConnectedClients,
		LiveSyncEnvelopesPublishedTotal,
		LoginAttemptsTotal,
		SnapshotsCreatedTotal,
	}
}

// NewMetricsRegistry creates a Prometheus registry pre-populated with Go
// runtime collectors plus the given domain collectors.
func NewMetricsRegistry(collectors ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	for _, c := range collectors {
		reg.MustRegister(c)
	}
	return reg
}
