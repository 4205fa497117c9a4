package metrics

import (
	"expvar"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// expvar counters, served on /debug/vars.
var (
	SessionsResolved = expvar.NewMap("sessions_resolved")
	BackendFailures  = expvar.NewMap("backend_failures")
	SessionsCreated  = expvar.NewInt("sessions_created")
	RateLimited      = expvar.NewInt("rate_limited")
)

// Prometheus collectors, served on /metrics.
var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zodic_http_requests_total",
			Help: "HTTP requests served, by server, route and status.",
		},
		[]string{"server", "method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zodic_http_request_duration_seconds",
			Help:    "HTTP request latency by server and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"server", "route"},
	)

	backendFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zodic_web_backend_failures_total",
			Help: "Dashboard sections that fell back to defaults, by section and failure kind.",
		},
		[]string{"section", "kind"},
	)

	sessionsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zodic_web_sessions_resolved_total",
			Help: "Session resolutions by source (handoff|cookie|none).",
		},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(httpRequests, httpDuration, backendFailures, sessionsResolved)
}

// ObserveRequest records one served HTTP request.
func ObserveRequest(server, method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(server, method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(server, route).Observe(elapsed.Seconds())
}

// BackendFailure counts a dashboard section that failed to load, by kind.
func BackendFailure(section, kind string) {
	BackendFailures.Add(section+"."+kind, 1)
	backendFailures.WithLabelValues(section, kind).Inc()
}

// SessionResolved counts session resolutions by source.
func SessionResolved(source string) {
	SessionsResolved.Add(source, 1)
	sessionsResolved.WithLabelValues(source).Inc()
}
