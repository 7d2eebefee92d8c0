package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dataguardian_http_requests_total",
		Help: "HTTP requests by method, route and status code",
	}, []string{"method", "route", "code"})

	requestsInProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dataguardian_http_requests_in_progress",
		Help: "HTTP requests currently being served",
	})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dataguardian_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	scansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dataguardian_scans_total",
		Help: "Finished compliance runs by kind and status",
	}, []string{"kind", "status"})

	scansRunning = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dataguardian_scans_running",
		Help: "Compliance runs in progress by kind",
	}, []string{"kind"})

	findingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dataguardian_findings_total",
		Help: "Findings reported by scans, by risk level",
	}, []string{"kind", "level"})
)

// ScanStarted marks a run of kind as in progress.
func ScanStarted(kind string) { scansRunning.WithLabelValues(kind).Inc() }

// ScanFinished records the final status of a run started with ScanStarted.
func ScanFinished(kind, status string) {
	scansRunning.WithLabelValues(kind).Dec()
	scansTotal.WithLabelValues(kind, status).Inc()
}

// ObserveFindings adds per-level finding counts.
func ObserveFindings(kind string, high, medium, low int) {
	findingsTotal.WithLabelValues(kind, "high").Add(float64(high))
	findingsTotal.WithLabelValues(kind, "medium").Add(float64(medium))
	findingsTotal.WithLabelValues(kind, "low").Add(float64(low))
}

// Metrics tracks request metrics. Routes are labelled by their chi pattern so
// tenant and scan IDs do not explode label cardinality.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestsInProgress.Inc()
		defer requestsInProgress.Dec()
		start := time.Now()

		wrapped := wrapWriter(w)
		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// MetricsHandler exposes the default Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
