// Package metrics exposes Prometheus collectors for the HTTP surface and the
// authentication and bootstrap paths.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "habit_tracker",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "habit_tracker",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "habit_tracker",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	authAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "habit_tracker",
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Authentication attempts by method and outcome.",
		},
		[]string{"method", "outcome"},
	)

	bootstraps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "habit_tracker",
			Subsystem: "snapshots",
			Name:      "bootstrap_total",
			Help:      "Bootstrap checks, labelled by whether defaults were written.",
		},
		[]string{"initialized"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		authAttempts,
		bootstraps,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps next with request count, latency and in-flight
// collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := CanonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordAuth counts one authentication attempt.
func RecordAuth(method, outcome string) {
	authAttempts.WithLabelValues(method, outcome).Inc()
}

// RecordBootstrap counts one bootstrap check.
func RecordBootstrap(initialized bool) {
	bootstraps.WithLabelValues(strconv.FormatBool(initialized)).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps server-sent event streams working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// knownPaths are the fixed routes reported under their own label.
var knownPaths = map[string]bool{
	"/":                     true,
	"/healthz":              true,
	"/metrics":              true,
	"/auth/register":        true,
	"/auth/login":           true,
	"/auth/google":          true,
	"/auth/google/oauth":    true,
	"/auth/google/callback": true,
	"/auth/profile":         true,
	"/storage":              true,
}

// CanonicalPath maps a request path onto the route it would match, with
// path parameters collapsed. Anything else is reported as "other" so label
// cardinality stays bounded.
func CanonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if knownPaths["/"+trimmed] {
		return "/" + trimmed
	}

	parts := strings.Split(trimmed, "/")
	if parts[0] == "storage" {
		switch {
		case len(parts) == 2:
			return "/storage/:year"
		case len(parts) == 3:
			return "/storage/:year/:month"
		case len(parts) == 4 && parts[3] == "init":
			return "/storage/:year/:month/init"
		}
	}
	return "other"
}
