// Package metrics exposes Prometheus collectors for the HTTP surface and
// the evaluation/alert pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/complif/rules-engine/internal/app/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rules_engine",
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rules_engine",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rules_engine",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)

	evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rules_engine",
			Subsystem: "evaluation",
			Name:      "transactions_total",
			Help:      "Total number of transactions evaluated, grouped by decision.",
		},
		[]string{"decision"},
	)

	evaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rules_engine",
			Subsystem: "evaluation",
			Name:      "duration_seconds",
			Help:      "Duration of the full ingest-and-evaluate pipeline.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"decision"},
	)

	alertsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rules_engine",
			Subsystem: "alerts",
			Name:      "created_total",
			Help:      "Total number of alerts created, grouped by severity.",
		},
		[]string{"severity"},
	)

	alertsSuppressed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rules_engine",
			Subsystem: "alerts",
			Name:      "suppressed_total",
			Help:      "Total number of triggers consolidated into an existing alert.",
		},
		[]string{"severity"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		evaluationsTotal,
		evaluationDuration,
		alertsCreated,
		alertsSuppressed,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps next with HTTP request metrics.
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

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// Recorder implements evaluation.MetricsRecorder.
type Recorder struct{}

// ObserveEvaluation records one ingest-and-evaluate pass.
func (Recorder) ObserveEvaluation(decision domain.Decision, duration time.Duration) {
	label := strings.ToLower(string(decision))
	if label == "" {
		label = "unknown"
	}
	evaluationsTotal.WithLabelValues(label).Inc()
	evaluationDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordAlertCreated increments the created-alerts counter for severity.
func RecordAlertCreated(severity string) {
	alertsCreated.WithLabelValues(normalizeSeverity(severity)).Inc()
}

// RecordAlertSuppressed increments the suppressed-trigger counter for severity.
func RecordAlertSuppressed(severity string) {
	alertsSuppressed.WithLabelValues(normalizeSeverity(severity)).Inc()
}

func normalizeSeverity(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	return s
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses path parameters so high-cardinality ids don't
// blow up the requests_total label set, e.g. /alerts/<uuid> -> /alerts/:id.
func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) <= 1 {
		return "/" + trimmed
	}
	out := make([]string, len(parts))
	for i, p := range parts {
		if i > 0 && looksLikeID(p) {
			out[i] = ":id"
			continue
		}
		out[i] = p
	}
	return "/" + strings.Join(out, "/")
}

func looksLikeID(s string) bool {
	if len(s) < 8 {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f' || r >= 'A' && r <= 'F' || r == '-') {
			return false
		}
	}
	return true
}
