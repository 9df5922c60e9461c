// Package telemetry exposes Prometheus metrics for the API and the status engine.
package telemetry

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	httpDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// StatusEvaluations counts evaluated statuses by resulting health status.
	StatusEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "status_evaluations_total",
			Help: "Status evaluations by resulting health status",
		},
		[]string{"health_status"},
	)
	// DecryptFailures counts records whose payload could not be opened, by stage.
	DecryptFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "record_decrypt_failures_total",
			Help: "Records that failed to decrypt or decode, by protocol stage",
		},
		[]string{"stage"},
	)
	// SnapshotStatuses is the number of named statuses in the active rule set.
	SnapshotStatuses = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rules_snapshot_statuses",
		Help: "Number of named statuses in the active rule document",
	})
	// SSEClients is the number of connected rule stream clients.
	SSEClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sse_clients",
		Help: "Number of currently connected SSE clients",
	})

	initOnce sync.Once
)

// Init registers the collectors with the default registry. Repeated calls are no-ops.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpReqs, httpDur, StatusEvaluations, DecryptFailures, SnapshotStatuses, SSEClients)
	})
}

// ObserveStatus records one evaluation result; an empty code counts as "none".
func ObserveStatus(code string) {
	if code == "" {
		code = "none"
	}
	StatusEvaluations.WithLabelValues(code).Inc()
}

// Middleware records request counts and durations labelled by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		// The pattern is complete only after routing has run.
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		httpReqs.WithLabelValues(route, r.Method, http.StatusText(ww.status)).Inc()
		httpDur.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
