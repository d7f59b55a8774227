package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/catalogsync/api/internal/platform/observability"
)

const namespace = "catalog_gateway"

// Registry owns the gateway collectors. Each instance registers on its own prometheus registry so
// tests and multiple servers in one process do not collide.
type Registry struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	authFailures     *prometheus.CounterVec
	approvalOutcomes *prometheus.CounterVec
	sideEffectErrors *prometheus.CounterVec
	requestLogWrites *prometheus.CounterVec
}

// New creates a registry with the Go runtime and process collectors attached.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		registry: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "endpoint", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"method", "endpoint", "status"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Rejected API key authentications by HTTP status.",
		}, []string{"status"}),
		approvalOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approval_transitions_total",
			Help:      "Product approval state transitions.",
		}, []string{"action"}),
		sideEffectErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effect_failures_total",
			Help:      "Audit or notification writes that failed after the primary update.",
		}, []string{"kind"}),
		requestLogWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_log_writes_total",
			Help:      "Request log persistence attempts by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.requestsTotal,
		r.requestDuration,
		r.authFailures,
		r.approvalOutcomes,
		r.sideEffectErrors,
		r.requestLogWrites,
	)
	return r
}

// RecordRequest records the outcome of one HTTP request.
func (r *Registry) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if r == nil {
		return
	}
	status := classifyStatus(statusCode)
	r.requestsTotal.WithLabelValues(method, endpoint, status).Inc()
	r.requestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

// AuthFailure counts a request rejected by the API key gate.
func (r *Registry) AuthFailure(status int) {
	if r == nil {
		return
	}
	r.authFailures.WithLabelValues(strconv.Itoa(status)).Inc()
}

// ApprovalTransition counts an approve, reject or delete that reached storage.
func (r *Registry) ApprovalTransition(action string) {
	if r == nil {
		return
	}
	r.approvalOutcomes.WithLabelValues(action).Inc()
}

// SideEffectFailure counts an audit or notification write that failed.
func (r *Registry) SideEffectFailure(kind string) {
	if r == nil {
		return
	}
	r.sideEffectErrors.WithLabelValues(kind).Inc()
}

// RequestLogWrite counts a request log persistence attempt.
func (r *Registry) RequestLogWrite(ok bool) {
	if r == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	r.requestLogWrites.WithLabelValues(outcome).Inc()
}

// Middleware records request counts and latency keyed by the matched route pattern.
func (r *Registry) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			start := time.Now()
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				r.RecordRequest(observability.SanitizeMethod(req.Method), observability.SanitizeRoute(observability.RoutePattern(req)), status, time.Since(start))
			}()
			next.ServeHTTP(ww, req)
		})
	}
}

// Handler exposes the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func classifyStatus(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500 && statusCode < 600:
		return "5xx"
	}
	return "unknown"
}
