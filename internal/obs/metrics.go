package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	accessDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_denials_total",
			Help: "Authorization denials by entity and action.",
		},
		[]string{"entity", "action"},
	)

	auditQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "audit_queue_depth",
		Help: "Pending audit events awaiting persistence.",
	})

	auditFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_write_failures_total",
		Help: "Audit entries that could not be persisted.",
	})

	monitorUnhealthy = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "monitor_unhealthy_checks",
		Help: "Health checks currently failing.",
	})
)

// Init registers metrics in the default registry. Call once at process start.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		accessDenialsTotal,
		auditQueueDepth,
		auditFailuresTotal,
		monitorUnhealthy,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAccessDenial bumps the denial counter for the given entity/action pair.
func ObserveAccessDenial(entity, action string) {
	accessDenialsTotal.WithLabelValues(entity, action).Inc()
}

// SetAuditQueueDepth records the pending audit backlog.
func SetAuditQueueDepth(n int) {
	auditQueueDepth.Set(float64(n))
}

// ObserveAuditFailure counts one failed audit write.
func ObserveAuditFailure() {
	auditFailuresTotal.Inc()
}

// SetUnhealthyChecks records the number of failing monitor checks.
func SetUnhealthyChecks(n int) {
	monitorUnhealthy.Set(float64(n))
}

// Instrument wraps a handler with request count/latency/in-flight metrics.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses per-entity paths so metric label cardinality stays
// bounded by the entity catalog, not by tenants or row identifiers.
func CanonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	const crudPrefix = "/api/ilkys/"
	if strings.HasPrefix(path, crudPrefix) {
		rest := strings.Trim(strings.TrimPrefix(path, crudPrefix), "/")
		if rest != "" && !strings.Contains(rest, "/") {
			return crudPrefix + ":entity"
		}
	}
	return path
}

// statusWriter captures the response code written by downstream handlers.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
