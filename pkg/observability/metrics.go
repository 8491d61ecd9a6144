package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Tenant context metrics
	ResolutionsTotal *prometheus.CounterVec
	ScopePushesTotal prometheus.Counter
	StackFaultsTotal prometheus.Counter

	// Authorization metrics
	DecisionsTotal    *prometheus.CounterVec
	DenialsTotal      *prometheus.CounterVec
	DecisionCacheHits prometheus.Counter
	DecisionCacheMiss prometheus.Counter

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "careledger_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "careledger_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "careledger_tenant_resolutions_total",
				Help: "Organization resolution attempts by outcome (resolved, failed)",
			},
			[]string{"outcome"},
		),
		ScopePushesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "careledger_tenant_scope_pushes_total",
				Help: "Total number of tenant scopes established",
			},
		),
		StackFaultsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "careledger_tenant_stack_faults_total",
				Help: "Mismatched context stack pops, each indicating an isolation defect",
			},
		),
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "careledger_authz_decisions_total",
				Help: "Permission decisions by module and outcome (allow, deny, superadmin)",
			},
			[]string{"module", "outcome"},
		),
		DenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "careledger_authz_denials_total",
				Help: "Policy denials by resource and action",
			},
			[]string{"resource", "action"},
		),
		DecisionCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "careledger_authz_decision_cache_hits_total",
				Help: "Memoized permission decisions served from cache",
			},
		),
		DecisionCacheMiss: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "careledger_authz_decision_cache_misses_total",
				Help: "Permission decisions computed against the rule store",
			},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "careledger_db_connections_active",
				Help: "Active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "careledger_db_connections_idle",
				Help: "Idle database connections",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ResolutionsTotal,
		m.ScopePushesTotal,
		m.StackFaultsTotal,
		m.DecisionsTotal,
		m.DenialsTotal,
		m.DecisionCacheHits,
		m.DecisionCacheMiss,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler returns the /metrics handler for the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps an HTTP handler with request counting and timing
func (m *Metrics) InstrumentHandler(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// Middleware instruments requests using the matched route's path template
// so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}
		m.InstrumentHandler(path, next).ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.written {
		r.status = code
		r.written = true
		r.ResponseWriter.WriteHeader(code)
	}
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.written {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}
