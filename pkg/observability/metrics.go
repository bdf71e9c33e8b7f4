package observability

import (
	"database/sql"
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

	// Auth metrics
	AuthEventsTotal *prometheus.CounterVec

	// Quota metrics
	QuotaDecisionsTotal *prometheus.CounterVec
	QuotaTokensConsumed *prometheus.CounterVec
	QuotaCheckDuration  *prometheus.HistogramVec

	// Invitation metrics
	InvitationsTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive    prometheus.Gauge
	DBConnectionsIdle      prometheus.Gauge
	DBConnectionsWaitCount prometheus.Gauge

	// Background jobs
	JobRunsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backoffice_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		AuthEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_auth_events_total",
				Help: "Authentication events by type and result",
			},
			[]string{"event", "result"},
		),

		QuotaDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_quota_decisions_total",
				Help: "Quota admission decisions by feature and result",
			},
			[]string{"feature", "result"},
		),
		QuotaTokensConsumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_quota_tokens_consumed_total",
				Help: "Tokens admitted by the quota engine",
			},
			[]string{"feature"},
		),
		QuotaCheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backoffice_quota_check_duration_seconds",
				Help:    "Time spent in a quota admission decision",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"backend"},
		),

		InvitationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_invitations_total",
				Help: "Invitation lifecycle actions",
			},
			[]string{"action", "result"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "backoffice_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "backoffice_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "backoffice_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),

		JobRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_job_runs_total",
				Help: "Background job runs by job and result",
			},
			[]string{"job", "result"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthEventsTotal,
		m.QuotaDecisionsTotal,
		m.QuotaTokensConsumed,
		m.QuotaCheckDuration,
		m.InvitationsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
		m.JobRunsTotal,
	)

	return m
}

// RecordAuthEvent counts an authentication event. Safe on a nil receiver.
func (m *Metrics) RecordAuthEvent(event string, success bool) {
	if m == nil {
		return
	}
	m.AuthEventsTotal.WithLabelValues(event, resultLabel(success)).Inc()
}

// RecordQuotaDecision counts an admission decision. Safe on a nil receiver.
func (m *Metrics) RecordQuotaDecision(feature, result string, tokens int64) {
	if m == nil {
		return
	}
	m.QuotaDecisionsTotal.WithLabelValues(feature, result).Inc()
	if result == "admit" && tokens > 0 {
		m.QuotaTokensConsumed.WithLabelValues(feature).Add(float64(tokens))
	}
}

// ObserveQuotaCheck records admission latency. Safe on a nil receiver.
func (m *Metrics) ObserveQuotaCheck(backend string, d time.Duration) {
	if m == nil {
		return
	}
	m.QuotaCheckDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// RecordInvitation counts an invitation action. Safe on a nil receiver.
func (m *Metrics) RecordInvitation(action string, success bool) {
	if m == nil {
		return
	}
	m.InvitationsTotal.WithLabelValues(action, resultLabel(success)).Inc()
}

// RecordJobRun counts a background job run. Safe on a nil receiver.
func (m *Metrics) RecordJobRun(job string, success bool) {
	if m == nil {
		return
	}
	m.JobRunsTotal.WithLabelValues(job, resultLabel(success)).Inc()
}

// UpdateDBStats copies connection pool stats into the gauges
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBConnectionsWaitCount.Set(float64(stats.WaitCount))
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Requests are labelled with the mux route template to keep cardinality bounded.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			route := routeTemplate(r)
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration)
		})
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
