package observability

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Admission metrics
	AdmissionsTotal  *prometheus.CounterVec
	ReleasesTotal    *prometheus.CounterVec
	ActiveCallsGauge *prometheus.GaugeVec

	// Usage metrics
	MinutesRecordedTotal *prometheus.CounterVec
	CallsRecordedTotal   *prometheus.CounterVec

	// Webhook metrics
	WebhookEventsTotal *prometheus.CounterVec

	// Call lifecycle metrics
	CallsSimulatedTotal *prometheus.CounterVec
	CallsReapedTotal    prometheus.Counter

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callgate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "callgate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		AdmissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callgate_admissions_total",
				Help: "Total number of call admission attempts",
			},
			[]string{"result"},
		),
		ReleasesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callgate_releases_total",
				Help: "Total number of concurrency slot releases",
			},
			[]string{"result"},
		),
		ActiveCallsGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "callgate_active_calls",
				Help: "Current number of active calls per account",
			},
			[]string{"account_id"},
		),

		MinutesRecordedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callgate_minutes_recorded_total",
				Help: "Total minutes recorded against usage buckets",
			},
			[]string{"bucket"},
		),
		CallsRecordedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callgate_calls_recorded_total",
				Help: "Total calls recorded against usage buckets",
			},
			[]string{"bucket"},
		),

		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callgate_webhook_events_total",
				Help: "Total webhook events processed by type and outcome",
			},
			[]string{"event_type", "outcome"},
		),

		CallsSimulatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callgate_calls_simulated_total",
				Help: "Total simulated calls by final state",
			},
			[]string{"state"},
		),
		CallsReapedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "callgate_calls_reaped_total",
				Help: "Total stuck calls forced to a failed terminal state",
			},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "callgate_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "callgate_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AdmissionsTotal,
		m.ReleasesTotal,
		m.ActiveCallsGauge,
		m.MinutesRecordedTotal,
		m.CallsRecordedTotal,
		m.WebhookEventsTotal,
		m.CallsSimulatedTotal,
		m.CallsReapedTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// ObserveDBStats publishes a connection pool snapshot to the database gauges
func (m *Metrics) ObserveDBStats(stats sql.DBStats) {
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}

// CollectDBStats refreshes the connection pool gauges on a fixed interval
// until the context ends
func (m *Metrics) CollectDBStats(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ObserveDBStats(db.Stats())
		}
	}
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

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
