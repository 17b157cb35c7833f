package metrics

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "itemkeeper"

// Auth gate failure reasons. They are recorded here and in debug logs only.
const (
	ReasonMissingHeader    = "missing_header"
	ReasonInvalidSignature = "invalid_signature"
	ReasonExpired          = "expired"
)

// Login outcomes.
const (
	LoginSuccess     = "success"
	LoginInvalid     = "invalid_credentials"
	LoginBadRequest  = "bad_request"
	LoginServerError = "error"
)

// Metrics holds all Prometheus metrics for itemkeeper.
//
// A nil *Metrics is valid and records nothing, so callers never need to
// check whether metrics are enabled.
type Metrics struct {
	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Auth metrics
	AuthFailures  *prometheus.CounterVec
	Logins        *prometheus.CounterVec
	TokensIssued  prometheus.Counter
	Registrations *prometheus.CounterVec

	// Item store metrics
	ItemOperations *prometheus.CounterVec

	// Event publishing metrics
	EventsPublished *prometheus.CounterVec

	// Audit metrics
	AuditDropped prometheus.Counter

	// Event stream metrics
	StreamClients prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_failures_total",
				Help:      "Requests rejected by the bearer token gate",
			},
			[]string{"reason"},
		),
		Logins: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logins_total",
				Help:      "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		TokensIssued: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_issued_total",
				Help:      "Access tokens signed",
			},
		),
		Registrations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registrations_total",
				Help:      "Self-service registrations by success",
			},
			[]string{"success"},
		),

		ItemOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "item_operations_total",
				Help:      "Item store operations by kind and result",
			},
			[]string{"operation", "result"},
		),

		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Item change events handed to the broker",
			},
			[]string{"action", "success"},
		),

		AuditDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_dropped_total",
				Help:      "Audit entries discarded because the write queue was full",
			},
		),

		StreamClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stream_clients",
				Help:      "Connected item event stream clients",
			},
		),
	}
}

// RecordHTTPRequest records one served request.
// route is the matched route pattern, never the raw path.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordAuthFailure counts a gate rejection.
func (m *Metrics) RecordAuthFailure(reason string) {
	if m == nil {
		return
	}
	m.AuthFailures.WithLabelValues(reason).Inc()
}

// RecordLogin counts a login attempt by outcome.
func (m *Metrics) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(outcome).Inc()
	if outcome == LoginSuccess {
		m.TokensIssued.Inc()
	}
}

// RecordRegistration counts a registration attempt.
func (m *Metrics) RecordRegistration(success bool) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// RecordItemOperation counts a store call. result is "ok", "not_found",
// "invalid" or "error".
func (m *Metrics) RecordItemOperation(operation, result string) {
	if m == nil {
		return
	}
	m.ItemOperations.WithLabelValues(operation, result).Inc()
}

// RecordEventPublished counts an item event publish attempt.
func (m *Metrics) RecordEventPublished(action string, success bool) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(action, strconv.FormatBool(success)).Inc()
}

// RecordAuditDropped counts an audit entry lost to back-pressure.
func (m *Metrics) RecordAuditDropped() {
	if m == nil {
		return
	}
	m.AuditDropped.Inc()
}

// SetStreamClients records the number of open event stream connections.
func (m *Metrics) SetStreamClients(n int) {
	if m == nil {
		return
	}
	m.StreamClients.Set(float64(n))
}

// NewRegistry creates a Prometheus registry with itemkeeper metrics plus the
// Go runtime and process collectors. When db is non-nil its connection pool
// statistics are exported as well.
func NewRegistry(db *sql.DB) (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if db != nil {
		reg.MustRegister(collectors.NewDBStatsCollector(db, namespace))
	}
	return reg, NewMetrics(reg)
}

// Handler returns an HTTP handler exposing the given registry.
func Handler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
