package telemetry

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "barehttp").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for request duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus collectors.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "barehttp",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Connection outcomes used as the "outcome" label of connections_total.
const (
	OutcomeServed     = "served"
	OutcomeNotFound   = "not_found"
	OutcomeParseError = "parse_error"
	OutcomeHandlerErr = "handler_error"
	OutcomeWriteError = "write_error"
	OutcomeRejected   = "rejected"
)

// Metrics holds the server's Prometheus collectors.
//
// A nil *Metrics is valid: every method is a no-op, so the server can call
// them unconditionally.
type Metrics struct {
	connectionsTotal  *prometheus.CounterVec
	activeConnections prometheus.Gauge
	parseErrors       *prometheus.CounterVec
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	responseBytes     prometheus.Counter
	handlerErrors     *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors.
//
// Metrics collected:
//   - barehttp_connections_total: Counter of finished connections by outcome
//   - barehttp_active_connections: Gauge of connections being served
//   - barehttp_parse_errors_total: Counter of rejected requests by error kind
//   - barehttp_requests_total: Counter of dispatched requests by method, route and status
//   - barehttp_request_duration_seconds: Histogram of handler duration by route
//   - barehttp_response_bytes_total: Counter of response bytes written
//   - barehttp_handler_errors_total: Counter of handler errors by type
//
// Registering twice against the same registry panics, as promauto does.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		connectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connections_total",
			Help:        "Total number of connections handled, by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),

		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_connections",
			Help:        "Number of connections currently being served",
			ConstLabels: config.ConstLabels,
		}),

		parseErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "parse_errors_total",
			Help:        "Total number of requests rejected by the parser, by kind",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "requests_total",
			Help:        "Total number of dispatched requests",
			ConstLabels: config.ConstLabels,
		}, []string{"method", "route", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "request_duration_seconds",
			Help:        "Handler duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"route"}),

		responseBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "response_bytes_total",
			Help:        "Total number of response bytes written",
			ConstLabels: config.ConstLabels,
		}),

		handlerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "handler_errors_total",
			Help:        "Total number of handler errors by type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),
	}
}

// ConnOpened records an accepted connection.
func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.activeConnections.Inc()
}

// ConnClosed records a finished connection and its outcome.
func (m *Metrics) ConnClosed(outcome string) {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
	m.connectionsTotal.WithLabelValues(outcome).Inc()
}

// ConnRejected records a connection dropped before it was served.
func (m *Metrics) ConnRejected() {
	if m == nil {
		return
	}
	m.connectionsTotal.WithLabelValues(OutcomeRejected).Inc()
}

// ParseError records a parser rejection. kind is a ParseErrorKind label.
func (m *Metrics) ParseError(kind string) {
	if m == nil {
		return
	}
	m.parseErrors.WithLabelValues(kind).Inc()
}

// Request records a dispatched request. route is the matched pattern, or
// "unmatched" for the not-found fallback.
func (m *Metrics) Request(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ResponseBytes records bytes written to a client.
func (m *Metrics) ResponseBytes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.responseBytes.Add(float64(n))
}

// HandlerError records a handler failure.
func (m *Metrics) HandlerError(err error) {
	if m == nil || err == nil {
		return
	}
	m.handlerErrors.WithLabelValues(CategorizeError(err)).Inc()
}

// CategorizeError returns a coarse category for err.
// This prevents high-cardinality labels from error messages.
func CategorizeError(err error) string {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return "timeout"
	}
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout"):
		return "timeout"
	case strings.Contains(errStr, "panic"):
		return "panic"
	case strings.Contains(errStr, "not found"):
		return "not_found"
	case strings.Contains(errStr, "broken pipe"), strings.Contains(errStr, "connection reset"):
		return "disconnect"
	case strings.Contains(errStr, "already sent"):
		return "double_send"
	default:
		return "internal"
	}
}
