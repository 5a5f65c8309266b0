package telemetry

import (
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func metricGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	if m.Gauge == nil {
		t.Fatal("expected gauge metric to have Gauge field")
	}
	return m.GetGauge().GetValue()
}

func metricHistogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}

func TestMetricsConnectionLifecycle(t *testing.T) {
	m := NewMetrics(WithRegistry(prometheus.NewRegistry()))

	m.ConnOpened()
	m.ConnOpened()
	if got := metricGaugeValue(t, m.activeConnections); got != 2 {
		t.Fatalf("active_connections=%v, want 2", got)
	}

	m.ConnClosed(OutcomeServed)
	m.ConnClosed(OutcomeParseError)
	m.ConnRejected()

	if got := metricGaugeValue(t, m.activeConnections); got != 0 {
		t.Errorf("active_connections=%v, want 0", got)
	}
	for _, outcome := range []string{OutcomeServed, OutcomeParseError, OutcomeRejected} {
		if got := metricCounterValue(t, m.connectionsTotal.WithLabelValues(outcome)); got != 1 {
			t.Errorf("connections_total{outcome=%q}=%v, want 1", outcome, got)
		}
	}
}

func TestMetricsRequestAndBytes(t *testing.T) {
	m := NewMetrics(WithRegistry(prometheus.NewRegistry()))

	m.Request("GET", "/object/{id}/edit", 200, 3*time.Millisecond)
	m.Request("GET", "/object/{id}/edit", 200, time.Millisecond)
	m.ResponseBytes(48)
	m.ResponseBytes(0)

	if got := metricCounterValue(t, m.requestsTotal.WithLabelValues("GET", "/object/{id}/edit", "200")); got != 2 {
		t.Errorf("requests_total=%v, want 2", got)
	}
	if got := metricHistogramCount(t, m.requestDuration.WithLabelValues("/object/{id}/edit")); got != 2 {
		t.Errorf("request_duration_seconds count=%v, want 2", got)
	}
	if got := metricCounterValue(t, m.responseBytes); got != 48 {
		t.Errorf("response_bytes_total=%v, want 48", got)
	}
}

func TestMetricsParseAndHandlerErrors(t *testing.T) {
	m := NewMetrics(WithRegistry(prometheus.NewRegistry()))

	m.ParseError("malformed_header_line")
	m.HandlerError(errors.New("handler panic: boom"))
	m.HandlerError(nil)

	if got := metricCounterValue(t, m.parseErrors.WithLabelValues("malformed_header_line")); got != 1 {
		t.Errorf("parse_errors_total=%v, want 1", got)
	}
	if got := metricCounterValue(t, m.handlerErrors.WithLabelValues("panic")); got != 1 {
		t.Errorf("handler_errors_total{type=panic}=%v, want 1", got)
	}
}

func TestMetricsOptions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(
		WithRegistry(reg),
		WithNamespace("edge"),
		WithSubsystem("http"),
		WithConstLabels(prometheus.Labels{"node": "a"}),
		WithBuckets([]float64{0.1, 1}),
	)
	m.ConnOpened()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() != "edge_http_active_connections" {
			continue
		}
		found = true
		labels := f.GetMetric()[0].GetLabel()
		if len(labels) != 1 || labels[0].GetName() != "node" || labels[0].GetValue() != "a" {
			t.Errorf("const labels = %v", labels)
		}
	}
	if !found {
		t.Error("edge_http_active_connections not gathered")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ConnOpened()
	m.ConnClosed(OutcomeServed)
	m.ConnRejected()
	m.ParseError("truncated_request")
	m.Request("GET", "/", 200, time.Second)
	m.ResponseBytes(10)
	m.HandlerError(errors.New("x"))
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("write: %w", os.ErrDeadlineExceeded), "timeout"},
		{errors.New("i/o timeout"), "timeout"},
		{errors.New("handler panic: nil map"), "panic"},
		{errors.New("object not found"), "not_found"},
		{errors.New("write: broken pipe"), "disconnect"},
		{errors.New("server: response already sent"), "double_send"},
		{errors.New("database exploded"), "internal"},
	}
	for _, tt := range tests {
		if got := CategorizeError(tt.err); got != tt.want {
			t.Errorf("CategorizeError(%q) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
