package telemetry

import (
	"context"

	"github.com/barehttp/barehttp/pkg/protocol"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name.
const defaultTracerName = "barehttp"

// TracerConfig configures request tracing.
type TracerConfig struct {
	// TracerName is the name of the tracer (default: "barehttp").
	TracerName string

	// Provider supplies the tracer. Default: the global provider.
	Provider trace.TracerProvider

	// Filter determines which requests to trace.
	// Return true to trace the request, false to skip.
	// If nil, all requests are traced.
	Filter func(r *protocol.Request) bool

	// AttributeExtractor adds custom attributes for each traced request.
	AttributeExtractor func(r *protocol.Request) []attribute.KeyValue
}

// TracerOption configures request tracing.
type TracerOption func(*TracerConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracerOption {
	return func(c *TracerConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the provider the tracer is resolved from.
func WithTracerProvider(tp trace.TracerProvider) TracerOption {
	return func(c *TracerConfig) {
		c.Provider = tp
	}
}

// WithRequestFilter sets a filter function for requests.
func WithRequestFilter(filter func(r *protocol.Request) bool) TracerOption {
	return func(c *TracerConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(r *protocol.Request) []attribute.KeyValue) TracerOption {
	return func(c *TracerConfig) {
		c.AttributeExtractor = extractor
	}
}

// Tracer creates one server span per dispatched request.
//
// A nil *Tracer is valid and traces nothing.
type Tracer struct {
	config TracerConfig
	tracer trace.Tracer
}

// NewTracer resolves a tracer from the configured provider.
//
// Configure the global provider in main() before starting the server:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func NewTracer(opts ...TracerOption) *Tracer {
	config := TracerConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	provider := config.Provider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Tracer{
		config: config,
		tracer: provider.Tracer(config.TracerName),
	}
}

// Start opens a span for r matched against pattern. The returned request
// carries the span in its context; the caller must pass the span to End.
// When tracing is disabled or filtered out, r is returned unchanged with a
// non-recording span.
func (t *Tracer) Start(r *protocol.Request, pattern string) (*protocol.Request, trace.Span) {
	if t == nil || (t.config.Filter != nil && !t.config.Filter(r)) {
		return r, trace.SpanFromContext(r.Context())
	}

	attrs := []attribute.KeyValue{
		attribute.String("http.method", r.Method.String()),
		attribute.String("http.target", r.RequestURI),
		attribute.String("http.route", pattern),
		attribute.String("net.peer.addr", r.RemoteAddr),
	}
	if t.config.AttributeExtractor != nil {
		attrs = append(attrs, t.config.AttributeExtractor(r)...)
	}

	ctx, span := t.tracer.Start(
		r.Context(),
		SpanName(pattern),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)
	return r.WithContext(ctx), span
}

// End records the response status and handler error, then ends span.
func (t *Tracer) End(span trace.Span, status int, err error) {
	if !span.IsRecording() {
		span.End()
		return
	}
	span.SetAttributes(attribute.Int("http.status_code", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// SpanName returns the span name used for a route.
func SpanName(pattern string) string {
	if pattern == "" {
		pattern = "unmatched"
	}
	return "barehttp " + pattern
}

// SpanFromRequest returns the span attached to r, or a non-recording span.
//
// Example:
//
//	func edit(w *server.ResponseWriter, r *server.Request) error {
//	    telemetry.SpanFromRequest(r).SetAttributes(attribute.String("object.id", r.Param("id")))
//	    ...
//	}
func SpanFromRequest(r *protocol.Request) trace.Span {
	return trace.SpanFromContext(r.Context())
}

// TraceContext returns r's context for propagation to downstream calls.
func TraceContext(r *protocol.Request) context.Context {
	return r.Context()
}
