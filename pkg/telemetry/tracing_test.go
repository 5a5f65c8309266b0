package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/barehttp/barehttp/pkg/protocol"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// recordingProvider hands out a single recordingTracer. Embedded interfaces
// supply the unexported methods the otel API requires.
type recordingProvider struct {
	trace.TracerProvider
	tracer *recordingTracer
}

func (p *recordingProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return p.tracer
}

type recordingTracer struct {
	trace.Tracer
	mu    sync.Mutex
	spans []*recordingSpan
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	span := &recordingSpan{
		Span:  trace.SpanFromContext(context.Background()),
		name:  name,
		kind:  cfg.SpanKind(),
		attrs: append([]attribute.KeyValue(nil), cfg.Attributes()...),
	}
	t.mu.Lock()
	t.spans = append(t.spans, span)
	t.mu.Unlock()
	return trace.ContextWithSpan(ctx, span), span
}

type recordingSpan struct {
	trace.Span
	name   string
	kind   trace.SpanKind
	attrs  []attribute.KeyValue
	status codes.Code
	errs   []error
	ended  bool
}

func (s *recordingSpan) IsRecording() bool                      { return !s.ended }
func (s *recordingSpan) End(...trace.SpanEndOption)             { s.ended = true }
func (s *recordingSpan) SetAttributes(kv ...attribute.KeyValue) { s.attrs = append(s.attrs, kv...) }
func (s *recordingSpan) SetStatus(code codes.Code, _ string)    { s.status = code }
func (s *recordingSpan) RecordError(err error, _ ...trace.EventOption) {
	s.errs = append(s.errs, err)
}

func (s *recordingSpan) attr(key string) (attribute.Value, bool) {
	for _, kv := range s.attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func newTestRequest() *protocol.Request {
	return &protocol.Request{
		Method:     protocol.MethodGet,
		Path:       "/object/42/edit",
		RequestURI: "/object/42/edit?x=1",
		RemoteAddr: "127.0.0.1:5555",
		Headers:    map[string]string{},
		Query:      map[string]string{},
		Params:     map[string]string{"id": "42"},
	}
}

func TestTracerStartAndEnd(t *testing.T) {
	rt := &recordingTracer{}
	tr := NewTracer(WithTracerProvider(&recordingProvider{tracer: rt}))

	req, span := tr.Start(newTestRequest(), "/object/{id}/edit")
	if SpanFromRequest(req) != span {
		t.Fatal("SpanFromRequest did not return the started span")
	}
	if TraceContext(req) != req.Context() {
		t.Fatal("TraceContext should be the request context")
	}
	tr.End(span, 200, nil)

	if len(rt.spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(rt.spans))
	}
	s := rt.spans[0]
	if s.name != "barehttp /object/{id}/edit" {
		t.Errorf("name = %q", s.name)
	}
	if s.kind != trace.SpanKindServer {
		t.Errorf("kind = %v, want server", s.kind)
	}
	if v, ok := s.attr("http.route"); !ok || v.AsString() != "/object/{id}/edit" {
		t.Errorf("http.route = %v", v)
	}
	if v, ok := s.attr("http.method"); !ok || v.AsString() != "GET" {
		t.Errorf("http.method = %v", v)
	}
	if v, ok := s.attr("http.status_code"); !ok || v.AsInt64() != 200 {
		t.Errorf("http.status_code = %v", v)
	}
	if s.status != codes.Ok || !s.ended {
		t.Errorf("status=%v ended=%v", s.status, s.ended)
	}
}

func TestTracerRecordsError(t *testing.T) {
	rt := &recordingTracer{}
	tr := NewTracer(WithTracerProvider(&recordingProvider{tracer: rt}))

	_, span := tr.Start(newTestRequest(), "/")
	boom := errors.New("boom")
	tr.End(span, 200, boom)

	s := rt.spans[0]
	if s.status != codes.Error {
		t.Errorf("status = %v, want Error", s.status)
	}
	if len(s.errs) != 1 || s.errs[0] != boom {
		t.Errorf("errs = %v", s.errs)
	}
}

func TestTracerFilterAndExtractor(t *testing.T) {
	rt := &recordingTracer{}
	tr := NewTracer(
		WithTracerProvider(&recordingProvider{tracer: rt}),
		WithTracerName("edge"),
		WithRequestFilter(func(r *protocol.Request) bool { return r.Path != "/skip" }),
		WithAttributeExtractor(func(r *protocol.Request) []attribute.KeyValue {
			return []attribute.KeyValue{attribute.String("object.id", r.Param("id"))}
		}),
	)

	skipped := newTestRequest()
	skipped.Path = "/skip"
	req, span := tr.Start(skipped, "/skip")
	if req != skipped {
		t.Error("filtered request should be returned unchanged")
	}
	if span.IsRecording() {
		t.Error("filtered request got a recording span")
	}
	tr.End(span, 200, nil)

	_, span = tr.Start(newTestRequest(), "/object/{id}/edit")
	tr.End(span, 200, nil)

	if len(rt.spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(rt.spans))
	}
	if v, ok := rt.spans[0].attr("object.id"); !ok || v.AsString() != "42" {
		t.Errorf("object.id = %v", v)
	}
}

func TestNilTracer(t *testing.T) {
	var tr *Tracer
	in := newTestRequest()
	req, span := tr.Start(in, "/")
	if req != in {
		t.Error("nil tracer should not replace the request")
	}
	tr.End(span, 200, nil)
}

func TestSpanName(t *testing.T) {
	if got := SpanName(""); got != "barehttp unmatched" {
		t.Errorf("SpanName(\"\") = %q", got)
	}
	if got := SpanName("/hello"); got != "barehttp /hello" {
		t.Errorf("SpanName(/hello) = %q", got)
	}
}
