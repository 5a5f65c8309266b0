package protocol

import (
	"context"
	"net/url"
	"strings"
)

// Request is a parsed HTTP/1.1 request.
//
// A Request belongs to the connection that produced it. Headers keep the
// name exactly as sent; when a name repeats, the last value wins. Query and
// Params are empty after parsing: the server fills Query from the request
// target and the router fills Params from the matched pattern.
//
// In JSON, Body is a base64 string, the encoding/json form of []byte.
type Request struct {
	Method     Method            `json:"method"`
	Path       string            `json:"path"`
	RequestURI string            `json:"request_uri"`
	Proto      string            `json:"proto"`
	Headers    map[string]string `json:"headers"`
	Query      map[string]string `json:"query"`
	Params     map[string]string `json:"params"`
	Body       []byte            `json:"body"`

	// RemoteAddr is the peer address, set by the server.
	RemoteAddr string `json:"remote_addr,omitempty"`

	ctx context.Context
}

func newRequest() *Request {
	return &Request{
		Headers: make(map[string]string),
		Query:   make(map[string]string),
		Params:  make(map[string]string),
	}
}

// Header returns the value of the named header. An exact match is preferred;
// otherwise names are compared case-insensitively.
func (r *Request) Header(name string) (string, bool) {
	if v, ok := r.Headers[name]; ok {
		return v, true
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// Param returns a captured path parameter, or "" if absent.
func (r *Request) Param(name string) string {
	return r.Params[name]
}

// QueryValue returns a query string value, or "" if absent.
func (r *Request) QueryValue(name string) string {
	return r.Query[name]
}

// SplitTarget separates the request target into Path and Query. A malformed
// query string leaves Query with whatever pairs could be decoded.
func (r *Request) SplitTarget() {
	path, rawQuery, found := strings.Cut(r.RequestURI, "?")
	r.Path = path
	if r.Query == nil {
		r.Query = make(map[string]string)
	}
	if !found || rawQuery == "" {
		return
	}
	values, _ := url.ParseQuery(rawQuery)
	for k, vv := range values {
		if len(vv) > 0 {
			r.Query[k] = vv[len(vv)-1]
		}
	}
}

// Context returns the request's context. If none was set, Background is returned.
func (r *Request) Context() context.Context {
	if r == nil || r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// WithContext returns a shallow copy of r with its context changed to ctx.
func (r *Request) WithContext(ctx context.Context) *Request {
	if ctx == nil {
		panic("protocol: nil context")
	}
	r2 := *r
	r2.ctx = ctx
	return &r2
}
