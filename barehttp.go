// Package barehttp provides the public API for the barehttp server.
//
// This is the recommended import for most applications:
//
//	import "github.com/barehttp/barehttp"
//
// Usage:
//
//	srv := barehttp.New(barehttp.DefaultConfig())
//	srv.Handle("/object/{id}/edit", func(w *barehttp.ResponseWriter, r *barehttp.Request) error {
//	    return w.Status(200).BodyString("ABC " + r.Param("id")).Send()
//	})
//	err := srv.ListenAndServe()
//
// Each connection carries exactly one request. The server reads it, routes it
// by path, runs the handler, and closes the connection once the response is
// written.
package barehttp

import (
	"github.com/barehttp/barehttp/pkg/server"
)

// =============================================================================
// Server
// =============================================================================

// Server accepts connections and serves one request on each.
type Server = server.Server

// Config holds configuration for the server.
type Config = server.Config

// New creates a server. A nil config selects DefaultConfig.
func New(config *Config) *Server {
	return server.New(config)
}

// DefaultConfig returns a Config with the default timeouts and limits.
func DefaultConfig() *Config {
	return server.DefaultConfig()
}

// ErrServerClosed is returned by Serve after Shutdown or Close.
var ErrServerClosed = server.ErrServerClosed

// ErrResponseSent is returned by a second Send on the same response.
var ErrResponseSent = server.ErrResponseSent

// =============================================================================
// Handlers
// =============================================================================

// Handler responds to one request.
type Handler = server.Handler

// HandlerFunc adapts a function to Handler.
type HandlerFunc = server.HandlerFunc

// Request is a parsed request with its route parameters and query.
type Request = server.Request

// ResponseWriter builds a response and sends it once.
type ResponseWriter = server.ResponseWriter

// NotFound is the default fallback handler. It answers 404.
var NotFound Handler = server.NotFound
