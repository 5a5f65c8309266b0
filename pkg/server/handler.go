package server

import "github.com/barehttp/barehttp/pkg/protocol"

// Request is the parsed request handed to handlers.
type Request = protocol.Request

// Handler responds to a request. A handler is expected to call one of the
// ResponseWriter's Send methods; if it returns without doing so, the client
// gets no response and the connection is closed.
//
// A returned error is logged and counted. It does not produce a response.
type Handler interface {
	Handle(w *ResponseWriter, r *Request) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(w *ResponseWriter, r *Request) error

// Handle calls f(w, r).
func (f HandlerFunc) Handle(w *ResponseWriter, r *Request) error {
	return f(w, r)
}

// NotFoundBody is the body of the built-in 404 response.
const NotFoundBody = `404 Error ¯\_(ツ)_/¯`

// NotFound is the built-in fallback used when no route matches.
var NotFound Handler = HandlerFunc(func(w *ResponseWriter, r *Request) error {
	return w.Status(404).BodyString(NotFoundBody).Send()
})
