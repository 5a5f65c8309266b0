package server

import (
	"encoding/json"
	"io"

	"github.com/barehttp/barehttp/pkg/protocol"
)

// ResponseWriter accumulates a response and writes it in one piece on Send.
//
// Setters may be called in any order and any number of times; the last call
// wins. The status defaults to 500 with an empty message. Send may be called
// once; later calls return ErrResponseSent without writing.
type ResponseWriter struct {
	w    io.Writer
	resp protocol.Response

	sent    bool
	written int

	// beforeSend runs once, right before the response is written.
	beforeSend func()
}

// NewResponseWriter returns a writer bound to w.
func NewResponseWriter(w io.Writer) *ResponseWriter {
	return &ResponseWriter{
		w: w,
		resp: protocol.Response{
			Status:  500,
			Headers: make(map[string]string),
		},
	}
}

// Status sets the status code. The status message is left unchanged.
func (rw *ResponseWriter) Status(code int) *ResponseWriter {
	rw.resp.Status = code
	return rw
}

// StatusWithMessage sets the status code and its reason phrase.
func (rw *ResponseWriter) StatusWithMessage(code int, text string) *ResponseWriter {
	rw.resp.Status = code
	rw.resp.Message = text
	return rw
}

// Header sets a response header, replacing any previous value.
func (rw *ResponseWriter) Header(key, value string) *ResponseWriter {
	rw.resp.Headers[key] = value
	return rw
}

// Body sets the response body. A nil body means no body and no
// Content-Length header; an empty non-nil body sends "Content-Length: 0".
func (rw *ResponseWriter) Body(b []byte) *ResponseWriter {
	rw.resp.Body = b
	return rw
}

// BodyString sets the response body from a string.
func (rw *ResponseWriter) BodyString(s string) *ResponseWriter {
	rw.resp.Body = []byte(s)
	return rw
}

// Send serializes the response and writes it.
func (rw *ResponseWriter) Send() error {
	if rw.sent {
		return ErrResponseSent
	}
	rw.sent = true
	if rw.beforeSend != nil {
		rw.beforeSend()
	}
	n, err := rw.resp.WriteTo(rw.w)
	rw.written = int(n)
	return err
}

// SendHTML sends content as text/html.
func (rw *ResponseWriter) SendHTML(content string) error {
	return rw.Header("Content-Type", "text/html").BodyString(content).Send()
}

// SendJSON sends v encoded as application/json. Nothing is written if v
// cannot be encoded.
func (rw *ResponseWriter) SendJSON(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return rw.Header("Content-Type", "application/json").Body(body).Send()
}

// StatusCode returns the status that was or will be sent.
func (rw *ResponseWriter) StatusCode() int {
	return rw.resp.Status
}

// Sent reports whether Send has been called.
func (rw *ResponseWriter) Sent() bool {
	return rw.sent
}

// BytesWritten returns the number of bytes written by Send.
func (rw *ResponseWriter) BytesWritten() int {
	return rw.written
}
