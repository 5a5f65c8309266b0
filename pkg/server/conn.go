package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"runtime/debug"
	"time"

	"github.com/barehttp/barehttp/pkg/protocol"
	"github.com/barehttp/barehttp/pkg/telemetry"
	"go.uber.org/atomic"
)

// ConnState is the lifecycle stage of a connection.
type ConnState uint32

const (
	// StateAccepted is a connection that has been accepted but not yet read.
	StateAccepted ConnState = iota

	// StateParsing is reading the request line, headers and body.
	StateParsing

	// StateRouting is looking up the handler for the request path.
	StateRouting

	// StateHandling is running the handler.
	StateHandling

	// StateClosed is a connection closed in both directions.
	StateClosed
)

// String returns the lower-case state name.
func (s ConnState) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateParsing:
		return "parsing"
	case StateRouting:
		return "routing"
	case StateHandling:
		return "handling"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// unmatchedRoute labels requests served by the not-found fallback.
const unmatchedRoute = "unmatched"

// closeLinger bounds how long a connection waits for the peer's FIN after a
// response, so unread request bytes do not turn the close into a reset.
const closeLinger = 500 * time.Millisecond

// conn serves a single request on one accepted connection.
type conn struct {
	srv    *Server
	rwc    net.Conn
	id     uint64
	remote string
	logger *slog.Logger
	state  atomic.Uint32
}

func (s *Server) newConn(rwc net.Conn) *conn {
	id := s.nextConnID.Inc()
	remote := rwc.RemoteAddr().String()
	return &conn{
		srv:    s,
		rwc:    rwc,
		id:     id,
		remote: remote,
		logger: s.logger.With("conn_id", id, "remote", remote),
	}
}

func (c *conn) setState(st ConnState) {
	c.state.Store(uint32(st))
}

// State returns the current lifecycle stage.
func (c *conn) State() ConnState {
	return ConnState(c.state.Load())
}

// serve runs the Accepted -> Parsing -> Routing -> Handling -> Closed
// sequence. Nothing that happens here escapes the connection.
func (c *conn) serve(parent context.Context) {
	s := c.srv
	s.active.Inc()
	s.metrics.ConnOpened()

	ctx, cancel := context.WithCancel(parent)
	outcome := telemetry.OutcomeServed
	responded := false
	defer func() {
		cancel()
		c.close(responded)
		s.active.Dec()
		s.metrics.ConnClosed(outcome)
	}()

	c.setState(StateParsing)
	req, err := c.readRequest()
	if err != nil {
		c.logParseError(err)
		outcome = telemetry.OutcomeParseError
		return
	}
	req.RemoteAddr = c.remote
	req.SplitTarget()

	c.setState(StateRouting)
	handler, pattern := s.notFound, ""
	if m, err := s.routes.Find(req.Path); err == nil {
		handler = m.Handler
		req.Params = m.Params
		pattern = m.Pattern
	} else {
		outcome = telemetry.OutcomeNotFound
		c.logger.Debug("no route", "path", req.Path)
	}

	c.setState(StateHandling)
	req, span := s.tracer.Start(req.WithContext(ctx), pattern)

	w := NewResponseWriter(c.rwc)
	w.beforeSend = func() {
		if t := s.config.WriteTimeout; t > 0 {
			c.rwc.SetWriteDeadline(time.Now().Add(t))
		}
	}

	start := time.Now()
	herr := c.runHandler(handler, w, req, pattern)
	elapsed := time.Since(start)

	route := pattern
	if route == "" {
		route = unmatchedRoute
	}
	status := 0
	if w.Sent() {
		status = w.StatusCode()
		responded = true
		s.metrics.ResponseBytes(w.BytesWritten())
	}
	s.metrics.Request(req.Method.String(), route, status, elapsed)
	s.tracer.End(span, status, herr)

	switch {
	case herr != nil && isWriteError(herr):
		outcome = telemetry.OutcomeWriteError
		c.logger.Warn("response write failed", "route", route,
			"error", &ConnError{RemoteAddr: c.remote, Op: "write", Err: herr})
	case herr != nil:
		outcome = telemetry.OutcomeHandlerErr
		s.metrics.HandlerError(herr)
		var pe *PanicError
		if errors.As(herr, &pe) {
			c.logger.Error("handler panic", "route", route, "panic", pe.Value, "stack", string(pe.Stack))
		} else {
			c.logger.Error("handler error", "route", route, "error", herr)
		}
	case !w.Sent():
		c.logger.Warn("handler returned without sending a response", "route", route)
	default:
		c.logger.Debug("request served",
			"method", req.Method.String(),
			"path", req.Path,
			"route", route,
			"status", status,
			"bytes", w.BytesWritten(),
			"duration", elapsed,
		)
	}
}

// readRequest parses one request under the read deadlines.
// ReadHeaderTimeout bounds the head; ReadTimeout bounds the whole request.
func (c *conn) readRequest() (*protocol.Request, error) {
	cfg := c.srv.config
	start := time.Now()

	var headerDeadline, bodyDeadline time.Time
	if cfg.ReadTimeout > 0 {
		bodyDeadline = start.Add(cfg.ReadTimeout)
	}
	if cfg.ReadHeaderTimeout > 0 {
		headerDeadline = start.Add(cfg.ReadHeaderTimeout)
	}
	if headerDeadline.IsZero() || (!bodyDeadline.IsZero() && bodyDeadline.Before(headerDeadline)) {
		headerDeadline = bodyDeadline
	}

	c.rwc.SetReadDeadline(headerDeadline)
	br := bufio.NewReaderSize(c.rwc, cfg.ReadBufferSize)
	req, err := c.srv.parser.ReadHead(br)
	if err != nil {
		return nil, err
	}
	c.rwc.SetReadDeadline(bodyDeadline)
	if err := c.srv.parser.ReadBody(br, req); err != nil {
		return nil, err
	}
	c.rwc.SetReadDeadline(time.Time{})
	return req, nil
}

// runHandler invokes h and converts a panic into a *PanicError.
func (c *conn) runHandler(h Handler, w *ResponseWriter, r *Request, pattern string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{Pattern: pattern, Value: rec, Stack: debug.Stack()}
		}
	}()
	return h.Handle(w, r)
}

// logParseError logs by severity: truncated input at debug, malformed
// data at warn, anything else the client got wrong (or I/O) at info.
func (c *conn) logParseError(err error) {
	kind, ok := protocol.KindOf(err)
	if !ok {
		c.logger.Info("request read failed", "error", &ConnError{RemoteAddr: c.remote, Op: "read", Err: err})
		c.srv.metrics.ParseError(protocol.KindReadFailed.String())
		return
	}
	c.srv.metrics.ParseError(kind.String())

	switch {
	case kind.Benign():
		c.logger.Debug("connection closed before a full request", "error", err)
	case kind.Malformed():
		c.logger.Warn("malformed request", "kind", kind.String(), "error", err)
	default:
		c.logger.Info("rejected request", "kind", kind.String(), "error", err)
	}
}

// close shuts the connection in both directions. After a response the write
// side is closed first and the peer gets a short window to finish.
func (c *conn) close(responded bool) {
	defer c.setState(StateClosed)

	if responded {
		if cw, ok := c.rwc.(interface{ CloseWrite() error }); ok {
			if err := cw.CloseWrite(); err == nil {
				c.rwc.SetReadDeadline(time.Now().Add(closeLinger))
				io.Copy(io.Discard, io.LimitReader(c.rwc, 256<<10))
			}
		}
	}
	if err := c.rwc.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		c.logger.Debug("close failed", "error", &ConnError{RemoteAddr: c.remote, Op: "close", Err: err})
	}
}

// isWriteError reports whether err came from writing to the connection.
func isWriteError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "write"
	}
	return false
}
