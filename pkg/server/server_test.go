package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/barehttp/barehttp/pkg/protocol"
	"github.com/barehttp/barehttp/pkg/router"
	"github.com/barehttp/barehttp/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startServer serves s on a loopback port and shuts it down with the test.
func startServer(t *testing.T, cfg *Config, setup func(s *Server)) (*Server, string) {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	s := New(cfg)
	if setup != nil {
		setup(s)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ln) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Shutdown(ctx)
		select {
		case err := <-errCh:
			assert.ErrorIs(t, err, ErrServerClosed)
		case <-time.After(5 * time.Second):
			t.Error("Serve did not return after Shutdown")
		}
	})
	return s, ln.Addr().String()
}

// roundTrip writes raw, half-closes, and returns everything the server sent
// before closing the connection.
func roundTrip(t *testing.T, addr, raw string) []byte {
	t.Helper()
	c, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer c.Close()
	c.SetDeadline(time.Now().Add(5 * time.Second))

	_, err = io.WriteString(c, raw)
	require.NoError(t, err)
	c.(*net.TCPConn).CloseWrite()

	out, err := io.ReadAll(c)
	if errors.Is(err, syscall.ECONNRESET) {
		// A close with unread request bytes may surface as a reset.
		return out
	}
	require.NoError(t, err)
	return out
}

func get(t *testing.T, addr, target string) *protocol.Response {
	t.Helper()
	out := roundTrip(t, addr, "GET "+target+" HTTP/1.1\r\nHost: test\r\n\r\n")
	res, err := protocol.ReadResponse(bufio.NewReader(bytes.NewReader(out)))
	require.NoError(t, err, "raw response: %q", out)
	return res
}

func hello(w *ResponseWriter, r *Request) error {
	return w.Status(200).BodyString("Hello World!").Send()
}

func TestServeHelloWorld(t *testing.T) {
	_, addr := startServer(t, nil, func(s *Server) {
		require.NoError(t, s.Handle("/", hello))
	})

	out := roundTrip(t, addr, "GET / HTTP/1.1\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 200 \r\nContent-Length: 12\r\n\r\nHello World!", string(out))
}

func TestServeConcurrentRoutes(t *testing.T) {
	const k = 16
	_, addr := startServer(t, nil, func(s *Server) {
		for i := 0; i < k; i++ {
			body := fmt.Sprintf("route %d", i)
			require.NoError(t, s.Handle(fmt.Sprintf("/r/%d", i), func(w *ResponseWriter, r *Request) error {
				return w.Status(200).BodyString(body).Send()
			}))
		}
	})

	var wg sync.WaitGroup
	results := make([]string, k)
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res := get(t, addr, fmt.Sprintf("/r/%d", i))
			results[i] = string(res.Body)
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		assert.Equal(t, fmt.Sprintf("route %d", i), got)
	}
}

func TestServeNotFound(t *testing.T) {
	_, addr := startServer(t, nil, func(s *Server) {
		require.NoError(t, s.Handle("/", hello))
	})

	res := get(t, addr, "/missing")
	assert.Equal(t, 404, res.Status)
	assert.Equal(t, NotFoundBody, string(res.Body))
}

func TestServeCustomNotFound(t *testing.T) {
	_, addr := startServer(t, nil, func(s *Server) {
		s.SetNotFound(HandlerFunc(func(w *ResponseWriter, r *Request) error {
			return w.StatusWithMessage(404, "Not Found").BodyString("nothing at " + r.Path).Send()
		}))
	})

	res := get(t, addr, "/x?y=1")
	assert.Equal(t, 404, res.Status)
	assert.Equal(t, "Not Found", res.Message)
	assert.Equal(t, "nothing at /x", string(res.Body))
}

func TestServeParseErrorsCloseWithoutResponse(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, addr := startServer(t, &Config{
		Metrics: telemetry.NewMetrics(telemetry.WithRegistry(reg)),
	}, func(s *Server) {
		require.NoError(t, s.Handle("/", hello))
	})

	tests := []struct {
		name string
		raw  string
		kind protocol.ParseErrorKind
	}{
		{"unsupported method", "PATCH / HTTP/1.1\r\n\r\n", protocol.KindUnrecognizedMethod},
		{"unsupported version", "GET / HTTP/1.0\r\n\r\n", protocol.KindUnsupportedVersion},
		{"header without colon", "GET / HTTP/1.1\r\nBadHeader\r\n\r\n", protocol.KindMalformedHeaderLine},
		{"truncated", "GE", protocol.KindTruncatedRequest},
		{"empty", "", protocol.KindTruncatedRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := roundTrip(t, addr, tt.raw)
			assert.Empty(t, out)
		})
	}

	require.Eventually(t, func() bool {
		return counterValue(reg, "barehttp_parse_errors_total", map[string]string{"kind": "truncated_request"}) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, float64(1), counterValue(reg, "barehttp_parse_errors_total",
		map[string]string{"kind": protocol.KindMalformedHeaderLine.String()}))

	// The server is unaffected.
	res := get(t, addr, "/")
	assert.Equal(t, 200, res.Status)
}

func TestServeParamsAndQuery(t *testing.T) {
	_, addr := startServer(t, nil, func(s *Server) {
		require.NoError(t, s.Handle("/object/{id}/edit", func(w *ResponseWriter, r *Request) error {
			return w.Status(200).SendJSON(map[string]any{
				"id":     r.Param("id"),
				"query":  r.Query,
				"path":   r.Path,
				"remote": r.RemoteAddr != "",
			})
		}))
	})

	res := get(t, addr, "/object/42/edit?x=1&x=2&y=z")
	require.Equal(t, 200, res.Status)

	var body struct {
		ID     string            `json:"id"`
		Query  map[string]string `json:"query"`
		Path   string            `json:"path"`
		Remote bool              `json:"remote"`
	}
	require.NoError(t, json.Unmarshal(res.Body, &body))
	assert.Equal(t, "42", body.ID)
	assert.Equal(t, map[string]string{"x": "2", "y": "z"}, body.Query)
	assert.Equal(t, "/object/42/edit", body.Path)
	assert.True(t, body.Remote)
}

func TestServePostBody(t *testing.T) {
	_, addr := startServer(t, nil, func(s *Server) {
		require.NoError(t, s.Handle("/echo", func(w *ResponseWriter, r *Request) error {
			return w.Status(200).Body(r.Body).Send()
		}))
	})

	var req bytes.Buffer
	require.NoError(t, protocol.WriteRequest(&req, "POST", "/echo", map[string]string{"Host": "test"}, []byte("hello body")))

	out := roundTrip(t, addr, req.String())
	res, err := protocol.ReadResponse(bufio.NewReader(bytes.NewReader(out)))
	require.NoError(t, err)
	assert.Equal(t, "hello body", string(res.Body))
}

func TestServeBodyTooLarge(t *testing.T) {
	_, addr := startServer(t, &Config{MaxBodyBytes: 4}, func(s *Server) {
		require.NoError(t, s.Handle("/echo", hello))
	})

	out := roundTrip(t, addr, "POST /echo HTTP/1.1\r\nContent-Length: 10\r\n\r\n0123456789")
	assert.Empty(t, out)
}

func TestServeHeaderTooLarge(t *testing.T) {
	_, addr := startServer(t, &Config{MaxHeaderBytes: 64}, func(s *Server) {
		require.NoError(t, s.Handle("/", hello))
	})

	raw := "GET / HTTP/1.1\r\nX-Long: " + string(bytes.Repeat([]byte("a"), 200)) + "\r\n\r\n"
	assert.Empty(t, roundTrip(t, addr, raw))
}

func TestServeHandlerFailuresAreIsolated(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, addr := startServer(t, &Config{
		Metrics: telemetry.NewMetrics(telemetry.WithRegistry(reg)),
	}, func(s *Server) {
		require.NoError(t, s.Handle("/", hello))
		require.NoError(t, s.Handle("/panic", func(w *ResponseWriter, r *Request) error {
			var m map[string]int
			m["boom"] = 1
			return nil
		}))
		require.NoError(t, s.Handle("/error", func(w *ResponseWriter, r *Request) error {
			return errors.New("database exploded")
		}))
		require.NoError(t, s.Handle("/silent", func(w *ResponseWriter, r *Request) error {
			return nil
		}))
	})

	assert.Empty(t, roundTrip(t, addr, "GET /panic HTTP/1.1\r\n\r\n"))
	assert.Empty(t, roundTrip(t, addr, "GET /error HTTP/1.1\r\n\r\n"))
	assert.Empty(t, roundTrip(t, addr, "GET /silent HTTP/1.1\r\n\r\n"))

	res := get(t, addr, "/")
	assert.Equal(t, "Hello World!", string(res.Body))

	require.Eventually(t, func() bool {
		return counterValue(reg, "barehttp_handler_errors_total", map[string]string{"type": "panic"}) == 1 &&
			counterValue(reg, "barehttp_handler_errors_total", map[string]string{"type": "internal"}) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, addr := startServer(t, &Config{
		Metrics: telemetry.NewMetrics(telemetry.WithRegistry(reg)),
	}, func(s *Server) {
		require.NoError(t, s.Handle("/object/{id}/edit", hello))
	})

	get(t, addr, "/object/1/edit")
	get(t, addr, "/object/2/edit")
	get(t, addr, "/nope")

	require.Eventually(t, func() bool {
		return counterValue(reg, "barehttp_connections_total", map[string]string{"outcome": telemetry.OutcomeServed}) == 2 &&
			counterValue(reg, "barehttp_connections_total", map[string]string{"outcome": telemetry.OutcomeNotFound}) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, float64(2), counterValue(reg, "barehttp_requests_total",
		map[string]string{"method": "GET", "route": "/object/{id}/edit", "status": "200"}))
	assert.Equal(t, float64(1), counterValue(reg, "barehttp_requests_total",
		map[string]string{"method": "GET", "route": "unmatched", "status": "404"}))
	assert.Equal(t, float64(0), gaugeValue(reg, "barehttp_active_connections"))
}

func TestRegisterAfterServe(t *testing.T) {
	s, _ := startServer(t, nil, func(s *Server) {
		require.NoError(t, s.Handle("/", hello))
	})

	require.Eventually(t, s.Ready, 2*time.Second, 5*time.Millisecond)
	err := s.Handle("/late", hello)
	assert.ErrorIs(t, err, router.ErrFrozen)
	assert.Equal(t, []string{"/"}, s.Routes())
}

func TestReadHeaderTimeout(t *testing.T) {
	_, addr := startServer(t, &Config{ReadHeaderTimeout: 100 * time.Millisecond}, func(s *Server) {
		require.NoError(t, s.Handle("/", hello))
	})

	c, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c.Close()
	c.SetDeadline(time.Now().Add(3 * time.Second))

	// Never finish the request line.
	_, err = io.WriteString(c, "GET / HT")
	require.NoError(t, err)

	start := time.Now()
	out, err := io.ReadAll(c)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestWriteTimeout(t *testing.T) {
	reg := prometheus.NewRegistry()
	type result struct {
		err     error
		elapsed time.Duration
	}
	results := make(chan result, 1)
	_, addr := startServer(t, &Config{
		WriteTimeout: 200 * time.Millisecond,
		Metrics:      telemetry.NewMetrics(telemetry.WithRegistry(reg)),
	}, func(s *Server) {
		require.NoError(t, s.Handle("/big", func(w *ResponseWriter, r *Request) error {
			// Larger than the loopback socket buffers, so the write blocks.
			body := make([]byte, 64<<20)
			start := time.Now()
			err := w.Status(200).Body(body).Send()
			results <- result{err: err, elapsed: time.Since(start)}
			return err
		}))
	})

	c, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c.Close()

	// Send the request and never read the response.
	_, err = io.WriteString(c, "GET /big HTTP/1.1\r\n\r\n")
	require.NoError(t, err)

	select {
	case res := <-results:
		require.Error(t, res.err)
		assert.ErrorIs(t, res.err, os.ErrDeadlineExceeded)
		assert.Less(t, res.elapsed, 2*time.Second)
	case <-time.After(5 * time.Second):
		t.Fatal("Send did not return after the write deadline")
	}

	require.Eventually(t, func() bool {
		return counterValue(reg, "barehttp_connections_total",
			map[string]string{"outcome": telemetry.OutcomeWriteError}) == 1
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, float64(0), counterValue(reg, "barehttp_handler_errors_total",
		map[string]string{"type": "timeout"}))
}

func TestRequestContextCancelledAfterConnection(t *testing.T) {
	ctxCh := make(chan context.Context, 1)
	_, addr := startServer(t, nil, func(s *Server) {
		require.NoError(t, s.Handle("/", func(w *ResponseWriter, r *Request) error {
			ctxCh <- r.Context()
			return w.Status(200).Send()
		}))
	})

	get(t, addr, "/")
	ctx := <-ctxCh
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("request context not cancelled after the connection closed")
	}
}

func TestMaxConnections(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	s, addr := startServer(t, &Config{MaxConnections: 1}, func(s *Server) {
		require.NoError(t, s.Handle("/block", func(w *ResponseWriter, r *Request) error {
			close(started)
			<-release
			return w.Status(200).BodyString("first").Send()
		}))
		require.NoError(t, s.Handle("/", hello))
	})

	firstDone := make(chan *protocol.Response, 1)
	go func() { firstDone <- get(t, addr, "/block") }()
	<-started

	// The second connection completes the TCP handshake in the backlog but
	// is not served while the first holds the only slot.
	c, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c.Close()
	_, err = io.WriteString(c, "GET / HTTP/1.1\r\n\r\n")
	require.NoError(t, err)

	c.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, err = c.Read(make([]byte, 1))
	var ne net.Error
	require.ErrorAs(t, err, &ne)
	assert.True(t, ne.Timeout(), "second connection was served while the limit was reached")
	assert.Equal(t, int64(1), s.ActiveConnections())

	close(release)
	assert.Equal(t, "first", string((<-firstDone).Body))

	c.SetReadDeadline(time.Now().Add(5 * time.Second))
	out, err := io.ReadAll(c)
	require.NoError(t, err)
	assert.Contains(t, string(out), "Hello World!")
}

func TestShutdownWaitsForInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	s := New(&Config{Logger: discardLogger()})
	require.NoError(t, s.Handle("/slow", func(w *ResponseWriter, r *Request) error {
		close(started)
		<-release
		return w.Status(200).BodyString("done").Send()
	}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	serveErr := make(chan error, 1)
	go func() { serveErr <- s.Serve(ln) }()

	resCh := make(chan *protocol.Response, 1)
	go func() { resCh <- get(t, ln.Addr().String(), "/slow") }()
	<-started

	shutdownErr := make(chan error, 1)
	go func() { shutdownErr <- s.Shutdown(context.Background()) }()

	require.ErrorIs(t, <-serveErr, ErrServerClosed)
	assert.False(t, s.Ready())
	select {
	case err := <-shutdownErr:
		t.Fatalf("Shutdown returned %v before the in-flight request finished", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	assert.Equal(t, "done", string((<-resCh).Body))
	require.NoError(t, <-shutdownErr)

	_, err = net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	assert.Error(t, err, "listener should be closed")
	assert.ErrorIs(t, s.ListenAndServe(), ErrServerClosed)
	assert.ErrorIs(t, s.Serve(ln), ErrServerClosed)
}

func TestShutdownDeadlineClosesConnections(t *testing.T) {
	started := make(chan struct{})
	s := New(&Config{Logger: discardLogger()})
	require.NoError(t, s.Handle("/hang", func(w *ResponseWriter, r *Request) error {
		close(started)
		<-r.Context().Done()
		return r.Context().Err()
	}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go s.Serve(ln)

	clientDone := make(chan []byte, 1)
	go func() { clientDone <- roundTrip(t, ln.Addr().String(), "GET /hang HTTP/1.1\r\n\r\n") }()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Shutdown(ctx), context.DeadlineExceeded)
	assert.Empty(t, <-clientDone)
	assert.Equal(t, int64(0), s.ActiveConnections())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	s := New(&Config{Address: addr, Logger: discardLogger(), ShutdownTimeout: time.Second})
	require.NoError(t, s.Handle("/", hello))

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- s.Run(ctx) }()

	require.Eventually(t, s.Ready, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "Hello World!", string(get(t, addr, "/").Body))

	cancel()
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestConnStateString(t *testing.T) {
	tests := []struct {
		state ConnState
		want  string
	}{
		{StateAccepted, "accepted"},
		{StateParsing, "parsing"},
		{StateRouting, "routing"},
		{StateHandling, "handling"},
		{StateClosed, "closed"},
		{ConnState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("ConnState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestConnErrorAndPanicError(t *testing.T) {
	inner := errors.New("broken pipe")
	err := &ConnError{RemoteAddr: "1.2.3.4:5", Op: "write", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "server: conn 1.2.3.4:5: write: broken pipe", err.Error())
	assert.Equal(t, "server: read: broken pipe", (&ConnError{Op: "read", Err: inner}).Error())

	pe := &PanicError{Pattern: "/x", Value: "boom"}
	assert.Equal(t, "server: handler panic in /x: boom", pe.Error())
	assert.Equal(t, "panic", telemetry.CategorizeError(pe))
}
