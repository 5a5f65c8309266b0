package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/barehttp/barehttp/pkg/protocol"
	"github.com/barehttp/barehttp/pkg/router"
	"github.com/barehttp/barehttp/pkg/telemetry"
	"go.uber.org/atomic"
)

// Server accepts connections and serves exactly one request on each.
//
// Routes are registered before the first call to Serve; Serve freezes the
// route table and from then on every connection goroutine reads it without
// locking.
type Server struct {
	config   *Config
	logger   *slog.Logger
	routes   *router.Table[Handler]
	notFound Handler
	parser   protocol.Parser
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer

	// sem bounds concurrent connections when MaxConnections > 0
	sem chan struct{}

	// baseCtx is the parent of every request context; cancelled by Close
	baseCtx    context.Context
	cancelBase context.CancelFunc

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	conns     map[*conn]struct{}
	connWG    sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once

	inShutdown atomic.Bool
	ready      atomic.Bool
	active     atomic.Int64
	nextConnID atomic.Uint64
}

// New creates a new Server with the given configuration.
func New(config *Config) *Server {
	config = config.withDefaults()

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server")

	for _, warning := range config.Warnings() {
		logger.Warn("config warning", "warning", warning)
	}
	if err := config.Validate(); err != nil {
		logger.Error("config validation failed", "error", err)
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:   config,
		logger:   logger,
		routes:   router.New[Handler](),
		notFound: NotFound,
		parser: protocol.Parser{
			MaxHeaderBytes: config.MaxHeaderBytes,
			MaxBodyBytes:   config.MaxBodyBytes,
		},
		metrics:    config.Metrics,
		tracer:     config.Tracer,
		baseCtx:    baseCtx,
		cancelBase: cancel,
		listeners:  make(map[net.Listener]struct{}),
		conns:      make(map[*conn]struct{}),
		done:       make(chan struct{}),
	}
	if config.MaxConnections > 0 {
		s.sem = make(chan struct{}, config.MaxConnections)
	}
	return s
}

// Register binds h to pattern. Segments written {name} capture the matching
// path segment into Request.Params. Registering a pattern again replaces its
// handler. Register fails once the server has started serving.
func (s *Server) Register(pattern string, h Handler) error {
	if err := s.routes.Register(pattern, h); err != nil {
		return err
	}
	s.logger.Debug("route registered", "pattern", pattern)
	return nil
}

// Handle registers a handler function for pattern.
func (s *Server) Handle(pattern string, fn HandlerFunc) error {
	return s.Register(pattern, fn)
}

// SetNotFound replaces the built-in 404 fallback. Passing nil restores it.
// Must be called before Serve.
func (s *Server) SetNotFound(h Handler) {
	if h == nil {
		h = NotFound
	}
	s.notFound = h
}

// Routes returns the registered patterns in lexical order.
func (s *Server) Routes() []string {
	return s.routes.Routes()
}

// ListenAndServe listens on Config.Address and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	if s.inShutdown.Load() {
		return ErrServerClosed
	}
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln and serves each on its own goroutine.
// It always returns a non-nil error; after Shutdown or Close the error is
// ErrServerClosed. ln is closed on return.
func (s *Server) Serve(ln net.Listener) error {
	s.routes.Freeze()

	if !s.trackListener(ln, true) {
		ln.Close()
		return ErrServerClosed
	}
	defer s.trackListener(ln, false)
	defer ln.Close()

	s.ready.Store(true)
	s.logger.Info("server listening", "address", ln.Addr().String(), "routes", s.routes.Len())

	var tempDelay time.Duration
	for {
		if !s.acquire() {
			return ErrServerClosed
		}

		rw, err := ln.Accept()
		if err != nil {
			s.release()
			if s.inShutdown.Load() {
				return ErrServerClosed
			}
			if isTemporary(err) {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if maxDelay := 1 * time.Second; tempDelay > maxDelay {
					tempDelay = maxDelay
				}
				s.logger.Warn("accept error; retrying", "error", err, "delay", tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			return err
		}
		tempDelay = 0

		c := s.newConn(rw)
		if !s.trackConn(c, true) {
			// Lost the race with Shutdown
			rw.Close()
			s.release()
			s.metrics.ConnRejected()
			return ErrServerClosed
		}
		go func() {
			defer s.release()
			defer s.trackConn(c, false)
			c.serve(s.baseCtx)
		}()
	}
}

// Run listens on Config.Address and serves until ctx is cancelled, then
// shuts down gracefully within Config.ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", s.config.Address)
		errCh <- s.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, ErrServerClosed) {
			return nil
		}
		return err

	case <-ctx.Done():
		s.logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown stops accepting connections and waits for in-flight connections
// to finish. If ctx expires first, remaining connections are closed and the
// context error is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.beginShutdown()

	finished := make(chan struct{})
	go func() {
		s.connWG.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		s.logger.Info("server shutdown complete")
		return nil
	case <-ctx.Done():
		n := s.closeConns()
		s.logger.Warn("shutdown deadline exceeded; closed connections", "closed", n, "error", ctx.Err())
		<-finished
		return ctx.Err()
	}
}

// Close stops the server immediately, closing every live connection.
func (s *Server) Close() error {
	s.beginShutdown()
	s.closeConns()
	s.connWG.Wait()
	return nil
}

func (s *Server) beginShutdown() {
	s.mu.Lock()
	s.inShutdown.Store(true)
	s.ready.Store(false)
	s.closeOnce.Do(func() { close(s.done) })
	for ln := range s.listeners {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn("listener close failed", "address", ln.Addr().String(), "error", err)
		}
	}
	s.mu.Unlock()
}

func (s *Server) closeConns() int {
	s.cancelBase()
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.rwc.Close()
	}
	return len(s.conns)
}

// Ready reports whether the server is accepting connections and has not
// been drained.
func (s *Server) Ready() bool {
	return s.ready.Load() && !s.inShutdown.Load()
}

// SetReady marks the server ready or drained. It only affects Ready; the
// listener keeps accepting. Used by the admin /drain endpoint so a load
// balancer stops sending traffic before Shutdown.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// ActiveConnections returns the number of connections being served.
func (s *Server) ActiveConnections() int64 {
	return s.active.Load()
}

// Config returns the effective server configuration.
func (s *Server) Config() *Config {
	return s.config
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

func (s *Server) trackListener(ln net.Listener, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		if s.inShutdown.Load() {
			return false
		}
		s.listeners[ln] = struct{}{}
	} else {
		delete(s.listeners, ln)
	}
	return true
}

// trackConn adds or removes c. The WaitGroup is only incremented while the
// server is not shutting down, under the same lock Shutdown takes.
func (s *Server) trackConn(c *conn, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		if s.inShutdown.Load() {
			return false
		}
		s.conns[c] = struct{}{}
		s.connWG.Add(1)
		return true
	}
	if _, ok := s.conns[c]; ok {
		delete(s.conns, c)
		s.connWG.Done()
	}
	return true
}

func (s *Server) acquire() bool {
	if s.sem == nil {
		select {
		case <-s.done:
			return false
		default:
			return true
		}
	}
	select {
	case s.sem <- struct{}{}:
		return true
	case <-s.done:
		return false
	}
}

func (s *Server) release() {
	if s.sem != nil {
		<-s.sem
	}
}

func isTemporary(err error) bool {
	var te interface{ Temporary() bool }
	return errors.As(err, &te) && te.Temporary()
}
