package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Target is the server the admin endpoints report on and control.
type Target interface {
	Ready() bool
	SetReady(ready bool)
	Routes() []string
	ActiveConnections() int64
}

// Config contains the admin server settings.
type Config struct {
	// ListenAddr is the address and port the admin server listens on.
	ListenAddr string

	// Log is the structured logger for admin operations.
	// Default: slog.Default().
	Log *slog.Logger

	// Gatherer is exposed on /metrics.
	// Default: prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// EnablePprof mounts the pprof handlers under /debug when true.
	EnablePprof bool

	// DrainDuration is how long /drain waits, after marking the target not
	// ready, before logging that the drain period completed.
	DrainDuration time.Duration

	// GracefulShutdownDuration is the maximum time Shutdown waits when the
	// caller's context has no deadline.
	// Default: 5 seconds.
	GracefulShutdownDuration time.Duration

	// ReadTimeout and WriteTimeout bound admin requests.
	// Default: 5 and 10 seconds.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the admin HTTP server.
type Server struct {
	cfg    *Config
	log    *slog.Logger
	target Target
	srv    *http.Server
}

// New creates an admin server for target.
func New(cfg *Config, target Target) *Server {
	c := *cfg
	if c.Log == nil {
		c.Log = slog.Default()
	}
	if c.Gatherer == nil {
		c.Gatherer = prometheus.DefaultGatherer
	}
	if c.GracefulShutdownDuration == 0 {
		c.GracefulShutdownDuration = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 5 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}

	s := &Server{
		cfg:    &c,
		log:    c.Log.With("component", "admin"),
		target: target,
	}
	s.srv = &http.Server{
		Addr:              c.ListenAddr,
		Handler:           s.createRouter(),
		ReadHeaderTimeout: c.ReadTimeout,
		ReadTimeout:       c.ReadTimeout,
		WriteTimeout:      c.WriteTimeout,
	}
	return s
}

// createRouter creates the chi router with middleware and endpoints.
func (s *Server) createRouter() http.Handler {
	mux := chi.NewRouter()

	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)

	mux.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))

	mux.Group(func(r chi.Router) {
		r.Use(s.httpLogger)
		r.Get("/livez", s.handleLivenessCheck)
		r.Get("/readyz", s.handleReadinessCheck)
		r.Get("/drain", s.handleDrain)
		r.Get("/undrain", s.handleUndrain)
		r.Get("/routes", s.handleRoutes)
		r.Get("/stats", s.handleStats)
	})

	if s.cfg.EnablePprof {
		s.log.Info("pprof API enabled")
		mux.Mount("/debug", middleware.Profiler())
	}

	return mux
}

// Handler returns the admin router, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// httpLogger logs each admin request at debug level.
func (s *Server) httpLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("admin request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type statusResponse struct {
	Status string `json:"status"`
}

// handleLivenessCheck reports that the process is up.
func (s *Server) handleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{"alive"})
}

// handleReadinessCheck reports whether the target accepts traffic.
func (s *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if !s.target.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, statusResponse{"not ready"})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{"ready"})
}

// handleDrain marks the target not ready so load balancers stop routing to it.
func (s *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	if !s.target.Ready() {
		writeJSON(w, http.StatusOK, statusResponse{"already draining"})
		return
	}
	s.target.SetReady(false)
	s.log.Info("server marked as not ready")

	if d := s.cfg.DrainDuration; d > 0 {
		go func() {
			time.Sleep(d)
			s.log.Info("drain period completed", "active_connections", s.target.ActiveConnections())
		}()
	}
	writeJSON(w, http.StatusOK, statusResponse{"draining"})
}

// handleUndrain marks the target ready again.
func (s *Server) handleUndrain(w http.ResponseWriter, r *http.Request) {
	if s.target.Ready() {
		writeJSON(w, http.StatusOK, statusResponse{"already ready"})
		return
	}
	s.target.SetReady(true)
	s.log.Info("server marked as ready")
	writeJSON(w, http.StatusOK, statusResponse{"ready"})
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Routes []string `json:"routes"`
	}{s.target.Routes()})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Ready             bool  `json:"ready"`
		ActiveConnections int64 `json:"active_connections"`
	}{s.target.Ready(), s.target.ActiveConnections()})
}

// Serve serves admin requests on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("starting admin server", "address", ln.Addr().String())
	err := s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ListenAndServe listens on ListenAddr and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// RunInBackground starts the admin server in a goroutine.
func (s *Server) RunInBackground() {
	go func() {
		if err := s.ListenAndServe(); err != nil {
			s.log.Error("admin server failed", "error", err)
		}
	}()
}

// Shutdown gracefully stops the admin server.
func (s *Server) Shutdown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.GracefulShutdownDuration)
		defer cancel()
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Error("graceful admin shutdown failed", "error", err)
		return err
	}
	s.log.Info("admin server stopped")
	return nil
}
