package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/barehttp/barehttp/internal/config"
	"github.com/barehttp/barehttp/internal/errors"
	"github.com/barehttp/barehttp/pkg/admin"
	"github.com/barehttp/barehttp/pkg/server"
	"github.com/barehttp/barehttp/pkg/telemetry"
)

type serveOptions struct {
	configPath     string
	addr           string
	adminAddr      string
	maxConnections int
	logLevel       string
}

func serveCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the demo server",
		Long: `Start the server with the demo routes:

  /                   Hello World!
  /object/{id}/edit   ABC {id}
  /hello              a static HTML page
  /ping               an HTML page echoing the request body
  /ping_raw           the parsed request as JSON

Settings come from barehttp.yaml in the working directory (or --config);
flags override the file.

Examples:
  barehttp serve
  barehttp serve --addr=127.0.0.1:8080 --admin-addr=127.0.0.1:9090
  barehttp serve --config=deploy/barehttp.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(cfg, cfg.Logger(os.Stderr))
			if err != nil {
				return err
			}
			return a.run(ctx)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default: barehttp.yaml in the working directory)")
	cmd.Flags().StringVarP(&opts.addr, "addr", "a", "", "Listen address (default from config, then :8080)")
	cmd.Flags().StringVar(&opts.adminAddr, "admin-addr", "", "Admin listen address; empty disables the admin server")
	cmd.Flags().IntVar(&opts.maxConnections, "max-connections", -1, "Maximum concurrent connections, 0 for no limit")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	return cmd
}

// loadConfig loads the config file and applies flag overrides.
func loadConfig(opts serveOptions) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.addr != "" {
		cfg.Server.Address = opts.addr
	}
	if opts.adminAddr != "" {
		cfg.Admin.Address = opts.adminAddr
	}
	if opts.maxConnections >= 0 {
		cfg.Server.MaxConnections = opts.maxConnections
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app wires the server, its telemetry and the optional admin server.
type app struct {
	log      *slog.Logger
	registry *prometheus.Registry
	server   *server.Server
	admin    *admin.Server
}

func newApp(cfg *config.Config, log *slog.Logger) (*app, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sc := cfg.ServerConfig()
	sc.Logger = log
	sc.Metrics = telemetry.NewMetrics(
		telemetry.WithNamespace(cfg.Telemetry.Namespace),
		telemetry.WithRegistry(registry),
	)
	if cfg.Telemetry.Tracing {
		sc.Tracer = telemetry.NewTracer()
	}

	srv := server.New(sc)
	if err := registerDemoRoutes(srv); err != nil {
		return nil, errors.New("E140").Wrap(err)
	}

	a := &app{
		log:      log,
		registry: registry,
		server:   srv,
	}
	if ac := cfg.AdminConfig(log); ac != nil {
		ac.Gatherer = registry
		a.admin = admin.New(ac, srv)
	}
	return a, nil
}

// run serves until ctx is cancelled.
func (a *app) run(ctx context.Context) error {
	if a.admin != nil {
		a.admin.RunInBackground()
		defer a.admin.Shutdown(context.Background())
	}

	err := a.server.Run(ctx)
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.New("E122").Wrap(err)
	case isListenError(err):
		return errors.New("E120").
			WithDetail(fmt.Sprintf("Could not bind %s.", a.server.Config().Address)).
			Wrap(err)
	default:
		return errors.New("E121").Wrap(err)
	}
}

func isListenError(err error) bool {
	var opErr *net.OpError
	return stderrors.As(err, &opErr) && opErr.Op == "listen"
}
