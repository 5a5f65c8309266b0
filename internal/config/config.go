package config

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/barehttp/barehttp/internal/errors"
	"github.com/barehttp/barehttp/pkg/admin"
	"github.com/barehttp/barehttp/pkg/server"
)

const (
	// ConfigFileName is the preferred name of the configuration file.
	ConfigFileName = "barehttp.yaml"

	// EnvAddress overrides server.address when set.
	EnvAddress = "BAREHTTP_ADDRESS"

	// DefaultAddress is the default listen address of the server.
	DefaultAddress = ":8080"
)

// FileNames lists the names Load looks for, in order.
var FileNames = []string{"barehttp.yaml", "barehttp.yml", "barehttp.json"}

// Config is the on-disk configuration of the barehttp command.
type Config struct {
	// Server holds listener, timeout and limit settings.
	Server ServerConfig `yaml:"server" json:"server"`

	// Admin holds the settings of the admin HTTP listener.
	Admin AdminConfig `yaml:"admin" json:"admin"`

	// Log selects the log level and handler.
	Log LogConfig `yaml:"log" json:"log"`

	// Telemetry configures metrics and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig mirrors server.Config. Zero values select the server defaults.
type ServerConfig struct {
	Address           string   `yaml:"address" json:"address"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout" json:"read_header_timeout"`
	ReadTimeout       Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout      Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout   Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MaxHeaderBytes    int      `yaml:"max_header_bytes" json:"max_header_bytes"`
	MaxBodyBytes      int64    `yaml:"max_body_bytes" json:"max_body_bytes"`
	MaxConnections    int      `yaml:"max_connections" json:"max_connections"`
	ReadBufferSize    int      `yaml:"read_buffer_size" json:"read_buffer_size"`
}

// AdminConfig configures the admin listener. An empty Address disables it.
type AdminConfig struct {
	Address       string   `yaml:"address" json:"address"`
	Pprof         bool     `yaml:"pprof" json:"pprof"`
	DrainDuration Duration `yaml:"drain_duration" json:"drain_duration"`
}

// LogConfig selects the slog level ("debug", "info", "warn", "error") and
// handler format ("text", "json").
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// TelemetryConfig configures the Prometheus collectors and the tracer.
type TelemetryConfig struct {
	// Namespace prefixes every metric name.
	Namespace string `yaml:"namespace" json:"namespace"`

	// Tracing enables one span per dispatched request.
	Tracing bool `yaml:"tracing" json:"tracing"`
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Address: DefaultAddress,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Namespace: "barehttp",
		},
	}
}

// Load reads configuration from the first of FileNames found in dir.
func Load(dir string) (*Config, error) {
	if path, ok := Find(dir); ok {
		return LoadFile(path)
	}
	return nil, errors.New("E100").
		WithDetail("No barehttp.yaml, barehttp.yml or barehttp.json found in " + dir)
}

// LoadOrDefault loads path, or when path is empty the config in the working
// directory. With no file found it returns the defaults with the environment
// applied.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	if found, ok := Find("."); ok {
		return LoadFile(found)
	}
	cfg := New()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Find returns the path of the first configuration file present in dir.
func Find(dir string) (string, bool) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// LoadFile reads configuration from the specified file path. The format is
// chosen by extension.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E100").
				WithDetail("No config file at " + path).
				WithSuggestion("Create " + ConfigFileName + " or drop the --config flag to use the defaults")
		}
		return nil, errors.New("E101").Wrap(err)
	}

	cfg := New()
	if err := cfg.decode(path, data); err != nil {
		return nil, err
	}

	cfg.configPath = path
	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(path string, data []byte) error {
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(c)
		if err == io.EOF {
			// Empty file
			err = nil
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(c)
	default:
		return errors.New("E102").WithDetailf("%s has extension %q; use .yaml, .yml or .json", path, ext)
	}
	if err == nil {
		return nil
	}

	var de *DurationError
	if stderrors.As(err, &de) {
		be := errors.New("E103").Wrap(err)
		if de.Line > 0 {
			return be.WithLocation(path, de.Line, de.Column)
		}
		return be
	}

	be := errors.New("E101").Wrap(err)
	var se *json.SyntaxError
	if stderrors.As(err, &se) {
		return be.WithLocation(path, lineOf(data, se.Offset), 0)
	}
	var te *json.UnmarshalTypeError
	if stderrors.As(err, &te) {
		return be.WithLocation(path, lineOf(data, te.Offset), 0)
	}
	return be.WithLocationFromError(path, err)
}

// lineOf converts a byte offset into a 1-based line number.
func lineOf(data []byte, offset int64) int {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	if offset < 0 {
		offset = 0
	}
	return bytes.Count(data[:offset], []byte("\n")) + 1
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = DefaultAddress
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Telemetry.Namespace == "" {
		c.Telemetry.Namespace = "barehttp"
	}
}

func (c *Config) applyEnv() {
	if addr, ok := os.LookupEnv(EnvAddress); ok && addr != "" {
		c.Server.Address = addr
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validateAddress(c.Server.Address); err != nil {
		return errors.New("E106").WithDetailf("server.address %q: %v", c.Server.Address, err)
	}
	if c.Admin.Address != "" {
		if err := validateAddress(c.Admin.Address); err != nil {
			return errors.New("E106").WithDetailf("admin.address %q: %v", c.Admin.Address, err)
		}
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return errors.New("E104").WithDetailf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.New("E104").WithDetailf("log.format %q is not one of text, json", c.Log.Format)
	}
	if err := c.ServerConfig().Validate(); err != nil {
		return errors.New("E105").WithDetail(err.Error()).Wrap(err)
	}
	return nil
}

func validateAddress(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if port == "" {
		return stderrors.New("missing port")
	}
	return nil
}

// Path returns the path where the config was loaded from, or "" for defaults.
func (c *Config) Path() string {
	return c.configPath
}

// ServerConfig converts the file settings into a server.Config. Logger,
// Metrics and Tracer are left for the caller.
func (c *Config) ServerConfig() *server.Config {
	s := c.Server
	return &server.Config{
		Address:           s.Address,
		ReadHeaderTimeout: s.ReadHeaderTimeout.Std(),
		ReadTimeout:       s.ReadTimeout.Std(),
		WriteTimeout:      s.WriteTimeout.Std(),
		ShutdownTimeout:   s.ShutdownTimeout.Std(),
		MaxHeaderBytes:    s.MaxHeaderBytes,
		MaxBodyBytes:      s.MaxBodyBytes,
		MaxConnections:    s.MaxConnections,
		ReadBufferSize:    s.ReadBufferSize,
	}
}

// AdminConfig converts the admin settings. It returns nil when the admin
// listener is disabled.
func (c *Config) AdminConfig(log *slog.Logger) *admin.Config {
	if c.Admin.Address == "" {
		return nil
	}
	return &admin.Config{
		ListenAddr:    c.Admin.Address,
		Log:           log,
		EnablePprof:   c.Admin.Pprof,
		DrainDuration: c.Admin.DrainDuration.Std(),
	}
}

// Logger builds the slog logger described by the log section, writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	err := level.UnmarshalText([]byte(s))
	return level, err
}

// Marshal renders the effective configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
