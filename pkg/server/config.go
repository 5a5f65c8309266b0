package server

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/barehttp/barehttp/pkg/protocol"
	"github.com/barehttp/barehttp/pkg/telemetry"
)

// Config holds configuration for the server.
type Config struct {
	// Address is the address to listen on (e.g., ":8080" or "localhost:3000").
	// Default: ":8080".
	Address string

	// Logger receives server logs. A "component=server" attribute is added.
	// Default: slog.Default().
	Logger *slog.Logger

	// Timeouts. Zero selects the default; a negative value disables the deadline.

	// ReadHeaderTimeout bounds reading the request line and headers.
	// Default: 10 seconds.
	ReadHeaderTimeout time.Duration

	// ReadTimeout bounds reading the whole request, body included, measured
	// from accept.
	// Default: 30 seconds.
	ReadTimeout time.Duration

	// WriteTimeout bounds writing the response, measured from Send.
	// Default: 30 seconds.
	WriteTimeout time.Duration

	// ShutdownTimeout is the maximum time Run waits for connections to finish.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// Limits

	// MaxHeaderBytes caps the request line plus header block.
	// Default: 8KB.
	MaxHeaderBytes int

	// MaxBodyBytes caps a request body.
	// Default: 1MB.
	MaxBodyBytes int64

	// MaxConnections bounds the number of connections served at once.
	// 0 means no limit.
	// Default: 0 (no limit).
	MaxConnections int

	// ReadBufferSize is the per-connection read buffer size.
	// Default: 4096.
	ReadBufferSize int

	// Observability. Both may be nil.

	// Metrics records Prometheus collectors for connections and requests.
	Metrics *telemetry.Metrics

	// Tracer opens one span per dispatched request.
	Tracer *telemetry.Tracer
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:           ":8080",
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		MaxHeaderBytes:    protocol.DefaultMaxHeaderBytes,
		MaxBodyBytes:      protocol.DefaultMaxBodyBytes,
		MaxConnections:    0, // No limit
		ReadBufferSize:    4096,
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// withDefaults returns a copy with every zero field filled from DefaultConfig.
func (c *Config) withDefaults() *Config {
	defaults := DefaultConfig()
	if c == nil {
		return defaults
	}
	cfg := c.Clone()
	if cfg.Address == "" {
		cfg.Address = defaults.Address
	}
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if cfg.MaxHeaderBytes == 0 {
		cfg.MaxHeaderBytes = defaults.MaxHeaderBytes
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if cfg.ReadBufferSize == 0 {
		cfg.ReadBufferSize = defaults.ReadBufferSize
	}
	return cfg
}

// minHeaderBytes is the smallest header budget that fits a request line.
const minHeaderBytes = len("GET / HTTP/1.1\r\n")

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.MaxHeaderBytes < 0 || (c.MaxHeaderBytes > 0 && c.MaxHeaderBytes < minHeaderBytes):
		return fmt.Errorf("%w: MaxHeaderBytes must be at least %d, got %d", ErrInvalidConfig, minHeaderBytes, c.MaxHeaderBytes)
	case c.MaxBodyBytes < 0:
		return fmt.Errorf("%w: MaxBodyBytes must not be negative, got %d", ErrInvalidConfig, c.MaxBodyBytes)
	case c.MaxConnections < 0:
		return fmt.Errorf("%w: MaxConnections must not be negative, got %d", ErrInvalidConfig, c.MaxConnections)
	case c.ReadBufferSize < 0:
		return fmt.Errorf("%w: ReadBufferSize must not be negative, got %d", ErrInvalidConfig, c.ReadBufferSize)
	case c.ShutdownTimeout < 0:
		return fmt.Errorf("%w: ShutdownTimeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Warnings returns human-readable notes about risky but valid settings.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.MaxConnections == 0 {
		warnings = append(warnings, "MaxConnections is 0: concurrent connections are unbounded")
	}
	if c.ReadHeaderTimeout < 0 {
		warnings = append(warnings, "ReadHeaderTimeout disabled: a client that never finishes its headers holds a goroutine forever")
	}
	if c.ReadTimeout < 0 {
		warnings = append(warnings, "ReadTimeout disabled: request bodies may be read indefinitely")
	}
	if c.WriteTimeout < 0 {
		warnings = append(warnings, "WriteTimeout disabled: a client that stops reading blocks Send")
	}
	if c.ReadTimeout > 0 && c.ReadHeaderTimeout > c.ReadTimeout {
		warnings = append(warnings, "ReadHeaderTimeout exceeds ReadTimeout; ReadTimeout wins")
	}
	return warnings
}
