package server

import (
	"errors"
	"fmt"
)

// Sentinel errors for server and response conditions.
var (
	// ErrServerClosed is returned by Serve and ListenAndServe after Shutdown.
	ErrServerClosed = errors.New("server: server closed")

	// ErrResponseSent is returned by Send when the response was already sent.
	ErrResponseSent = errors.New("server: response already sent")

	// ErrInvalidConfig is wrapped by Config.Validate failures.
	ErrInvalidConfig = errors.New("server: invalid config")
)

// ConnError wraps a transport failure with the connection it happened on.
type ConnError struct {
	RemoteAddr string
	Op         string // "read", "write", "close"
	Err        error
}

// Error returns the error message with connection context.
func (e *ConnError) Error() string {
	if e.RemoteAddr == "" {
		return fmt.Sprintf("server: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("server: conn %s: %s: %v", e.RemoteAddr, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ConnError) Unwrap() error {
	return e.Err
}

// PanicError wraps a panic recovered from a handler.
type PanicError struct {
	Pattern string
	Value   any
	Stack   []byte
}

// Error returns the error message.
func (e *PanicError) Error() string {
	route := e.Pattern
	if route == "" {
		route = "not-found handler"
	}
	return fmt.Sprintf("server: handler panic in %s: %v", route, e.Value)
}
