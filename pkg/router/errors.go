package router

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Find when no pattern matches the path.
	ErrNotFound = errors.New("router: route not found")

	// ErrInvalidPattern is returned for patterns that do not start with "/"
	// or contain an unbalanced or empty {} segment.
	ErrInvalidPattern = errors.New("router: invalid pattern")

	// ErrFrozen is returned by Register after Freeze.
	ErrFrozen = errors.New("router: table is frozen")
)

// PatternError reports a rejected registration.
type PatternError struct {
	Pattern string
	Segment string // offending segment, may be empty
	Err     error
}

func (e *PatternError) Error() string {
	if e.Segment != "" {
		return fmt.Sprintf("%v: %q (segment %q)", e.Err, e.Pattern, e.Segment)
	}
	return fmt.Sprintf("%v: %q", e.Err, e.Pattern)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}
