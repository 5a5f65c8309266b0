package config

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration written as a Go duration string ("10s",
// "1m30s"). A negative value disables the corresponding deadline.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// DurationError reports a value that is not a valid duration. Line and
// Column are set for YAML input.
type DurationError struct {
	Value  string
	Line   int
	Column int
	Err    error
}

func (e *DurationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: invalid duration %q: %v", e.Line, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid duration %q: %v", e.Value, e.Err)
}

func (e *DurationError) Unwrap() error {
	return e.Err
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return &DurationError{Value: value.Value, Line: value.Line, Column: value.Column, Err: err}
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return &DurationError{Value: string(data), Err: err}
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return &DurationError{Value: s, Err: err}
	}
	*d = Duration(parsed)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
