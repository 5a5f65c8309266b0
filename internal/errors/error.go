package errors

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig  Category = "config"
	CategoryServer  Category = "server"
	CategoryNetwork Category = "network"
	CategoryRouting Category = "routing"
	CategoryCLI     Category = "cli"
)

// Location represents a position in a configuration or source file.
type Location struct {
	File   string
	Line   int
	Column int
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// BareError is a structured error with a registered code, an optional file
// location and a hint on how to fix it.
type BareError struct {
	// Code is a unique error identifier (e.g., "E101").
	Code string

	// Category is the error type (config, server, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Location is the file position where the error occurred.
	Location *Location

	// Context contains surrounding file lines.
	Context []string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Example shows the correct form.
	Example string

	// Wrapped is the underlying error, if any.
	Wrapped error

	// contextStart is the line number of Context[0].
	contextStart int
}

// Error implements the error interface.
func (e *BareError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *BareError) Unwrap() error {
	return e.Wrapped
}

// Is matches another *BareError with the same code.
func (e *BareError) Is(target error) bool {
	t, ok := target.(*BareError)
	return ok && t.Code != "" && t.Code == e.Code
}

// WithLocation adds a file location and the lines around it.
func (e *BareError) WithLocation(file string, line, column int) *BareError {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Context, e.contextStart = readContextLines(file, line)
	return e
}

// lineRe matches the "line N" fragment yaml.v3 and encoding/json positions use.
var lineRe = regexp.MustCompile(`line (\d+)`)

// WithLocationFromError extracts a line number from a decoder error, such as
// yaml's "yaml: line 3: mapping values are not allowed in this context".
func (e *BareError) WithLocationFromError(file string, err error) *BareError {
	if err == nil {
		return e
	}
	if m := lineRe.FindStringSubmatch(err.Error()); m != nil {
		if line, _ := strconv.Atoi(m[1]); line > 0 {
			return e.WithLocation(file, line, 0)
		}
	}
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *BareError) WithSuggestion(s string) *BareError {
	e.Suggestion = s
	return e
}

// WithExample adds an example to the error.
func (e *BareError) WithExample(ex string) *BareError {
	e.Example = ex
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *BareError) WithDetail(d string) *BareError {
	e.Detail = d
	return e
}

// WithDetailf adds a formatted detailed explanation to the error.
func (e *BareError) WithDetailf(format string, args ...any) *BareError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// Wrap wraps another error.
func (e *BareError) Wrap(err error) *BareError {
	e.Wrapped = err
	return e
}

// contextRadius is the number of lines shown on each side of a location.
const contextRadius = 2

// readContextLines returns up to contextRadius lines on either side of line
// together with the number of the first returned line. A missing or
// unreadable file yields no lines.
func readContextLines(filename string, line int) ([]string, int) {
	data, err := os.ReadFile(filename)
	if err != nil || line < 1 {
		return nil, 0
	}
	all := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if line > len(all) {
		return nil, 0
	}
	first := max(line-contextRadius, 1)
	last := min(line+contextRadius, len(all))
	out := make([]string, 0, last-first+1)
	for _, text := range all[first-1 : last] {
		out = append(out, strings.TrimSuffix(text, "\r"))
	}
	return out, first
}

// New creates a BareError from a registered error code.
func New(code string) *BareError {
	template, ok := registry[code]
	if !ok {
		return &BareError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &BareError{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Detail:     template.Detail,
		Suggestion: template.Suggestion,
	}
}

// Newf creates a new BareError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *BareError {
	return &BareError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a BareError. An error that already
// is, or wraps, a *BareError is returned as that error.
func FromError(err error, code string) *BareError {
	if err == nil {
		return nil
	}
	var be *BareError
	if errors.As(err, &be) {
		return be
	}
	return New(code).Wrap(err)
}

// Code returns the code of the first *BareError in err's chain, or "".
func Code(err error) string {
	var be *BareError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
