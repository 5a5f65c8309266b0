package protocol

import (
	"errors"
	"fmt"
)

// Sentinel errors for request parsing. Every error returned by Parser is a
// *ParseError that matches exactly one of these via errors.Is.
var (
	// ErrTruncatedRequest is returned when less than a minimal request line
	// ("GET / HTTP/1.1") arrived. Usually an empty probe connection.
	ErrTruncatedRequest = errors.New("protocol: truncated request")

	// ErrUnrecognizedMethod is returned for methods other than GET, POST and OPTIONS.
	ErrUnrecognizedMethod = errors.New("protocol: unrecognized method")

	// ErrUnsupportedVersion is returned for any version other than HTTP/1.1.
	ErrUnsupportedVersion = errors.New("protocol: unsupported version")

	// ErrMalformedHeaderLine is returned for a header line without a colon.
	ErrMalformedHeaderLine = errors.New("protocol: malformed header line")

	// ErrHeaderTooLarge is returned when the request line and headers exceed MaxHeaderBytes.
	ErrHeaderTooLarge = errors.New("protocol: header too large")

	// ErrInvalidContentLength is returned when Content-Length is not a non-negative integer.
	ErrInvalidContentLength = errors.New("protocol: invalid content length")

	// ErrBodyTooLarge is returned when Content-Length exceeds MaxBodyBytes.
	ErrBodyTooLarge = errors.New("protocol: body too large")

	// ErrTruncatedBody is returned when the peer sent fewer body bytes than announced.
	ErrTruncatedBody = errors.New("protocol: truncated body")

	// ErrReadFailed is returned when the underlying reader fails mid-request.
	ErrReadFailed = errors.New("protocol: read failed")
)

// ParseErrorKind classifies a parse failure.
type ParseErrorKind uint8

const (
	KindTruncatedRequest ParseErrorKind = iota
	KindUnrecognizedMethod
	KindUnsupportedVersion
	KindMalformedHeaderLine
	KindHeaderTooLarge
	KindInvalidContentLength
	KindBodyTooLarge
	KindTruncatedBody
	KindReadFailed
)

// String returns a short, label-safe name for the kind.
func (k ParseErrorKind) String() string {
	switch k {
	case KindTruncatedRequest:
		return "truncated_request"
	case KindUnrecognizedMethod:
		return "unrecognized_method"
	case KindUnsupportedVersion:
		return "unsupported_version"
	case KindMalformedHeaderLine:
		return "malformed_header_line"
	case KindHeaderTooLarge:
		return "header_too_large"
	case KindInvalidContentLength:
		return "invalid_content_length"
	case KindBodyTooLarge:
		return "body_too_large"
	case KindTruncatedBody:
		return "truncated_body"
	case KindReadFailed:
		return "read_failed"
	default:
		return "unknown"
	}
}

// Malformed reports whether the kind indicates corrupt input, as opposed to
// input that is well formed but unexpected or a transport hiccup.
func (k ParseErrorKind) Malformed() bool {
	switch k {
	case KindMalformedHeaderLine, KindHeaderTooLarge, KindInvalidContentLength, KindBodyTooLarge:
		return true
	}
	return false
}

// Benign reports whether the failure should be dropped without logging.
func (k ParseErrorKind) Benign() bool {
	return k == KindTruncatedRequest
}

func (k ParseErrorKind) sentinel() error {
	switch k {
	case KindTruncatedRequest:
		return ErrTruncatedRequest
	case KindUnrecognizedMethod:
		return ErrUnrecognizedMethod
	case KindUnsupportedVersion:
		return ErrUnsupportedVersion
	case KindMalformedHeaderLine:
		return ErrMalformedHeaderLine
	case KindHeaderTooLarge:
		return ErrHeaderTooLarge
	case KindInvalidContentLength:
		return ErrInvalidContentLength
	case KindBodyTooLarge:
		return ErrBodyTooLarge
	case KindTruncatedBody:
		return ErrTruncatedBody
	default:
		return ErrReadFailed
	}
}

// ParseError describes why a request could not be parsed.
type ParseError struct {
	Kind   ParseErrorKind
	Detail string // offending input or context, may be empty
	Err    error  // underlying I/O error, may be nil
}

// Error returns the sentinel message with detail and cause appended.
func (e *ParseError) Error() string {
	msg := e.Kind.sentinel().Error()
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Is matches the sentinel for the error's kind.
func (e *ParseError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// Unwrap returns the underlying I/O error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseErr(kind ParseErrorKind, detail string, err error) *ParseError {
	return &ParseError{Kind: kind, Detail: detail, Err: err}
}

// KindOf returns the kind of a parse error and whether err is one.
func KindOf(err error) (ParseErrorKind, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return 0, false
}
