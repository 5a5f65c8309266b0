// Package protocol implements the HTTP/1.1 wire subset spoken by barehttp.
//
// The package is transport agnostic: it reads requests from a *bufio.Reader
// and writes responses to an io.Writer. It knows nothing about sockets,
// routing or handlers.
//
// # Request Format
//
// A request is a request line, zero or more header lines and a blank line:
//
//	GET /object/42/edit HTTP/1.1\r\n
//	Host: localhost\r\n
//	\r\n
//
// Only GET, POST and OPTIONS are recognized, and only HTTP/1.1. Both "\n"
// and "\r\n" line terminators are accepted.
//
// # Bodies
//
// When a Content-Length header is present the body is read in full, bounded
// by Parser.MaxBodyBytes. Without Content-Length the body is whatever bytes
// were already buffered once the header block ended. That fallback is
// best-effort: a body arriving in a later network segment is not captured.
//
// # Response Format
//
//	HTTP/1.1 200 \r\n
//	X: Y\r\n
//	Content-Length: 2\r\n
//	\r\n
//	ok
//
// Content-Length is only emitted when a body is present. Header order is not
// stable.
//
// # Errors
//
// Parse failures are returned as *ParseError values that match one of the
// package sentinels (ErrTruncatedRequest, ErrUnrecognizedMethod, ...) via
// errors.Is. ParseErrorKind.Malformed distinguishes corrupt input from merely
// unexpected input.
package protocol
