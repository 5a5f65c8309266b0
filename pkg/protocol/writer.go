package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Response is a fully materialized HTTP/1.1 response.
type Response struct {
	Status  int
	Message string
	Headers map[string]string

	// Body is nil when the response has no body. A non-nil empty slice is a
	// present, zero-length body and still gets "Content-Length: 0".
	Body []byte
}

// Append serializes the response onto dst.
func (r *Response) Append(dst []byte) []byte {
	dst = append(dst, "HTTP/1.1 "...)
	dst = strconv.AppendInt(dst, int64(r.Status), 10)
	dst = append(dst, ' ')
	dst = append(dst, sanitizeHeaderValue(r.Message)...)
	dst = append(dst, "\r\n"...)

	for name, value := range r.Headers {
		if r.Body != nil && strings.EqualFold(name, "Content-Length") {
			continue
		}
		dst = append(dst, sanitizeHeaderValue(name)...)
		dst = append(dst, ": "...)
		dst = append(dst, sanitizeHeaderValue(value)...)
		dst = append(dst, "\r\n"...)
	}

	if r.Body != nil {
		dst = append(dst, "Content-Length: "...)
		dst = strconv.AppendInt(dst, int64(len(r.Body)), 10)
		dst = append(dst, "\r\n\r\n"...)
		return append(dst, r.Body...)
	}
	return append(dst, "\r\n"...)
}

// WriteTo writes the serialized response to w in a single Write call.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	buf := r.Append(make([]byte, 0, 256+len(r.Body)))
	n, err := w.Write(buf)
	return int64(n), err
}

// WriteRequest writes a request head plus optional body. A Content-Length
// header is added when body is non-nil. Used by clients such as the probe
// command and by tests.
func WriteRequest(w io.Writer, method, target string, headers map[string]string, body []byte) error {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s %s\r\n", method, target, Version)
	for name, value := range headers {
		if body != nil && strings.EqualFold(name, "Content-Length") {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\r\n", sanitizeHeaderValue(name), sanitizeHeaderValue(value))
	}
	if body != nil {
		fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	}
	b.WriteString("\r\n")
	b.Write(body)
	_, err := w.Write(b.Bytes())
	return err
}

// ErrMalformedResponse is returned by ReadResponse for an unparseable status line or header.
var ErrMalformedResponse = errors.New("protocol: malformed response")

// ReadResponse reads a response as written by Response.WriteTo. Without
// Content-Length the body extends to EOF, since every response closes its
// connection.
func ReadResponse(br *bufio.Reader) (*Response, error) {
	budget := DefaultMaxHeaderBytes
	line, err := readLine(br, &budget)
	if err != nil && (len(line) == 0 || !errors.Is(err, io.EOF)) {
		return nil, err
	}
	proto, rest, ok := strings.Cut(string(line), " ")
	if !ok || proto != Version {
		return nil, fmt.Errorf("%w: status line %q", ErrMalformedResponse, line)
	}
	code, message, _ := strings.Cut(rest, " ")
	status, err := strconv.Atoi(code)
	if err != nil {
		return nil, fmt.Errorf("%w: status code %q", ErrMalformedResponse, code)
	}

	res := &Response{Status: status, Message: message, Headers: make(map[string]string)}
	for {
		line, err := readLine(br, &budget)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		if len(line) == 0 {
			break
		}
		name, value, ok := strings.Cut(string(line), ":")
		if !ok {
			return nil, fmt.Errorf("%w: header %q", ErrMalformedResponse, line)
		}
		res.Headers[name] = strings.TrimPrefix(value, " ")
		if err != nil {
			break
		}
	}

	if v, ok := res.Headers["Content-Length"]; ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: content length %q", ErrMalformedResponse, v)
		}
		res.Body = make([]byte, n)
		if _, err := io.ReadFull(br, res.Body); err != nil {
			return nil, err
		}
		return res, nil
	}
	body, err := io.ReadAll(br)
	if err != nil {
		return nil, err
	}
	if len(body) > 0 {
		res.Body = body
	}
	return res, nil
}

// sanitizeHeaderValue removes CR, LF and other control characters except HTAB
// so a value cannot terminate its line early.
func sanitizeHeaderValue(v string) string {
	clean := true
	for i := 0; i < len(v); i++ {
		if c := v[i]; (c < 0x20 && c != '\t') || c == 0x7f {
			clean = false
			break
		}
	}
	if clean {
		return v
	}
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		if (c < 0x20 && c != '\t') || c == 0x7f {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
