package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"
)

// Limits applied when the corresponding Parser field is zero.
const (
	// DefaultMaxHeaderBytes bounds the request line plus header block (8KB).
	DefaultMaxHeaderBytes = 8 << 10

	// DefaultMaxBodyBytes bounds a Content-Length body (1MB).
	DefaultMaxBodyBytes = 1 << 20
)

// Version is the only protocol version accepted on the request line.
const Version = "HTTP/1.1"

// minRequestLine is the length of the shortest legal request line.
var minRequestLine = len("GET / HTTP/1.1")

// Parser reads requests from a buffered stream. The zero value is ready to
// use with the default limits. A Parser holds no per-request state and may be
// shared between goroutines.
type Parser struct {
	// MaxHeaderBytes bounds the request line and all header lines together,
	// terminators included.
	MaxHeaderBytes int

	// MaxBodyBytes bounds the body announced by Content-Length.
	MaxBodyBytes int64
}

// Parse reads one complete request: head, then body.
func (p *Parser) Parse(br *bufio.Reader) (*Request, error) {
	req, err := p.ReadHead(br)
	if err != nil {
		return nil, err
	}
	if err := p.ReadBody(br, req); err != nil {
		return nil, err
	}
	return req, nil
}

// ReadHead reads the request line and the header block up to and including
// the terminating blank line. Body bytes are left in br.
func (p *Parser) ReadHead(br *bufio.Reader) (*Request, error) {
	budget := p.headerLimit()

	line, err := readLine(br, &budget)
	atEOF := false
	switch {
	case err == nil:
	case errors.Is(err, errLineTooLong):
		return nil, parseErr(KindHeaderTooLarge, "request line", nil)
	case errors.Is(err, io.EOF):
		atEOF = true
	default:
		return nil, parseErr(KindReadFailed, "request line", err)
	}
	if len(line) < minRequestLine {
		return nil, parseErr(KindTruncatedRequest, strconv.Itoa(len(line))+" bytes", nil)
	}

	fields := bytes.Split(line, []byte{' '})
	method, ok := ParseMethod(fields[0])
	if !ok {
		return nil, parseErr(KindUnrecognizedMethod, strconv.Quote(string(fields[0])), nil)
	}
	var target, version []byte
	if len(fields) > 1 {
		target = fields[1]
	}
	if len(fields) > 2 {
		version = fields[2]
	}
	if string(version) != Version {
		return nil, parseErr(KindUnsupportedVersion, strconv.Quote(string(version)), nil)
	}

	req := newRequest()
	req.Method = method
	req.RequestURI = string(target)
	req.Path = req.RequestURI
	req.Proto = Version

	for !atEOF {
		line, err := readLine(br, &budget)
		if err != nil {
			if errors.Is(err, errLineTooLong) {
				return nil, parseErr(KindHeaderTooLarge, "header block", nil)
			}
			if !errors.Is(err, io.EOF) {
				return nil, parseErr(KindReadFailed, "header block", err)
			}
			atEOF = true
		}
		if len(line) == 0 {
			break
		}
		i := bytes.IndexByte(line, ':')
		if i < 0 {
			return nil, parseErr(KindMalformedHeaderLine, strconv.Quote(string(line)), nil)
		}
		value := line[i+1:]
		if len(value) > 0 && value[0] == ' ' {
			value = value[1:]
		}
		req.Headers[string(line[:i])] = string(value)
	}
	return req, nil
}

// ReadBody fills req.Body. With a Content-Length header exactly that many
// bytes are read; otherwise the body is whatever is already buffered in br.
func (p *Parser) ReadBody(br *bufio.Reader, req *Request) error {
	limit := p.bodyLimit()

	v, ok, err := contentLength(req)
	if err != nil {
		return err
	}
	if ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return parseErr(KindInvalidContentLength, strconv.Quote(v), nil)
		}
		if n > limit {
			return parseErr(KindBodyTooLarge, strconv.FormatInt(n, 10)+" bytes", nil)
		}
		body := make([]byte, n)
		if _, err := io.ReadFull(br, body); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return parseErr(KindTruncatedBody, "", err)
			}
			return parseErr(KindReadFailed, "body", err)
		}
		req.Body = body
		return nil
	}

	n := br.Buffered()
	if int64(n) > limit {
		n = int(limit)
	}
	body := make([]byte, n)
	if n > 0 {
		// Served from the buffer only, never blocks on the underlying reader.
		if _, err := io.ReadFull(br, body); err != nil {
			return parseErr(KindReadFailed, "buffered body", err)
		}
	}
	req.Body = body
	return nil
}

func (p *Parser) headerLimit() int {
	if p == nil || p.MaxHeaderBytes <= 0 {
		return DefaultMaxHeaderBytes
	}
	return p.MaxHeaderBytes
}

func (p *Parser) bodyLimit() int64 {
	if p == nil || p.MaxBodyBytes <= 0 {
		return DefaultMaxBodyBytes
	}
	return p.MaxBodyBytes
}

var errLineTooLong = errors.New("protocol: line exceeds header budget")

// readLine reads through the next '\n', charging the consumed bytes to
// budget. The returned line has its "\n" or "\r\n" terminator removed. At EOF
// the partial line read so far is returned together with io.EOF.
func readLine(br *bufio.Reader, budget *int) ([]byte, error) {
	var line []byte
	for {
		chunk, err := br.ReadSlice('\n')
		*budget -= len(chunk)
		if *budget < 0 {
			return nil, errLineTooLong
		}
		line = append(line, chunk...)
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return trimEOL(line), err
	}
	return trimEOL(line), nil
}

func trimEOL(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}

// contentLength returns the trimmed Content-Length value. Header names keep
// their case, so one request may carry several spellings of the name; they
// must agree or the body length would depend on which one is read.
func contentLength(req *Request) (string, bool, error) {
	var value string
	found := false
	for name, v := range req.Headers {
		if !strings.EqualFold(name, "Content-Length") {
			continue
		}
		v = strings.TrimSpace(v)
		if found && v != value {
			return "", false, parseErr(KindInvalidContentLength,
				strconv.Quote(value)+" and "+strconv.Quote(v), nil)
		}
		value, found = v, true
	}
	return value, found, nil
}
