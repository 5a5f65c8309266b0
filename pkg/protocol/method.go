package protocol

import (
	"encoding/json"
	"fmt"
)

// Method is a recognized HTTP request method.
type Method uint8

const (
	MethodGet     Method = iota + 1 // GET
	MethodPost                      // POST
	MethodOptions                   // OPTIONS
)

// String returns the method token as it appears on the wire.
func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPost:
		return "POST"
	case MethodOptions:
		return "OPTIONS"
	default:
		return "UNKNOWN"
	}
}

// ParseMethod maps a request-line token to a Method.
// A single trailing space is tolerated, as left behind by naive line splitting.
func ParseMethod(token []byte) (Method, bool) {
	if n := len(token); n > 0 && token[n-1] == ' ' {
		token = token[:n-1]
	}
	switch string(token) {
	case "GET":
		return MethodGet, true
	case "POST":
		return MethodPost, true
	case "OPTIONS":
		return MethodOptions, true
	}
	return 0, false
}

// MarshalJSON encodes the method as its wire token.
func (m Method) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON decodes a wire token.
func (m *Method) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, ok := ParseMethod([]byte(s))
	if !ok {
		return fmt.Errorf("protocol: unknown method %q", s)
	}
	*m = parsed
	return nil
}
