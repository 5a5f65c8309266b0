package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ANSI escape sequences used by the terminal renderer.
const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiGray   = "\033[90m"
)

// colorEnabled controls whether Format emits ANSI sequences.
var colorEnabled = true

// DisableColors turns off ANSI output, e.g. when stderr is not a terminal.
func DisableColors() {
	colorEnabled = false
}

// EnableColors turns ANSI output back on.
func EnableColors() {
	colorEnabled = true
}

func paint(seq, text string) string {
	if !colorEnabled || text == "" {
		return text
	}
	return seq + text + ansiReset
}

func red(text string) string    { return paint(ansiRed, text) }
func yellow(text string) string { return paint(ansiYellow, text) }
func cyan(text string) string   { return paint(ansiCyan, text) }
func gray(text string) string   { return paint(ansiGray, text) }
func bold(text string) string   { return paint(ansiBold, text) }

// detailWidth is the column at which Detail is wrapped.
const detailWidth = 70

// Format renders the error for a terminal. Sections appear in order and are
// skipped when empty: header, location with a source snippet, detail,
// cause, hint, example.
func (e *BareError) Format() string {
	var b strings.Builder

	title := e.Message
	if e.Code != "" {
		title = e.Code + ": " + e.Message
	}
	fmt.Fprintf(&b, "\n%s %s\n\n", red(bold("ERROR")), bold(title))

	if e.Location != nil {
		fmt.Fprintf(&b, "  %s\n\n", cyan(e.Location.String()))
		if len(e.Context) > 0 {
			e.writeSnippet(&b)
			b.WriteString("\n")
		}
	}

	if lines := wrapText(e.Detail, detailWidth); len(lines) > 0 {
		for _, line := range lines {
			fmt.Fprintf(&b, "  %s\n", line)
		}
		b.WriteString("\n")
	}

	if e.Wrapped != nil {
		fmt.Fprintf(&b, "  %s%s\n\n", yellow("Cause: "), e.Wrapped.Error())
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "  %s%s\n\n", cyan("Hint: "), e.Suggestion)
	}
	if e.Example != "" {
		fmt.Fprintf(&b, "  %s\n", cyan("Example:"))
		for _, line := range strings.Split(e.Example, "\n") {
			fmt.Fprintf(&b, "    %s\n", line)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// writeSnippet prints the context lines with numbers, marking the error
// line with an arrow and, when known, the column with a caret.
func (e *BareError) writeSnippet(w io.Writer) {
	first := e.contextStart
	if first < 1 {
		first = max(e.Location.Line-contextRadius, 1)
	}
	bar := gray(" │ ")
	for i, text := range e.Context {
		n := first + i
		if n != e.Location.Line {
			fmt.Fprintf(w, "    %4d%s%s\n", n, bar, text)
			continue
		}
		fmt.Fprintf(w, "  %s%4d%s%s\n", red("→ "), n, bar, text)
		if col := e.Location.Column; col > 0 {
			fmt.Fprintf(w, "        %s%s%s\n", gray("│ "), strings.Repeat(" ", col-1), red("^"))
		}
	}
}

// FormatCompact returns "file:line:col: CODE: message", omitting the parts
// that are not set.
func (e *BareError) FormatCompact() string {
	parts := make([]string, 0, 3)
	if e.Location != nil {
		parts = append(parts, e.Location.String())
	}
	if e.Code != "" {
		parts = append(parts, e.Code)
	}
	parts = append(parts, e.Message)
	return strings.Join(parts, ": ")
}

type jsonLocation struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column,omitempty"`
}

type jsonError struct {
	Code       string        `json:"code,omitempty"`
	Category   Category      `json:"category"`
	Message    string        `json:"message"`
	Detail     string        `json:"detail,omitempty"`
	Location   *jsonLocation `json:"location,omitempty"`
	Suggestion string        `json:"suggestion,omitempty"`
	Cause      string        `json:"cause,omitempty"`
}

// FormatJSON returns the error as a single-line JSON object for tooling.
func (e *BareError) FormatJSON() string {
	out := jsonError{
		Code:       e.Code,
		Category:   e.Category,
		Message:    e.Message,
		Detail:     e.Detail,
		Suggestion: e.Suggestion,
	}
	if l := e.Location; l != nil {
		out.Location = &jsonLocation{File: l.File, Line: l.Line, Column: l.Column}
	}
	if e.Wrapped != nil {
		out.Cause = e.Wrapped.Error()
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf(`{"message":%q}`, e.Error())
	}
	return string(data)
}

// wrapText breaks text into lines of at most width bytes at word
// boundaries. A single word longer than width gets a line of its own.
func wrapText(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	lines := []string{words[0]}
	for _, word := range words[1:] {
		last := &lines[len(lines)-1]
		if len(*last)+1+len(word) > width {
			lines = append(lines, word)
			continue
		}
		*last += " " + word
	}
	return lines
}

// PrintError writes err to stderr, using Format when err carries a
// *BareError.
func PrintError(err error) {
	var be *BareError
	if errors.As(err, &be) {
		fmt.Fprint(os.Stderr, be.Format())
		return
	}
	fmt.Fprintf(os.Stderr, "\n%s %s\n\n", red(bold("ERROR")), err.Error())
}
