// Package sse implements the upstream-agnostic server-sent-event framing
// rule from spec §4.2.5: accumulate bytes, split on "\n", pair "event:"
// lines with the "data:" line that follows, and treat a data body of
// "[DONE]" as a terminal sentinel.
package sse

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// Event is one parsed SSE event.
type Event struct {
	Name string // from an "event:" line, if any
	Data string // from the "data:" line
	Done bool   // true when Data == "[DONE]"
}

// Reader incrementally parses an SSE byte stream into Events.
type Reader struct {
	scanner    *bufio.Scanner
	pendingEvt string
}

// NewReader wraps r in a line-oriented SSE frame reader.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Reader{scanner: scanner}
}

// Next returns the next event, or io.EOF when the stream ends. An
// "event:" line with no following "data:" line is held until one arrives;
// JSON-parse failures are the caller's concern (per §4.2.5, they are
// skipped per-event, not fatal to the stream).
func (r *Reader) Next() (Event, error) {
	for r.scanner.Scan() {
		line := r.scanner.Text()
		line = strings.TrimRight(line, "\r")

		switch {
		case strings.HasPrefix(line, "event:"):
			r.pendingEvt = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			evt := Event{Name: r.pendingEvt, Data: data, Done: data == "[DONE]"}
			r.pendingEvt = ""
			return evt, nil
		default:
			// blank line (event separator) or unknown field: ignore.
			continue
		}
	}
	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

// Frame serializes an Anthropic-dialect SSE event for the response written
// back to the child CLI: "event: <name>\ndata: <json>\n\n".
func Frame(name string, data []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("event: ")
	buf.WriteString(name)
	buf.WriteString("\ndata: ")
	buf.Write(data)
	buf.WriteString("\n\n")
	return buf.Bytes()
}
