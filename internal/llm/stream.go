package llm

import (
	"bufio"
	"io"
	"strings"
)

// maxLineSize bounds a single SSE or NDJSON line
const maxLineSize = 1 << 20

// SSEEvent is one server-sent event
type SSEEvent struct {
	Event string
	Data  string
}

// ReadSSE calls fn for every event in an event stream until EOF, an error
// from fn, or a read error. Multi-line data fields are joined with "\n".
func ReadSSE(r io.Reader, fn func(SSEEvent) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineSize)

	var event string
	var data []string

	dispatch := func() error {
		if len(data) == 0 {
			event = ""
			return nil
		}
		ev := SSEEvent{Event: event, Data: strings.Join(data, "\n")}
		event, data = "", data[:0]
		return fn(ev)
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if err := dispatch(); err != nil {
				return err
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			// comment / keep-alive
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			event = value
		case "data":
			data = append(data, value)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return dispatch()
}

// ReadLines calls fn for every non-empty line, used for NDJSON streams
func ReadLines(r io.Reader, fn func(line []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}
