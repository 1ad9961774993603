package llm

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Decoder turns raw byte chunks of a server-sent event stream into Events.
// It is stateful across chunks: incomplete lines (and therefore any
// multi-byte UTF-8 sequence split across a chunk boundary) stay buffered
// as raw bytes until the terminating newline arrives. Continuation bytes
// can never equal '\n', so splitting on newlines at the byte level never
// corrupts a partial code point.
type Decoder struct {
	buf  []byte
	done bool
}

// NewDecoder returns a decoder ready for one turn.
func NewDecoder() *Decoder {
	return &Decoder{}
}

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"
)

// Feed consumes one chunk and returns the events decoded from every
// complete line it finishes. Lines are processed in arrival order; once
// the done sentinel is seen, remaining lines are dropped.
func (d *Decoder) Feed(chunk []byte) []Event {
	if d.done || len(chunk) == 0 {
		return nil
	}
	d.buf = append(d.buf, chunk...)

	var events []Event
	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			break
		}
		line := string(d.buf[:idx])
		d.buf = d.buf[idx+1:]
		events = d.decodeLine(events, line)
		if d.done {
			d.buf = nil
			break
		}
	}
	return events
}

// Finish flushes the trailing unterminated line, if any. Call it once
// when the underlying stream ends; a turn that never saw the done
// sentinel still terminates normally.
func (d *Decoder) Finish() []Event {
	if d.done || len(d.buf) == 0 {
		return nil
	}
	line := string(d.buf)
	d.buf = nil
	return d.decodeLine(nil, line)
}

// Done reports whether the done sentinel has been observed.
func (d *Decoder) Done() bool {
	return d.done
}

func (d *Decoder) decodeLine(events []Event, line string) []Event {
	line = strings.TrimSuffix(line, "\r")
	if !strings.HasPrefix(line, dataPrefix) {
		// Keep-alive blanks, comments, event-name lines: protocol noise.
		return events
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == "" {
		return events
	}
	if payload == doneSentinel {
		d.done = true
		return append(events, Event{Type: EventDone})
	}

	var frame sseFrame
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		return append(events, Event{Type: EventMalformed})
	}
	if len(frame.Output) == 0 {
		return append(events, Event{Type: EventMalformed})
	}

	// Only the first output item is inspected; that is all the wire
	// format ever populates for chat turns.
	item := frame.Output[0]
	switch item.Type {
	case "message", "message_delta":
		for _, part := range item.Content {
			if part.Type != "output_text" && part.Type != "input_text" {
				continue
			}
			if part.Text == "" {
				continue
			}
			events = append(events, Event{Type: EventTextDelta, Text: part.Text})
		}
		return events
	default:
		// Unknown discriminators are ignored rather than fatal; some
		// transports emit auxiliary frames mid-stream.
		return append(events, Event{Type: EventMalformed})
	}
}

// sseFrame is the JSON payload of a single data line.
type sseFrame struct {
	Output []outputItem `json:"output"`
}

type outputItem struct {
	Type    string        `json:"type"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
