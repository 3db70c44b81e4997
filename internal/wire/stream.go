package wire

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Kind names the event variants carried on a capture stream.
type Kind string

const (
	KindMessage  Kind = "message"
	KindTopology Kind = "topology"
	KindClear    Kind = "clear"
)

// Event is one entry of a capture stream.
type Event struct {
	Kind     Kind
	Message  *Message
	Topology *Topology
}

// MessageEvent wraps m as a stream event.
func MessageEvent(m Message) Event {
	return Event{Kind: KindMessage, Message: &m}
}

// TopologyEvent wraps t as a stream event.
func TopologyEvent(t Topology) Event {
	return Event{Kind: KindTopology, Topology: &t}
}

// ClearEvent is the full history reset.
func ClearEvent() Event {
	return Event{Kind: KindClear}
}

type envelope struct {
	Topology json.RawMessage `json:"topology,omitempty"`
	Clear    bool            `json:"clear,omitempty"`
}

// MarshalEvent encodes ev as one JSON Lines entry (without the newline).
func MarshalEvent(ev Event) ([]byte, error) {
	switch ev.Kind {
	case KindMessage:
		if ev.Message == nil {
			return nil, fmt.Errorf("message event without message")
		}
		return json.Marshal(ev.Message)
	case KindTopology:
		if ev.Topology == nil {
			return nil, fmt.Errorf("topology event without topology")
		}
		return json.Marshal(struct {
			Topology *Topology `json:"topology"`
		}{ev.Topology})
	case KindClear:
		return []byte(`{"clear":true}`), nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
}

// DecodeEvent validates and decodes one JSON Lines entry.
func (v *Validator) DecodeEvent(line []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return Event{}, &ValidationError{Kind: "event", Message: "malformed JSON: " + err.Error()}
	}
	switch {
	case env.Clear:
		return ClearEvent(), nil
	case len(env.Topology) > 0:
		t, err := v.DecodeTopology(env.Topology)
		if err != nil {
			return Event{}, err
		}
		return TopologyEvent(t), nil
	default:
		m, err := v.DecodeMessage(line)
		if err != nil {
			return Event{}, err
		}
		return MessageEvent(m), nil
	}
}

// LineError attaches a line number to a stream decoding failure.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Reader decodes a JSON Lines capture stream. Blank lines are skipped.
// A malformed line yields a *LineError and the reader stays usable, so
// callers can log and continue.
type Reader struct {
	scanner *bufio.Scanner
	v       *Validator
	line    int
}

// maxLineSize bounds a single captured event, payload included.
const maxLineSize = 8 << 20

// NewReader creates a Reader over r.
func NewReader(r io.Reader, v *Validator) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Reader{scanner: s, v: v}
}

// Next returns the next event, or io.EOF when the stream is exhausted.
func (r *Reader) Next() (Event, error) {
	for r.scanner.Scan() {
		r.line++
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		ev, err := r.v.DecodeEvent(line)
		if err != nil {
			return Event{}, &LineError{Line: r.line, Err: err}
		}
		return ev, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Event{}, fmt.Errorf("read capture stream: %w", err)
	}
	return Event{}, io.EOF
}
