package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/roundtable/internal/model"
)

// frame is one raw event-stream record, accumulated line by line until a
// blank line dispatches it.
type frame struct {
	id    string
	hasID bool
	event string
	data  []string
}

func (f *frame) empty() bool {
	return !f.hasID && f.event == "" && len(f.data) == 0
}

func (f *frame) reset() {
	*f = frame{}
}

// line feeds one line of the stream into the frame. It reports true when the
// line was blank and the frame is ready to dispatch.
func (f *frame) line(l string) bool {
	if l == "" {
		return true
	}
	if strings.HasPrefix(l, ":") {
		return false
	}
	field, value, _ := strings.Cut(l, ":")
	value = strings.TrimPrefix(value, " ")
	switch field {
	case "id":
		// An empty id resets the last id; the event is delivered without one.
		f.id = value
		f.hasID = strings.TrimSpace(value) != ""
	case "event":
		f.event = value
	case "data":
		f.data = append(f.data, value)
	}
	return false
}

var errNoData = errors.New("frame has no data")

// envelope is the {type, data} wrapper some producers put around payloads.
type envelope struct {
	Type *string         `json:"type"`
	Data json.RawMessage `json:"data"`
}

// decode turns a dispatched frame into a StreamEvent. The event type comes
// from the event field, then from a JSON "type" key, and defaults to
// "message".
func (f *frame) decode() (model.StreamEvent, error) {
	var ev model.StreamEvent
	if f.hasID {
		id, err := strconv.ParseUint(strings.TrimSpace(f.id), 10, 64)
		if err != nil {
			return ev, fmt.Errorf("invalid event id %q: %w", f.id, err)
		}
		ev.ID = id
	}
	if len(f.data) == 0 {
		return ev, errNoData
	}
	raw := []byte(strings.Join(f.data, "\n"))
	if !json.Valid(raw) {
		return ev, fmt.Errorf("event %q: payload is not valid JSON", f.id)
	}
	ev.Data = raw
	ev.Type = model.EventType(f.event)

	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '{' {
		var env envelope
		if err := json.Unmarshal(raw, &env); err == nil && env.Type != nil {
			if ev.Type == "" {
				ev.Type = model.EventType(*env.Type)
			}
			if len(env.Data) > 0 {
				ev.Data = env.Data
			}
		}
	}
	if ev.Type == "" {
		ev.Type = model.EventMessage
	}
	return ev, nil
}
