package pipeline

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Tailen/brickblock/schema"
)

// EventStatus tags a progress event.
type EventStatus string

const (
	EventStart       EventStatus = "onProgressStartMessage"
	EventCompleted   EventStatus = "onFunctionCompleted"
	EventProgressEnd EventStatus = "onProgressEndMessage"
	EventEnd         EventStatus = "End"
	EventException   EventStatus = "Exception"
)

// Event is one progress notification emitted by Stream. Data holds the
// current value as JSON text for struct instances, its printed form for other
// values, and nil on the terminal End event.
type Event struct {
	Message string      `json:"message"`
	Status  EventStatus `json:"status"`
	Data    any         `json:"data"`
}

// Frame renders the event as a server-sent-events frame: "data: <json>\n\n".
func (e Event) Frame() ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", e.Status, err)
	}
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, "\n\n"...)
	return frame, nil
}

// WriteFrames writes every event from events to w until the channel is
// closed. If w has a Flush method (as http.ResponseWriter usually does) it is
// called after each frame.
func WriteFrames(w io.Writer, events <-chan Event) error {
	flusher, _ := w.(interface{ Flush() })
	for e := range events {
		frame, err := e.Frame()
		if err != nil {
			return err
		}
		if _, err := w.Write(frame); err != nil {
			return fmt.Errorf("write %s event: %w", e.Status, err)
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	return nil
}

// eventData renders the current value for a progress event.
func eventData(v any) any {
	if v == nil {
		return nil
	}
	if schema.IsInstance(v) {
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(v)
}

// rawData renders the current value as a mapping where possible.
func rawData(v any) any {
	if schema.IsInstance(v) {
		if m, err := schema.Dump(v); err == nil {
			return m
		}
	}
	return v
}
