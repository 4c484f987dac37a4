package model

import (
	"encoding/json"
	"fmt"
)

// EventType is the tag carried by a live stream event.
type EventType string

const (
	EventSpeakerChange      EventType = "speaker_change"
	EventMessageStreamStart EventType = "message_stream_start"
	EventMessageStreamChunk EventType = "message_stream_chunk"
	EventMessageStreamEnd   EventType = "message_stream_end"
	EventRoundStart         EventType = "round_start"
	EventRoundEnd           EventType = "round_end"
	EventRoundStartUpper    EventType = "ROUND_START"
	EventRoundEndUpper      EventType = "ROUND_END"
	EventFinalizeStart      EventType = "finalize_start"
	EventFinalizeDone       EventType = "finalize_done"
	EventSessionEnd         EventType = "session_end"
	EventStopConfirm        EventType = "stop_confirm"
	EventError              EventType = "error"

	// EventMessage is assigned to frames that carry no type at all.
	EventMessage EventType = "message"
)

// IsRoundStart reports whether the event opens a round, in either case.
func (t EventType) IsRoundStart() bool {
	return t == EventRoundStart || t == EventRoundStartUpper
}

// IsRoundEnd reports whether the event closes a round, in either case.
func (t EventType) IsRoundEnd() bool {
	return t == EventRoundEnd || t == EventRoundEndUpper
}

// StreamEvent is one typed record from the live stream. ID increases strictly
// within a session and is what resumption keys on.
type StreamEvent struct {
	ID   uint64          `json:"id"`
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Decode unmarshals the event payload into v.
func (e *StreamEvent) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %d (%s): empty payload", e.ID, e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("event %d (%s): decoding payload: %w", e.ID, e.Type, err)
	}
	return nil
}

// SpeakerChange announces whose turn it is.
type SpeakerChange struct {
	ActiveSpeaker Role `json:"active_speaker"`
}

// StreamStart opens a streaming placeholder for role.
type StreamStart struct {
	Role       Role  `json:"role"`
	RoundIndex int   `json:"round_index"`
	Phase      Phase `json:"phase"`
}

// StreamChunk carries an incremental piece of text.
type StreamChunk struct {
	Text string `json:"text"`
}

// StreamEnd carries the permanent id of the finished message.
type StreamEnd struct {
	MessageID string `json:"message_id"`
}

// RoundBoundary is the payload of round start and end events. On round end
// the payload is the full GateData; these fields are the shared subset.
// RoundIndex is nil when the event does not name a round; round 0 is a real
// round.
type RoundBoundary struct {
	RoundIndex *int  `json:"round_index"`
	Phase      Phase `json:"phase"`
}

// StopConfirm asks the user whether to stop early.
type StopConfirm struct {
	Trigger string `json:"trigger"`
}

// StreamError is the payload of an error event.
type StreamError struct {
	Message string `json:"message"`
}
