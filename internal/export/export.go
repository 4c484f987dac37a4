// Package export writes session transcripts as JSONL and ships them to
// archive destinations.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/roundtable/internal/model"
)

// FormatVersion is written in every transcript header.
const FormatVersion = "1"

// HistorySource returns the persisted messages of a session in creation
// order.
type HistorySource interface {
	LoadHistory(ctx context.Context, sessionID string) ([]model.MessageRecord, error)
}

// Header is the first JSONL record of a transcript.
type Header struct {
	Version      string         `json:"version"`
	Type         string         `json:"type"`
	Timestamp    time.Time      `json:"timestamp"`
	SessionID    string         `json:"session_id"`
	MessageCount int            `json:"message_count"`
	Session      *model.Session `json:"session,omitempty"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Option configures a transcript.
type Option func(*Header)

// WithSession embeds session metadata in the header.
func WithSession(s *model.Session) Option {
	return func(h *Header) { h.Session = s }
}

// Transcript writes a header followed by one "message" record per persisted
// message of sessionID to w.
func Transcript(ctx context.Context, src HistorySource, sessionID string, w io.Writer, opts ...Option) error {
	recs, err := src.LoadHistory(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	h := Header{
		Version:      FormatVersion,
		Type:         "header",
		Timestamp:    time.Now().UTC(),
		SessionID:    sessionID,
		MessageCount: len(recs),
	}
	for _, opt := range opts {
		opt(&h)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(h); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	for i := range recs {
		if recs[i].SessionID == "" {
			recs[i].SessionID = sessionID
		}
		if err := enc.Encode(record{Type: "message", Data: &recs[i]}); err != nil {
			return fmt.Errorf("encode message %s: %w", recs[i].ID, err)
		}
	}
	return nil
}

// ObjectName returns the archive name of a session's transcript.
func ObjectName(sessionID string) string {
	return sessionID + ".jsonl"
}
