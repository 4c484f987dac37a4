package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/roundtable/internal/model"
)

type fakeHistory struct {
	recs []model.MessageRecord
	err  error
}

func (f *fakeHistory) LoadHistory(context.Context, string) ([]model.MessageRecord, error) {
	return f.recs, f.err
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

func TestTranscript_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := Transcript(context.Background(), &fakeHistory{}, "s1", &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := nonEmptyLines(buf.String())
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (header only), got %d", len(lines))
	}
	var h Header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.Version != FormatVersion || h.Type != "header" || h.SessionID != "s1" || h.MessageCount != 0 || h.Session != nil {
		t.Fatalf("unexpected header: %+v", h)
	}
}

func TestTranscript_WithMessages(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	src := &fakeHistory{recs: []model.MessageRecord{
		{ID: "m1", Role: model.RoleUser, ContentText: "<b>hi</b>", CreatedAt: now},
		{ID: "m2", SessionID: "s1", Role: model.RoleAgent1, ContentText: "plan", RoundIndex: 1, Phase: model.PhaseA1Plan, CreatedAt: now},
	}}
	sess := &model.Session{ID: "s1", Category: model.CategoryDev, Topic: "billing"}

	var buf bytes.Buffer
	if err := Transcript(context.Background(), src, "s1", &buf, WithSession(sess)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := nonEmptyLines(buf.String())
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d:\n%s", len(lines), buf.String())
	}
	var h Header
	json.Unmarshal([]byte(lines[0]), &h)
	if h.MessageCount != 2 || h.Session == nil || h.Session.Topic != "billing" {
		t.Errorf("header = %+v", h)
	}
	if !strings.Contains(lines[1], "<b>hi</b>") {
		t.Errorf("HTML should not be escaped: %s", lines[1])
	}

	var r struct {
		Type string              `json:"type"`
		Data model.MessageRecord `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &r); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if r.Type != "message" || r.Data.ID != "m1" || r.Data.SessionID != "s1" {
		t.Errorf("record = %+v", r)
	}
}

func TestTranscript_SourceError(t *testing.T) {
	boom := errors.New("boom")
	var buf bytes.Buffer
	if err := Transcript(context.Background(), &fakeHistory{err: boom}, "s1", &buf); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if buf.Len() != 0 {
		t.Error("nothing should be written on error")
	}
}

func TestObjectName(t *testing.T) {
	if got := ObjectName("abc"); got != "abc.jsonl" {
		t.Errorf("ObjectName = %q", got)
	}
}
