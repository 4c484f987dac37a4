package gate

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/alfredjeanlab/roundtable/internal/model"
)

func newTestRouter() *Router {
	return NewRouter(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func event(id uint64, typ model.EventType, data string) model.StreamEvent {
	return model.StreamEvent{ID: id, Type: typ, Data: json.RawMessage(data)}
}

func TestRouter_RoundEndSetsThenRoundStartClears(t *testing.T) {
	r := newTestRouter()

	if !r.Handle(event(1, model.EventRoundEndUpper, `{
		"round_index": 1,
		"phase": "USER_GATE",
		"decision_summary": "Ship the MVP",
		"open_issues": ["budget"],
		"verifier_gate_status": "No-Go"
	}`)) {
		t.Fatal("ROUND_END not handled")
	}
	g := r.Current()
	if g == nil {
		t.Fatal("Current() = nil after gate round end")
	}
	if g.RoundIndex != 1 || g.VerifierGateStatus != model.VerifierNoGo {
		t.Errorf("gate = %+v", g)
	}
	if len(g.OpenIssues) != 1 || g.OpenIssues[0] != "budget" {
		t.Errorf("OpenIssues = %v, want [budget]", g.OpenIssues)
	}

	if !r.Handle(event(2, model.EventRoundStartUpper, `{"round_index": 2}`)) {
		t.Fatal("ROUND_START not handled")
	}
	if g := r.Current(); g != nil {
		t.Errorf("Current() = %+v after round start, want nil", g)
	}
}

func TestRouter_LowercaseEvents(t *testing.T) {
	r := newTestRouter()
	r.Handle(event(1, model.EventRoundEnd, `{"round_index": 3, "phase": "end_gate", "open_issues": []}`))
	g := r.Current()
	if g == nil || g.Phase != model.PhaseEndGate {
		t.Fatalf("Current() = %+v, want END_GATE snapshot", g)
	}
	r.Handle(event(2, model.EventRoundStart, `{}`))
	if r.Current() != nil {
		t.Error("round_start should clear the slot")
	}
}

func TestRouter_NonGatePhaseLeavesSlot(t *testing.T) {
	r := newTestRouter()
	r.Handle(event(1, model.EventRoundEndUpper, `{"round_index": 1, "phase": "USER_GATE", "decision_summary": "keep"}`))
	r.Handle(event(2, model.EventRoundEndUpper, `{"round_index": 1, "phase": "VERIFIER_REVIEW", "decision_summary": "ignore"}`))

	g := r.Current()
	if g == nil || g.DecisionSummary != "keep" {
		t.Errorf("Current() = %+v, want original snapshot", g)
	}

	empty := newTestRouter()
	empty.Handle(event(1, model.EventRoundEndUpper, `{"round_index": 1, "phase": "A3_SYN_1"}`))
	if empty.Current() != nil {
		t.Error("non-gate round end should not fill an empty slot")
	}
}

func TestRouter_MalformedKeepsSlot(t *testing.T) {
	r := newTestRouter()
	r.Handle(event(1, model.EventRoundEndUpper, `{"round_index": 1, "phase": "USER_GATE", "decision_summary": "keep"}`))

	for _, data := range []string{`{"round_index": "one"`, `[1,2]`, ``} {
		r.Handle(event(2, model.EventRoundEndUpper, data))
		if g := r.Current(); g == nil || g.DecisionSummary != "keep" {
			t.Errorf("after malformed %q, Current() = %+v", data, g)
		}
	}
}

func TestRouter_VerifierStatusNormalized(t *testing.T) {
	r := newTestRouter()
	r.Handle(event(1, model.EventRoundEndUpper, `{"round_index": 1, "phase": "USER_GATE"}`))
	g := r.Current()
	if g.VerifierGateStatus != model.VerifierPending {
		t.Errorf("VerifierGateStatus = %q, want pending", g.VerifierGateStatus)
	}
	if g.OpenIssues == nil {
		t.Error("OpenIssues should be empty, not nil")
	}
}

func TestRouter_IgnoresOtherEvents(t *testing.T) {
	r := newTestRouter()
	r.Handle(event(1, model.EventRoundEndUpper, `{"round_index": 1, "phase": "USER_GATE"}`))
	if r.Handle(event(2, model.EventSpeakerChange, `{"active_speaker": "agent1"}`)) {
		t.Error("speaker_change should not be handled")
	}
	if r.Current() == nil {
		t.Error("unrelated event cleared the slot")
	}
}

func TestRouter_CurrentReturnsCopy(t *testing.T) {
	r := newTestRouter()
	r.Handle(event(1, model.EventRoundEndUpper, `{"round_index": 1, "phase": "USER_GATE", "open_issues": ["a"]}`))
	g := r.Current()
	g.OpenIssues[0] = "mutated"
	g.DecisionSummary = "mutated"
	if again := r.Current(); again.OpenIssues[0] != "a" || again.DecisionSummary != "" {
		t.Errorf("slot mutated through Current(): %+v", again)
	}
}

func TestRouter_Reset(t *testing.T) {
	r := newTestRouter()
	r.Handle(event(1, model.EventRoundEndUpper, `{"round_index": 1, "phase": "USER_GATE"}`))
	r.Reset()
	if r.Current() != nil {
		t.Error("Reset should clear the slot")
	}
}
