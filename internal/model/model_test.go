package model

import (
	"encoding/json"
	"testing"
)

func TestStatus_IsValid(t *testing.T) {
	for _, tc := range []struct {
		status Status
		want   bool
	}{
		{StatusActive, true},
		{StatusFinalizing, true},
		{StatusFinalized, true},
		{Status(""), false},
		{Status("closed"), false},
	} {
		if got := tc.status.IsValid(); got != tc.want {
			t.Errorf("Status(%q).IsValid() = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestRole_IsValid(t *testing.T) {
	for _, tc := range []struct {
		role Role
		want bool
	}{
		{RoleUser, true},
		{RoleAgent1, true},
		{RoleVerifier, true},
		{RoleJudge, true},
		{RolePRD, true},
		{Role(""), false},
		{Role("moderator"), false},
	} {
		if got := tc.role.IsValid(); got != tc.want {
			t.Errorf("Role(%q).IsValid() = %v, want %v", tc.role, got, tc.want)
		}
	}
}

func TestAction_IsValid(t *testing.T) {
	for _, tc := range []struct {
		action Action
		want   bool
	}{
		{ActionSkip, true},
		{ActionExtendOnce, true},
		{ActionSubmitFacts, true},
		{Action("retry"), false},
		{Action(""), false},
	} {
		if got := tc.action.IsValid(); got != tc.want {
			t.Errorf("Action(%q).IsValid() = %v, want %v", tc.action, got, tc.want)
		}
	}
}

func TestPhase_Normalize(t *testing.T) {
	for _, tc := range []struct {
		phase Phase
		want  Phase
	}{
		{Phase("finalized"), PhaseFinalized},
		{Phase(" USER_GATE "), PhaseUserGate},
		{PhaseA1Plan, PhaseA1Plan},
	} {
		if got := tc.phase.Normalize(); got != tc.want {
			t.Errorf("Phase(%q).Normalize() = %q, want %q", tc.phase, got, tc.want)
		}
	}
}

func TestPhase_IsGate(t *testing.T) {
	for _, tc := range []struct {
		phase Phase
		want  bool
	}{
		{PhaseUserGate, true},
		{PhaseEndGate, true},
		{Phase("end_gate"), true},
		{PhaseFactsGate, false},
		{PhaseActive, false},
	} {
		if got := tc.phase.IsGate(); got != tc.want {
			t.Errorf("Phase(%q).IsGate() = %v, want %v", tc.phase, got, tc.want)
		}
	}
}

func TestSession_Track(t *testing.T) {
	for _, tc := range []struct {
		name string
		s    Session
		want Track
	}{
		{"project legal", Session{ProjectType: "legal"}, TrackLegal},
		{"project dev", Session{ProjectType: "devproject"}, TrackDev},
		{"project general", Session{ProjectType: "general", Category: CategoryLegal}, TrackGeneral},
		{"legal category", Session{Category: CategoryLegal}, TrackLegal},
		{"case type", Session{CaseType: "civil"}, TrackLegal},
		{"default", Session{Category: CategoryMarketing}, TrackGeneral},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.s.Track(); got != tc.want {
				t.Errorf("Track() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSession_IsFinalized(t *testing.T) {
	if (&Session{Status: StatusActive, Phase: PhaseActive}).IsFinalized() {
		t.Error("active session reported finalized")
	}
	if !(&Session{Status: StatusFinalized}).IsFinalized() {
		t.Error("finalized status not reported finalized")
	}
	if !(&Session{Status: StatusActive, Phase: PhaseFinalized}).IsFinalized() {
		t.Error("FINALIZED phase not reported finalized")
	}
}

func TestMessageRecord_ToMessage(t *testing.T) {
	rec := MessageRecord{
		ID:          "m1",
		SessionID:   "s1",
		Role:        RoleAgent2,
		ContentText: "critique",
		RoundIndex:  2,
		Phase:       PhaseA2Crit1,
	}
	got := rec.ToMessage()
	want := Message{ID: "m1", Role: RoleAgent2, Content: "critique", RoundIndex: 2, Phase: PhaseA2Crit1}
	if got != want {
		t.Errorf("ToMessage() = %+v, want %+v", got, want)
	}
}

func TestVerifierStatus_Normalize(t *testing.T) {
	for _, tc := range []struct {
		in   VerifierStatus
		want VerifierStatus
	}{
		{VerifierGo, VerifierGo},
		{VerifierNoGo, VerifierNoGo},
		{VerifierConditional, VerifierConditional},
		{VerifierStatus(""), VerifierPending},
		{VerifierStatus("maybe"), VerifierPending},
	} {
		if got := tc.in.Normalize(); got != tc.want {
			t.Errorf("VerifierStatus(%q).Normalize() = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestGateData_Clone(t *testing.T) {
	var nilGate *GateData
	if nilGate.Clone() != nil {
		t.Fatal("Clone of nil should be nil")
	}
	g := &GateData{RoundIndex: 1, OpenIssues: []string{"pricing"}}
	c := g.Clone()
	c.OpenIssues[0] = "changed"
	if g.OpenIssues[0] != "pricing" {
		t.Errorf("Clone shares OpenIssues backing array")
	}
}

func TestStreamEvent_Decode(t *testing.T) {
	ev := StreamEvent{ID: 7, Type: EventMessageStreamChunk, Data: json.RawMessage(`{"text":"hel"}`)}
	var chunk StreamChunk
	if err := ev.Decode(&chunk); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if chunk.Text != "hel" {
		t.Errorf("Text = %q, want %q", chunk.Text, "hel")
	}

	bad := StreamEvent{ID: 8, Type: EventMessageStreamChunk, Data: json.RawMessage(`{"text":`)}
	if err := bad.Decode(&chunk); err == nil {
		t.Error("expected error for truncated payload")
	}
	empty := StreamEvent{ID: 9, Type: EventSpeakerChange}
	if err := empty.Decode(&chunk); err == nil {
		t.Error("expected error for empty payload")
	}
}

func TestEventType_RoundBoundaries(t *testing.T) {
	if !EventRoundStartUpper.IsRoundStart() || !EventRoundStart.IsRoundStart() {
		t.Error("both round start spellings should match")
	}
	if !EventRoundEndUpper.IsRoundEnd() || !EventRoundEnd.IsRoundEnd() {
		t.Error("both round end spellings should match")
	}
	if EventRoundEnd.IsRoundStart() {
		t.Error("round_end is not a round start")
	}
}

func TestFactsResponse_NeedsFactsGate(t *testing.T) {
	for _, tc := range []struct {
		name string
		r    FactsResponse
		want bool
	}{
		{"flag set", FactsResponse{FactsGateRequired: true}, true},
		{"clean", FactsResponse{ConfirmedFacts: []string{"a"}}, false},
		{"two unresolved", FactsResponse{DisputedFacts: []string{"a"}, MissingFactsQuestions: []string{"b"}}, false},
		{"three unresolved", FactsResponse{DisputedFacts: []string{"a", "b"}, MissingFactsQuestions: []string{"c"}}, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.r.NeedsFactsGate(); got != tc.want {
				t.Errorf("NeedsFactsGate() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDirectives_IsEmpty(t *testing.T) {
	var d *Directives
	if !d.IsEmpty() {
		t.Error("nil directives should be empty")
	}
	if !(&Directives{}).IsEmpty() {
		t.Error("zero directives should be empty")
	}
	if (&Directives{Exclusions: []string{"x"}}).IsEmpty() {
		t.Error("directives with exclusions should not be empty")
	}
}
