package phase

import (
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/alfredjeanlab/roundtable/internal/model"
)

func newTestMachine() *Machine {
	return NewMachine(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestLookup(t *testing.T) {
	for _, tc := range []struct {
		phase       model.Phase
		wantInput   bool
		wantActions []model.Action
	}{
		{model.PhaseActive, true, nil},
		{model.PhaseA2Crit1, true, nil},
		{model.PhaseClaimantR1, true, nil},
		{"SOMETHING_NEW", true, nil},
		{model.PhaseUserGate, false, []model.Action{model.ActionSkip, model.ActionInput, model.ActionFinalize}},
		{"user_gate", false, []model.Action{model.ActionSkip, model.ActionInput, model.ActionFinalize}},
		{model.PhaseEndGate, false, []model.Action{model.ActionFinalize, model.ActionExtendOnce, model.ActionNewSession}},
		{model.PhaseFactsIntake, false, []model.Action{model.ActionSubmitFacts}},
		{model.PhaseFactsGate, false, []model.Action{model.ActionSubmitFacts}},
		{model.PhaseFactsStipulate, false, nil},
		{model.PhaseFinalizing, false, nil},
		{model.PhaseFinalized, false, nil},
		{"finalized", false, nil},
	} {
		t.Run(string(tc.phase), func(t *testing.T) {
			got := Lookup(tc.phase)
			if got.InputEnabled != tc.wantInput {
				t.Errorf("InputEnabled = %v, want %v", got.InputEnabled, tc.wantInput)
			}
			if !slices.Equal(got.Actions, tc.wantActions) {
				t.Errorf("Actions = %v, want %v", got.Actions, tc.wantActions)
			}
		})
	}
}

func TestLookup_ReturnsCopy(t *testing.T) {
	a := Lookup(model.PhaseUserGate)
	a.Actions[0] = model.ActionNewSession
	if Lookup(model.PhaseUserGate).Allows(model.ActionNewSession) {
		t.Error("mutating a lookup result changed the table")
	}
}

func TestFormFor(t *testing.T) {
	for _, tc := range []struct {
		track model.Track
		phase model.Phase
		want  Form
	}{
		{model.TrackGeneral, model.PhaseUserGate, FormSteering},
		{model.TrackDev, model.PhaseUserGate, FormDevGate},
		{model.TrackLegal, model.PhaseUserGate, FormLegalGate},
		{model.TrackGeneral, model.PhaseEndGate, FormEndGate},
		{model.TrackLegal, model.PhaseEndGate, FormEndGate},
		{model.TrackLegal, model.PhaseFactsIntake, FormFactsIntake},
		{model.TrackLegal, model.PhaseFactsGate, FormFactsGate},
		{model.TrackLegal, model.PhaseFactsStipulate, FormNone},
		{model.TrackGeneral, model.PhaseActive, FormNone},
		{model.TrackGeneral, model.PhaseFinalized, FormNone},
	} {
		if got := FormFor(tc.track, tc.phase); got != tc.want {
			t.Errorf("FormFor(%s, %s) = %s, want %s", tc.track, tc.phase, got, tc.want)
		}
	}
}

func TestMachine_EmptyLocksEverything(t *testing.T) {
	m := newTestMachine()
	if m.InputEnabled() || m.Allows(model.ActionSkip) || m.Form() != FormNone {
		t.Error("machine without a session should allow nothing")
	}
	if _, ok := m.Session(); ok {
		t.Error("Session() ok = true before Apply")
	}
	if m.ApplyBoundary(model.RoundBoundary{RoundIndex: round(1), Phase: model.PhaseUserGate}) {
		t.Error("ApplyBoundary before first snapshot should be a no-op")
	}
}

func TestMachine_ApplyNormalizesAndDetectsChange(t *testing.T) {
	m := newTestMachine()
	s := model.Session{ID: "s1", Status: model.StatusActive, RoundIndex: 1, Phase: "user_gate"}
	if !m.Apply(s) {
		t.Fatal("first Apply should change state")
	}
	if m.Apply(s) {
		t.Error("identical snapshot should not change state")
	}
	got, _ := m.Session()
	if got.Phase != model.PhaseUserGate {
		t.Errorf("Phase = %q, want USER_GATE", got.Phase)
	}
	if m.InputEnabled() || !m.Allows(model.ActionSkip) || m.Form() != FormSteering {
		t.Errorf("affordances = %+v form = %s", m.Affordances(), m.Form())
	}
}

func TestMachine_IgnoresLowerRound(t *testing.T) {
	m := newTestMachine()
	m.Apply(model.Session{ID: "s1", RoundIndex: 2, Phase: model.PhaseActive})
	if m.Apply(model.Session{ID: "s1", RoundIndex: 1, Phase: model.PhaseUserGate}) {
		t.Error("lower round snapshot should be ignored")
	}
	if got, _ := m.Session(); got.RoundIndex != 2 || got.Phase != model.PhaseActive {
		t.Errorf("session = %+v", got)
	}
	if !m.Apply(model.Session{ID: "s1", RoundIndex: 2, Phase: model.PhaseUserGate}) {
		t.Error("same round, new phase should apply")
	}
}

func TestMachine_FinalizedIsSticky(t *testing.T) {
	m := newTestMachine()
	m.Apply(model.Session{ID: "s1", RoundIndex: 3, Phase: model.PhaseEndGate})
	if !m.Apply(model.Session{ID: "s1", Status: model.StatusFinalized, RoundIndex: 3, Phase: model.PhaseEndGate}) {
		t.Fatal("finalized snapshot should apply")
	}
	if m.Apply(model.Session{ID: "s1", Status: model.StatusActive, RoundIndex: 4, Phase: model.PhaseActive}) {
		t.Error("non-finalized snapshot after finalization should be ignored")
	}
	a := m.Affordances()
	if a.InputEnabled || len(a.Actions) != 0 {
		t.Errorf("finalized affordances = %+v, want none", a)
	}
	if m.Form() != FormNone {
		t.Errorf("Form = %s, want none", m.Form())
	}
}

func TestMachine_ApplyBoundary(t *testing.T) {
	m := newTestMachine()
	m.Apply(model.Session{ID: "s1", Category: model.CategoryLegal, RoundIndex: 1, Phase: model.PhaseClaimantR1})

	if !m.ApplyBoundary(model.RoundBoundary{RoundIndex: round(1), Phase: model.PhaseUserGate}) {
		t.Fatal("round end into USER_GATE should apply")
	}
	if m.Form() != FormLegalGate {
		t.Errorf("Form = %s, want legal_gate", m.Form())
	}
	if !m.ApplyBoundary(model.RoundBoundary{RoundIndex: round(2)}) {
		t.Fatal("round start with a higher round should apply")
	}
	got, _ := m.Session()
	if got.RoundIndex != 2 || got.Phase != model.PhaseUserGate {
		t.Errorf("session = %+v, want round 2 with phase untouched", got)
	}
	if m.ApplyBoundary(model.RoundBoundary{RoundIndex: round(1), Phase: model.PhaseEndGate}) {
		t.Error("boundary from an older round should not lower round_index")
	}
}

func TestMachine_ApplyBoundary_RoundZero(t *testing.T) {
	m := newTestMachine()
	m.Apply(model.Session{ID: "s1", RoundIndex: 2, Phase: model.PhaseUserGate})

	if m.ApplyBoundary(model.RoundBoundary{RoundIndex: round(0), Phase: model.PhaseActive}) {
		t.Error("stale round 0 boundary should be ignored")
	}
	got, _ := m.Session()
	if got.Phase != model.PhaseUserGate || m.Affordances().InputEnabled {
		t.Errorf("session = %+v, input enabled = %v", got, m.Affordances().InputEnabled)
	}

	if !m.ApplyBoundary(model.RoundBoundary{Phase: model.PhaseEndGate}) {
		t.Fatal("boundary without a round should apply its phase")
	}
	if got, _ := m.Session(); got.RoundIndex != 2 || got.Phase != model.PhaseEndGate {
		t.Errorf("session = %+v, want round 2 END_GATE", got)
	}

	fresh := newTestMachine()
	fresh.Apply(model.Session{ID: "s2", RoundIndex: 0, Phase: model.PhaseActive})
	if !fresh.ApplyBoundary(model.RoundBoundary{RoundIndex: round(0), Phase: model.PhaseUserGate}) {
		t.Error("round 0 boundary at round 0 should apply")
	}
}

func round(n int) *int { return &n }
