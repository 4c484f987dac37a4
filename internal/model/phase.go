package model

import "strings"

// Phase is the backend-authoritative step a session is in. The backend
// supplies it verbatim; the client only reacts to it.
type Phase string

// Checkpoint and lifecycle phases.
const (
	PhaseActive     Phase = "ACTIVE"
	PhaseUserGate   Phase = "USER_GATE"
	PhaseEndGate    Phase = "END_GATE"
	PhaseFinalizing Phase = "FINALIZING"
	PhaseFinalized  Phase = "FINALIZED"
	PhaseWaitUser   Phase = "WAIT_USER"
	PhaseIdle       Phase = "idle"
)

// Legal track pre-round phases.
const (
	PhaseFactsIntake    Phase = "FACTS_INTAKE"
	PhaseFactsStipulate Phase = "FACTS_STIPULATE"
	PhaseFactsGate      Phase = "FACTS_GATE"
)

// Per-role turn phases. These all behave like ACTIVE; the list is not
// exhaustive and unknown phases are treated the same way.
const (
	PhaseA1Plan         Phase = "A1_PLAN"
	PhaseA2Crit1        Phase = "A2_CRIT_1"
	PhaseA3Syn1         Phase = "A3_SYN_1"
	PhaseA2Crit2        Phase = "A2_CRIT_2"
	PhaseA3SynFinal     Phase = "A3_SYN_FINAL"
	PhaseVerifierReview Phase = "VERIFIER_REVIEW"
	PhaseJudgeR1Frame   Phase = "JUDGE_R1_FRAME"
	PhaseClaimantR1     Phase = "CLAIMANT_R1"
	PhaseOpposingR1     Phase = "OPPOSING_R1"
	PhaseVerifierR1     Phase = "VERIFIER_R1"
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// Normalize upper-cases the phase so that "finalized" and "FINALIZED" compare
// equal. The backend is inconsistent about case for lifecycle phases.
func (p Phase) Normalize() Phase {
	return Phase(strings.ToUpper(strings.TrimSpace(string(p))))
}

// IsGate reports whether the phase is a round-boundary checkpoint that
// carries GateData.
func (p Phase) IsGate() bool {
	switch p.Normalize() {
	case PhaseUserGate, PhaseEndGate:
		return true
	}
	return false
}
