package model

// VerifierStatus is the verifier's verdict on a completed round.
type VerifierStatus string

const (
	VerifierGo          VerifierStatus = "Go"
	VerifierConditional VerifierStatus = "Conditional"
	VerifierNoGo        VerifierStatus = "No-Go"
	VerifierPending     VerifierStatus = "pending"
)

// Normalize maps empty or unrecognized verdicts to VerifierPending.
func (v VerifierStatus) Normalize() VerifierStatus {
	switch v {
	case VerifierGo, VerifierConditional, VerifierNoGo:
		return v
	}
	return VerifierPending
}

// GateData is the outcome of a just-completed round. It lives in a single
// slot that a round start clears.
type GateData struct {
	RoundIndex         int            `json:"round_index"`
	Phase              Phase          `json:"phase"`
	DecisionSummary    string         `json:"decision_summary"`
	WhatChanged        []string       `json:"what_changed,omitempty"`
	OpenIssues         []string       `json:"open_issues"`
	VerifierGateStatus VerifierStatus `json:"verifier_gate_status"`
}

// Clone returns a deep copy so callers cannot mutate the cached slot.
func (g *GateData) Clone() *GateData {
	if g == nil {
		return nil
	}
	c := *g
	c.WhatChanged = append([]string(nil), g.WhatChanged...)
	c.OpenIssues = append([]string(nil), g.OpenIssues...)
	return &c
}
