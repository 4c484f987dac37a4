package model

// Action is a user affordance at a checkpoint.
type Action string

const (
	ActionSkip        Action = "skip"
	ActionInput       Action = "input"
	ActionFinalize    Action = "finalize"
	ActionExtendOnce  Action = "extend_once"
	ActionNewSession  Action = "new_session"
	ActionSubmitFacts Action = "submit_facts"
)

// String returns the string representation of the action.
func (a Action) String() string {
	return string(a)
}

// IsValid checks whether the action is a known value.
func (a Action) IsValid() bool {
	switch a {
	case ActionSkip, ActionInput, ActionFinalize, ActionExtendOnce, ActionNewSession, ActionSubmitFacts:
		return true
	}
	return false
}

// Directives are the structured steering fields a user can attach to an
// input action.
type Directives struct {
	Goal        string   `json:"goal,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Focus       string   `json:"focus,omitempty"`
	Constraints []string `json:"constraints,omitempty"`
	Exclusions  []string `json:"exclusions,omitempty"`
	FreeText    string   `json:"free_text,omitempty"`
}

// IsEmpty reports whether no directive field is set.
func (d *Directives) IsEmpty() bool {
	if d == nil {
		return true
	}
	return d.Goal == "" && d.Priority == "" && d.Focus == "" &&
		len(d.Constraints) == 0 && len(d.Exclusions) == 0 && d.FreeText == ""
}

// SteeringRequest is the body of the general steering endpoint.
type SteeringRequest struct {
	Action    Action      `json:"action"`
	Steering  *Directives `json:"steering,omitempty"`
	RequestID string      `json:"request_id"`
}

// LegalSteeringRequest is the body of the legal steering endpoint. Which
// fields are required depends on the round; see ValidateLegalSteering.
type LegalSteeringRequest struct {
	FocusIssue    string   `json:"focus_issue,omitempty"`
	Goal          string   `json:"goal,omitempty"`
	ProofPriority string   `json:"proof_priority,omitempty"`
	EvidenceLevel string   `json:"evidence_level,omitempty"`
	Constraints   []string `json:"constraints,omitempty"`
	EndAction     Action   `json:"end_action,omitempty"`
	ReportStyle   string   `json:"report_style,omitempty"`
	Stance        string   `json:"stance,omitempty"`
	Exclusions    []string `json:"exclusions,omitempty"`
	Notes         string   `json:"notes,omitempty"`
	RequestID     string   `json:"request_id"`
}

// Party is one side of a legal matter.
type Party struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// FactsRequest is the body of the facts intake endpoint.
type FactsRequest struct {
	CaseOverview string   `json:"case_overview"`
	Parties      []Party  `json:"parties,omitempty"`
	Facts        []string `json:"facts"`
	Evidence     []string `json:"evidence,omitempty"`
	RequestID    string   `json:"request_id"`
}

// FactsResponse is the backend's stipulation of submitted facts.
type FactsResponse struct {
	Status                string   `json:"status"`
	ConfirmedFacts        []string `json:"confirmed_facts"`
	DisputedFacts         []string `json:"disputed_facts"`
	MissingFactsQuestions []string `json:"missing_facts_questions"`
	FactsGateRequired     bool     `json:"facts_gate_required"`
}

// factsGateThreshold is the number of unresolved items that forces a
// facts gate even when the backend did not ask for one.
const factsGateThreshold = 3

// NeedsFactsGate reports whether the user must review facts before rounds
// begin.
func (r *FactsResponse) NeedsFactsGate() bool {
	if r.FactsGateRequired {
		return true
	}
	return len(r.DisputedFacts)+len(r.MissingFactsQuestions) >= factsGateThreshold
}

// SteeringResult is the backend's acknowledgement of a steering submission.
type SteeringResult struct {
	Status    string `json:"status"`
	NextRound int    `json:"next_round,omitempty"`
}
