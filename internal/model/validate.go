package model

import (
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, msg string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: msg})
}

func (e *ValidationError) result() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func nonBlank(items []string) int {
	n := 0
	for _, s := range items {
		if !blank(s) {
			n++
		}
	}
	return n
}

// ValidateSteering checks a general steering submission. An input action must
// carry at least one directive field.
func ValidateSteering(req *SteeringRequest) error {
	var ve ValidationError
	if !req.Action.IsValid() {
		ve.add("action", fmt.Sprintf("invalid value %q", req.Action))
	}
	if req.Action == ActionInput && req.Steering.IsEmpty() {
		ve.add("steering", "at least one directive is required for input")
	}
	return ve.result()
}

// ValidateLegalSteering checks a legal steering submission for the given
// phase and round. Round one needs an issue and goal, round two a proof plan,
// and the end gate an end action and report style.
func ValidateLegalSteering(req *LegalSteeringRequest, phase Phase, round int) error {
	var ve ValidationError
	if phase.Normalize() == PhaseEndGate {
		switch req.EndAction {
		case ActionFinalize, ActionExtendOnce, ActionNewSession:
		case "":
			ve.add("end_action", "is required")
		default:
			ve.add("end_action", fmt.Sprintf("invalid value %q", req.EndAction))
		}
		if blank(req.ReportStyle) {
			ve.add("report_style", "is required")
		}
		return ve.result()
	}
	switch round {
	case 1:
		if blank(req.FocusIssue) {
			ve.add("focus_issue", "is required")
		}
		if blank(req.Goal) {
			ve.add("goal", "is required")
		}
	case 2:
		if blank(req.ProofPriority) {
			ve.add("proof_priority", "is required")
		}
		if blank(req.EvidenceLevel) {
			ve.add("evidence_level", "is required")
		}
		if nonBlank(req.Constraints) == 0 {
			ve.add("constraints", "at least one is required")
		}
	}
	return ve.result()
}

// ValidateFacts checks a facts intake submission.
func ValidateFacts(req *FactsRequest) error {
	var ve ValidationError
	if blank(req.CaseOverview) {
		ve.add("case_overview", "is required")
	}
	if nonBlank(req.Facts) == 0 {
		ve.add("facts", "at least one is required")
	}
	for i, p := range req.Parties {
		if blank(p.Name) {
			ve.add(fmt.Sprintf("parties[%d].name", i), "is required")
		}
	}
	return ve.result()
}
