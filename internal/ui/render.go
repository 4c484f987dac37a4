package ui

import (
	"fmt"
	"strings"

	"github.com/alfredjeanlab/roundtable/internal/model"
	"github.com/alfredjeanlab/roundtable/internal/phase"
)

var roleLabels = map[model.Role]string{
	model.RoleUser:     "You",
	model.RoleAgent1:   "Agent 1 (Planner)",
	model.RoleAgent2:   "Agent 2 (Critic)",
	model.RoleAgent3:   "Agent 3 (Synthesizer)",
	model.RoleVerifier: "Verifier",
	model.RoleJudge:    "Judge",
	model.RoleClaimant: "Claimant",
	model.RoleOpposing: "Opposing",
	model.RolePM:       "PM",
	model.RoleTech:     "Tech Lead",
	model.RoleUX:       "UX",
	model.RolePRD:      "PRD",
	model.RoleDM:       "DM",
}

// RoleLabel returns the display name of role. Unknown roles render as
// System.
func RoleLabel(role model.Role) string {
	if l, ok := roleLabels[role]; ok {
		return l
	}
	return "System"
}

// FormatMessage renders one transcript entry. A streaming message gets a
// trailing ellipsis.
func FormatMessage(m model.Message) string {
	var b strings.Builder
	b.WriteString(RenderRole(m.Role, RoleLabel(m.Role)))
	if m.RoundIndex > 0 || m.Phase != "" {
		b.WriteString(" ")
		b.WriteString(RenderMuted(roundTag(m.RoundIndex, m.Phase)))
	}
	b.WriteString("\n")
	b.WriteString(m.Content)
	if m.IsStreaming {
		b.WriteString(RenderMuted(" ..."))
	}
	return b.String()
}

func roundTag(round int, p model.Phase) string {
	switch {
	case round > 0 && p != "":
		return fmt.Sprintf("[R%d %s]", round, p)
	case round > 0:
		return fmt.Sprintf("[R%d]", round)
	}
	return fmt.Sprintf("[%s]", p)
}

// FormatVerifier colors a verifier verdict.
func FormatVerifier(s model.VerifierStatus) string {
	switch s {
	case model.VerifierGo:
		return RenderOK(string(s))
	case model.VerifierConditional:
		return RenderWarn(string(s))
	case model.VerifierNoGo:
		return RenderError(string(s))
	}
	return RenderMuted(string(s))
}

// FormatGate renders a checkpoint summary. A nil gate renders as "".
func FormatGate(g *model.GateData) string {
	if g == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s round %d", RenderAccent("Checkpoint:"), g.RoundIndex)
	if g.VerifierGateStatus != "" {
		fmt.Fprintf(&b, "  verifier %s", FormatVerifier(g.VerifierGateStatus))
	}
	b.WriteString("\n")
	if g.DecisionSummary != "" {
		fmt.Fprintf(&b, "  %s\n", g.DecisionSummary)
	}
	writeList(&b, "What changed", g.WhatChanged)
	writeList(&b, "Open issues", g.OpenIssues)
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "  %s\n", RenderMuted(title+":"))
	for _, it := range items {
		fmt.Fprintf(b, "    - %s\n", it)
	}
}

// FormatAffordances renders what the user may do right now as one line.
func FormatAffordances(a phase.Affordances, form phase.Form) string {
	switch {
	case a.InputEnabled:
		return RenderOK("input open")
	case len(a.Actions) == 0:
		return RenderMuted("locked")
	}
	names := make([]string, len(a.Actions))
	for i, act := range a.Actions {
		names[i] = RenderCommand(string(act))
	}
	return fmt.Sprintf("%s %s: %s", RenderWarn("awaiting decision"), RenderMuted("("+string(form)+")"), strings.Join(names, ", "))
}
