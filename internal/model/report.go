package model

import "encoding/json"

// RoadmapItem is one period of the recommended plan.
type RoadmapItem struct {
	Week  string   `json:"week"`
	Tasks []string `json:"tasks"`
}

// RiskItem pairs a risk with its mitigation.
type RiskItem struct {
	Risk       string `json:"risk"`
	Mitigation string `json:"mitigation"`
}

// FinalReport is the document produced when a session is finalized. The
// structured fields are present for general sessions; other tracks may only
// fill ReportMD and ReportJSON.
type FinalReport struct {
	SessionID        string          `json:"session_id,omitempty"`
	Category         Category        `json:"category,omitempty"`
	ExecutiveSummary string          `json:"executive_summary,omitempty"`
	TopDecisions     []string        `json:"top_decisions,omitempty"`
	Roadmap          []RoadmapItem   `json:"roadmap,omitempty"`
	Risks            []RiskItem      `json:"risks,omitempty"`
	KPIs             []string        `json:"kpis,omitempty"`
	OpenIssues       []string        `json:"open_issues,omitempty"`
	RoundSummaries   []string        `json:"round_summaries,omitempty"`
	ReportJSON       json.RawMessage `json:"report_json,omitempty"`
	ReportMD         string          `json:"report_md,omitempty"`
}
