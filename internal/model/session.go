package model

import "time"

// Status is the lifecycle state of a session.
type Status string

const (
	StatusActive     Status = "active"
	StatusFinalizing Status = "finalizing"
	StatusFinalized  Status = "finalized"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusFinalizing, StatusFinalized:
		return true
	}
	return false
}

// Category is the discussion category chosen when the session was created.
type Category string

const (
	CategoryNewBiz    Category = "newbiz"
	CategoryMarketing Category = "marketing"
	CategoryDev       Category = "dev"
	CategoryDomain    Category = "domain"
	CategoryLegal     Category = "legal"
)

// String returns the string representation of the category.
func (c Category) String() string {
	return string(c)
}

// Track selects which family of checkpoint forms a session uses.
type Track string

const (
	TrackGeneral Track = "general"
	TrackLegal   Track = "legal"
	TrackDev     Track = "dev"
)

// Session is the client's read-only cache of a backend session row.
type Session struct {
	ID          string    `json:"id"`
	Status      Status    `json:"status"`
	Category    Category  `json:"category"`
	Topic       string    `json:"topic"`
	RoundIndex  int       `json:"round_index"`
	Phase       Phase     `json:"phase"`
	CaseType    string    `json:"case_type,omitempty"`
	ProjectType string    `json:"project_type,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Track derives the form track from the project type, falling back to the
// category for sessions created before project types existed.
func (s *Session) Track() Track {
	switch s.ProjectType {
	case "legal":
		return TrackLegal
	case "dev", "devproject":
		return TrackDev
	case "general":
		return TrackGeneral
	}
	if s.Category == CategoryLegal || s.CaseType != "" {
		return TrackLegal
	}
	return TrackGeneral
}

// IsFinalized reports whether the session reached its terminal state.
func (s *Session) IsFinalized() bool {
	return s.Status == StatusFinalized || s.Phase == PhaseFinalized
}
