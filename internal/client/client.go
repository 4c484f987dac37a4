// Package client provides a transport-agnostic interface for the meeting
// backend and an HTTP/JSON implementation that talks to its REST API.
package client

import (
	"context"

	"github.com/alfredjeanlab/roundtable/internal/model"
)

// SessionClient is the interface the session view and CLI commands use to
// communicate with the backend. Every call is fire-and-report: none of them
// stream, and live updates arrive through the event streams instead.
type SessionClient interface {
	// Sessions
	GetSession(ctx context.Context, id string) (*model.Session, error)
	ListSessions(ctx context.Context, userID string) ([]*model.Session, error)
	CreateSession(ctx context.Context, req *CreateSessionRequest) (*CreateSessionResponse, error)

	// Messages
	LoadHistory(ctx context.Context, sessionID string) ([]model.MessageRecord, error)
	SendMessage(ctx context.Context, sessionID, text string) (*SendMessageResponse, error)

	// Lifecycle
	Finalize(ctx context.Context, sessionID string) error
	ConfirmStop(ctx context.Context, sessionID string, confirmed bool) error

	// Steering
	ApplySteering(ctx context.Context, sessionID string, req *model.SteeringRequest) (*model.SteeringResult, error)
	ApplyLegalSteering(ctx context.Context, sessionID string, req *model.LegalSteeringRequest) (*model.SteeringResult, error)
	SubmitFacts(ctx context.Context, sessionID string, req *model.FactsRequest) (*model.FactsResponse, error)

	// Reports
	GetReport(ctx context.Context, sessionID string) (*model.FinalReport, error)
	GenerateReport(ctx context.Context, sessionID string) (*model.FinalReport, error)

	// Event streams
	StreamURL(sessionID string) string
	EventsURL(sessionID string) string

	Close() error
}

// CreateSessionRequest holds parameters for opening a session.
type CreateSessionRequest struct {
	Category    model.Category `json:"category"`
	Topic       string         `json:"topic"`
	UserID      string         `json:"user_id,omitempty"`
	CaseType    string         `json:"case_type,omitempty"`
	ProjectType string         `json:"project_type,omitempty"`
}

// CreateSessionResponse is the response from CreateSession.
type CreateSessionResponse struct {
	SessionID string         `json:"session_id"`
	Category  model.Category `json:"category"`
	Topic     string         `json:"topic"`
	Status    model.Status   `json:"status"`
}

// SendMessageResponse is the response from SendMessage.
type SendMessageResponse struct {
	Status     string      `json:"status"`
	RoundIndex *int        `json:"round_index,omitempty"`
	Phase      model.Phase `json:"phase,omitempty"`
}
