// Package steering submits the human decision taken at a checkpoint.
package steering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alfredjeanlab/roundtable/internal/idgen"
	"github.com/alfredjeanlab/roundtable/internal/model"
	"github.com/alfredjeanlab/roundtable/internal/phase"
)

var (
	// ErrInFlight is returned when a submission is already running.
	ErrInFlight = errors.New("steering: submission already in flight")
	// ErrActionNotAllowed is returned when the current phase does not permit
	// the action.
	ErrActionNotAllowed = errors.New("steering: action not allowed in current phase")
)

// Backend is the subset of the session API the gateway calls.
type Backend interface {
	ApplySteering(ctx context.Context, sessionID string, req *model.SteeringRequest) (*model.SteeringResult, error)
	ApplyLegalSteering(ctx context.Context, sessionID string, req *model.LegalSteeringRequest) (*model.SteeringResult, error)
	SubmitFacts(ctx context.Context, sessionID string, req *model.FactsRequest) (*model.FactsResponse, error)
	Finalize(ctx context.Context, sessionID string) error
}

// Payload carries the form contents for one submission. Only the part that
// matches the route is read.
type Payload struct {
	Steering *model.Directives
	Legal    *model.LegalSteeringRequest
	Facts    *model.FactsRequest
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// Gateway submits at most one decision at a time for a session. Each
// submission gets a fresh request id so the backend can drop duplicates.
type Gateway struct {
	sessionID string
	backend   Backend
	machine   *phase.Machine
	logger    *slog.Logger

	mu         sync.Mutex
	submitting bool
	err        error
	facts      *model.FactsResponse
}

// New returns a Gateway that checks legality against machine.
func New(sessionID string, backend Backend, machine *phase.Machine, opts ...Option) *Gateway {
	g := &Gateway{
		sessionID: sessionID,
		backend:   backend,
		machine:   machine,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Validate checks a submission before anything is sent. Failures are
// *model.ValidationError.
func Validate(track model.Track, p model.Phase, round int, action model.Action, payload Payload) error {
	p = p.Normalize()
	switch {
	case action == model.ActionSubmitFacts:
		if p == model.PhaseFactsGate {
			return nil
		}
		req := payload.Facts
		if req == nil {
			req = &model.FactsRequest{}
		}
		return model.ValidateFacts(req)
	case isLegalRoute(track, p, action):
		return model.ValidateLegalSteering(legalRequest(p, action, payload), p, round)
	}
	return model.ValidateSteering(&model.SteeringRequest{Action: action, Steering: payload.Steering})
}

// isLegalRoute reports whether the submission goes to the legal steering
// endpoint: directives at a legal user gate, or any legal end gate choice.
func isLegalRoute(track model.Track, p model.Phase, action model.Action) bool {
	if track != model.TrackLegal {
		return false
	}
	switch p {
	case model.PhaseUserGate:
		return action == model.ActionInput
	case model.PhaseEndGate:
		return true
	}
	return false
}

func legalRequest(p model.Phase, action model.Action, payload Payload) *model.LegalSteeringRequest {
	var req model.LegalSteeringRequest
	if payload.Legal != nil {
		req = *payload.Legal
	}
	if p == model.PhaseEndGate && req.EndAction == "" {
		req.EndAction = action
	}
	return &req
}

// Submit sends action for the current checkpoint. While a submission runs,
// further calls fail with ErrInFlight. The action must be legal in the
// machine's phase and the payload must validate. A failure is kept in Err
// until the next attempt.
func (g *Gateway) Submit(ctx context.Context, action model.Action, payload Payload) (*model.SteeringResult, error) {
	if err := g.begin(); err != nil {
		return nil, err
	}
	sess, _ := g.machine.Session()
	if !g.machine.Allows(action) {
		err := fmt.Errorf("%w: %s during %s", ErrActionNotAllowed, action, sess.Phase)
		g.finish(err)
		return nil, err
	}
	if err := Validate(sess.Track(), sess.Phase, sess.RoundIndex, action, payload); err != nil {
		g.finish(err)
		return nil, err
	}

	requestID := idgen.RequestID()
	log := g.logger.With("session", g.sessionID, "action", action, "phase", sess.Phase, "request_id", requestID)
	log.Info("submitting steering")

	res, err := g.route(ctx, sess, action, payload, requestID)
	if err != nil {
		log.Warn("steering failed", "error", err)
		err = fmt.Errorf("submitting %s: %w", action, err)
	}
	g.finish(err)
	return res, err
}

func (g *Gateway) route(ctx context.Context, sess model.Session, action model.Action, payload Payload, requestID string) (*model.SteeringResult, error) {
	p := sess.Phase.Normalize()
	switch {
	case action == model.ActionSubmitFacts:
		var req model.FactsRequest
		if payload.Facts != nil {
			req = *payload.Facts
		}
		req.RequestID = requestID
		resp, err := g.backend.SubmitFacts(ctx, g.sessionID, &req)
		if err != nil {
			return nil, err
		}
		g.mu.Lock()
		g.facts = resp
		g.mu.Unlock()
		return &model.SteeringResult{Status: resp.Status}, nil
	case isLegalRoute(sess.Track(), p, action):
		req := legalRequest(p, action, payload)
		req.RequestID = requestID
		return g.backend.ApplyLegalSteering(ctx, g.sessionID, req)
	}
	req := &model.SteeringRequest{Action: action, RequestID: requestID}
	if action == model.ActionInput {
		req.Steering = payload.Steering
	}
	return g.backend.ApplySteering(ctx, g.sessionID, req)
}

// Finalize asks the backend to end the session outside a checkpoint. It
// shares the in-flight guard with Submit.
func (g *Gateway) Finalize(ctx context.Context) error {
	if err := g.begin(); err != nil {
		return err
	}
	if sess, ok := g.machine.Session(); ok && sess.IsFinalized() {
		err := fmt.Errorf("%w: session already finalized", ErrActionNotAllowed)
		g.finish(err)
		return err
	}
	g.logger.Info("finalizing session", "session", g.sessionID)
	err := g.backend.Finalize(ctx, g.sessionID)
	if err != nil {
		g.logger.Warn("finalize failed", "session", g.sessionID, "error", err)
		err = fmt.Errorf("finalizing %s: %w", g.sessionID, err)
	}
	g.finish(err)
	return err
}

// SubmitThenLeave submits and then calls leave whatever the outcome. The
// submission error is still returned.
func (g *Gateway) SubmitThenLeave(ctx context.Context, action model.Action, payload Payload, leave func()) error {
	defer leave()
	_, err := g.Submit(ctx, action, payload)
	return err
}

// FinalizeThenLeave finalizes and then calls leave whatever the outcome.
func (g *Gateway) FinalizeThenLeave(ctx context.Context, leave func()) error {
	defer leave()
	return g.Finalize(ctx)
}

func (g *Gateway) begin() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.submitting {
		return ErrInFlight
	}
	g.submitting = true
	g.err = nil
	return nil
}

func (g *Gateway) finish(err error) {
	g.mu.Lock()
	g.submitting = false
	g.err = err
	g.mu.Unlock()
}

// Submitting reports whether a submission is running.
func (g *Gateway) Submitting() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.submitting
}

// Err returns the error of the last submission, or nil.
func (g *Gateway) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// Facts returns the backend's answer to the last facts submission.
func (g *Gateway) Facts() *model.FactsResponse {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.facts
}
