package steering

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/alfredjeanlab/roundtable/internal/model"
	"github.com/alfredjeanlab/roundtable/internal/phase"
)

// fakeBackend records calls. When block is set, each call waits on it.
type fakeBackend struct {
	mu       sync.Mutex
	steering []*model.SteeringRequest
	legal    []*model.LegalSteeringRequest
	facts    []*model.FactsRequest
	finals   int

	err     error
	factsOK *model.FactsResponse
	block   chan struct{}
	started chan struct{}
}

func (f *fakeBackend) wait() {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
}

func (f *fakeBackend) ApplySteering(_ context.Context, _ string, req *model.SteeringRequest) (*model.SteeringResult, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steering = append(f.steering, req)
	if f.err != nil {
		return nil, f.err
	}
	return &model.SteeringResult{Status: "ok", NextRound: 2}, nil
}

func (f *fakeBackend) ApplyLegalSteering(_ context.Context, _ string, req *model.LegalSteeringRequest) (*model.SteeringResult, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.legal = append(f.legal, req)
	if f.err != nil {
		return nil, f.err
	}
	return &model.SteeringResult{Status: "ok"}, nil
}

func (f *fakeBackend) SubmitFacts(_ context.Context, _ string, req *model.FactsRequest) (*model.FactsResponse, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.facts = append(f.facts, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.factsOK != nil {
		return f.factsOK, nil
	}
	return &model.FactsResponse{Status: "stipulated"}, nil
}

func (f *fakeBackend) Finalize(context.Context, string) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finals++
	return f.err
}

func newGateway(t *testing.T, be Backend, sess model.Session) *Gateway {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := phase.NewMachine(logger)
	m.Apply(sess)
	return New(sess.ID, be, m, WithLogger(logger))
}

func userGate(round int) model.Session {
	return model.Session{ID: "s1", Status: model.StatusActive, Category: model.CategoryNewBiz, RoundIndex: round, Phase: model.PhaseUserGate}
}

func TestSubmit_InputWithDirectives(t *testing.T) {
	be := &fakeBackend{}
	g := newGateway(t, be, userGate(1))

	res, err := g.Submit(context.Background(), model.ActionInput, Payload{
		Steering: &model.Directives{Goal: "cut scope", Constraints: []string{"budget"}},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Status != "ok" || res.NextRound != 2 {
		t.Errorf("result = %+v", res)
	}
	if len(be.steering) != 1 {
		t.Fatalf("steering calls = %d, want 1", len(be.steering))
	}
	req := be.steering[0]
	if req.Action != model.ActionInput || req.Steering.Goal != "cut scope" {
		t.Errorf("request = %+v", req)
	}
	if req.RequestID == "" {
		t.Error("request id should be set")
	}
	if g.Submitting() || g.Err() != nil {
		t.Errorf("Submitting = %v, Err = %v after success", g.Submitting(), g.Err())
	}
}

func TestSubmit_FreshRequestIDs(t *testing.T) {
	be := &fakeBackend{}
	g := newGateway(t, be, userGate(1))
	for range 2 {
		if _, err := g.Submit(context.Background(), model.ActionSkip, Payload{}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	if be.steering[0].RequestID == be.steering[1].RequestID {
		t.Errorf("request ids repeated: %s", be.steering[0].RequestID)
	}
	if be.steering[0].Steering != nil {
		t.Error("skip should not carry directives")
	}
}

func TestSubmit_InputWithoutDirectives(t *testing.T) {
	be := &fakeBackend{}
	g := newGateway(t, be, userGate(1))
	_, err := g.Submit(context.Background(), model.ActionInput, Payload{Steering: &model.Directives{}})
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if len(be.steering) != 0 {
		t.Error("invalid submission should not reach the backend")
	}
	if !errors.As(g.Err(), &ve) {
		t.Errorf("Err() = %v", g.Err())
	}
}

func TestSubmit_ActionNotAllowed(t *testing.T) {
	be := &fakeBackend{}
	g := newGateway(t, be, model.Session{ID: "s1", RoundIndex: 1, Phase: model.PhaseActive})
	if _, err := g.Submit(context.Background(), model.ActionSkip, Payload{}); !errors.Is(err, ErrActionNotAllowed) {
		t.Errorf("err = %v, want ErrActionNotAllowed", err)
	}

	end := newGateway(t, be, model.Session{ID: "s1", RoundIndex: 3, Phase: model.PhaseEndGate})
	if _, err := end.Submit(context.Background(), model.ActionSkip, Payload{}); !errors.Is(err, ErrActionNotAllowed) {
		t.Errorf("skip at END_GATE err = %v, want ErrActionNotAllowed", err)
	}
	if len(be.steering) != 0 {
		t.Error("backend should not be called")
	}
}

func TestSubmit_InFlightGuard(t *testing.T) {
	be := &fakeBackend{block: make(chan struct{}), started: make(chan struct{}, 1)}
	g := newGateway(t, be, userGate(1))

	done := make(chan error, 1)
	go func() {
		_, err := g.Submit(context.Background(), model.ActionSkip, Payload{})
		done <- err
	}()
	<-be.started

	if !g.Submitting() {
		t.Error("Submitting() = false while request is pending")
	}
	if _, err := g.Submit(context.Background(), model.ActionSkip, Payload{}); !errors.Is(err, ErrInFlight) {
		t.Errorf("second Submit err = %v, want ErrInFlight", err)
	}
	if err := g.Finalize(context.Background()); !errors.Is(err, ErrInFlight) {
		t.Errorf("Finalize err = %v, want ErrInFlight", err)
	}

	close(be.block)
	if err := <-done; err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if g.Submitting() {
		t.Error("Submitting() = true after completion")
	}
	if len(be.steering) != 1 {
		t.Errorf("steering calls = %d, want exactly 1", len(be.steering))
	}
}

func TestSubmit_FailureReenables(t *testing.T) {
	boom := errors.New("boom")
	be := &fakeBackend{err: boom}
	g := newGateway(t, be, userGate(1))

	if _, err := g.Submit(context.Background(), model.ActionSkip, Payload{}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if g.Submitting() {
		t.Error("Submitting() should be false after failure")
	}
	if !errors.Is(g.Err(), boom) {
		t.Errorf("Err() = %v, want boom", g.Err())
	}
	if len(be.steering) != 1 {
		t.Errorf("failure should not be retried, calls = %d", len(be.steering))
	}

	be.err = nil
	if _, err := g.Submit(context.Background(), model.ActionSkip, Payload{}); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if g.Err() != nil {
		t.Errorf("Err() = %v after successful retry", g.Err())
	}
}

func TestSubmit_LegalRouting(t *testing.T) {
	legal := model.Session{ID: "s1", Category: model.CategoryLegal, RoundIndex: 1, Phase: model.PhaseUserGate}

	t.Run("round one input", func(t *testing.T) {
		be := &fakeBackend{}
		g := newGateway(t, be, legal)
		_, err := g.Submit(context.Background(), model.ActionInput, Payload{
			Legal: &model.LegalSteeringRequest{FocusIssue: "breach", Goal: "damages"},
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if len(be.legal) != 1 || len(be.steering) != 0 {
			t.Fatalf("legal=%d steering=%d", len(be.legal), len(be.steering))
		}
		if be.legal[0].RequestID == "" || be.legal[0].FocusIssue != "breach" {
			t.Errorf("request = %+v", be.legal[0])
		}
	})

	t.Run("round one missing goal", func(t *testing.T) {
		be := &fakeBackend{}
		g := newGateway(t, be, legal)
		_, err := g.Submit(context.Background(), model.ActionInput, Payload{
			Legal: &model.LegalSteeringRequest{FocusIssue: "breach"},
		})
		var ve *model.ValidationError
		if !errors.As(err, &ve) || len(ve.Errors) != 1 || ve.Errors[0].Field != "goal" {
			t.Errorf("err = %v, want goal required", err)
		}
	})

	t.Run("skip goes to general endpoint", func(t *testing.T) {
		be := &fakeBackend{}
		g := newGateway(t, be, legal)
		if _, err := g.Submit(context.Background(), model.ActionSkip, Payload{}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if len(be.steering) != 1 || len(be.legal) != 0 {
			t.Errorf("legal=%d steering=%d", len(be.legal), len(be.steering))
		}
	})

	t.Run("end gate fills end action", func(t *testing.T) {
		be := &fakeBackend{}
		g := newGateway(t, be, model.Session{ID: "s1", Category: model.CategoryLegal, RoundIndex: 3, Phase: model.PhaseEndGate})
		_, err := g.Submit(context.Background(), model.ActionExtendOnce, Payload{
			Legal: &model.LegalSteeringRequest{ReportStyle: "memo"},
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if be.legal[0].EndAction != model.ActionExtendOnce {
			t.Errorf("EndAction = %q", be.legal[0].EndAction)
		}
	})

	t.Run("end gate needs report style", func(t *testing.T) {
		be := &fakeBackend{}
		g := newGateway(t, be, model.Session{ID: "s1", Category: model.CategoryLegal, RoundIndex: 3, Phase: model.PhaseEndGate})
		var ve *model.ValidationError
		if _, err := g.Submit(context.Background(), model.ActionFinalize, Payload{}); !errors.As(err, &ve) {
			t.Errorf("err = %v, want ValidationError", err)
		}
	})
}

func TestSubmit_Facts(t *testing.T) {
	be := &fakeBackend{factsOK: &model.FactsResponse{
		Status:                "stipulated",
		DisputedFacts:         []string{"a", "b"},
		MissingFactsQuestions: []string{"c"},
	}}
	g := newGateway(t, be, model.Session{ID: "s1", Category: model.CategoryLegal, Phase: model.PhaseFactsIntake})

	res, err := g.Submit(context.Background(), model.ActionSubmitFacts, Payload{Facts: &model.FactsRequest{
		CaseOverview: "contract dispute",
		Facts:        []string{"signed in May"},
	}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Status != "stipulated" {
		t.Errorf("Status = %q", res.Status)
	}
	if be.facts[0].RequestID == "" {
		t.Error("facts request id should be set")
	}
	if f := g.Facts(); f == nil || !f.NeedsFactsGate() {
		t.Errorf("Facts() = %+v, want a response that needs a facts gate", f)
	}

	if _, err := g.Submit(context.Background(), model.ActionSubmitFacts, Payload{Facts: &model.FactsRequest{}}); err == nil {
		t.Error("empty facts intake should fail validation")
	}
}

func TestValidate_FactsGateAlwaysValid(t *testing.T) {
	if err := Validate(model.TrackLegal, model.PhaseFactsGate, 0, model.ActionSubmitFacts, Payload{}); err != nil {
		t.Errorf("Validate = %v, want nil", err)
	}
}

func TestValidate_LegalRoundTwo(t *testing.T) {
	err := Validate(model.TrackLegal, model.PhaseUserGate, 2, model.ActionInput, Payload{
		Legal: &model.LegalSteeringRequest{ProofPriority: "documents", EvidenceLevel: "strong", Constraints: []string{" "}},
	})
	var ve *model.ValidationError
	if !errors.As(err, &ve) || ve.Errors[0].Field != "constraints" {
		t.Errorf("err = %v, want constraints required", err)
	}
}

func TestSubmitThenLeave_AlwaysLeaves(t *testing.T) {
	boom := errors.New("boom")
	be := &fakeBackend{err: boom}
	g := newGateway(t, be, model.Session{ID: "s1", RoundIndex: 3, Phase: model.PhaseEndGate})

	left := false
	err := g.SubmitThenLeave(context.Background(), model.ActionFinalize, Payload{}, func() { left = true })
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if !left {
		t.Error("leave was not called after failure")
	}

	left = false
	g.SubmitThenLeave(context.Background(), model.ActionSkip, Payload{}, func() { left = true })
	if !left {
		t.Error("leave was not called after a rejected action")
	}
}

func TestFinalizeThenLeave(t *testing.T) {
	be := &fakeBackend{err: errors.New("unavailable")}
	g := newGateway(t, be, model.Session{ID: "s1", RoundIndex: 3, Phase: model.PhaseEndGate})
	left := false
	if err := g.FinalizeThenLeave(context.Background(), func() { left = true }); err == nil {
		t.Error("expected finalize error")
	}
	if !left || be.finals != 1 {
		t.Errorf("left = %v, finals = %d", left, be.finals)
	}
}

func TestFinalize_RejectedWhenFinalized(t *testing.T) {
	be := &fakeBackend{}
	g := newGateway(t, be, model.Session{ID: "s1", Status: model.StatusFinalized, Phase: model.PhaseFinalized})
	if err := g.Finalize(context.Background()); !errors.Is(err, ErrActionNotAllowed) {
		t.Errorf("err = %v, want ErrActionNotAllowed", err)
	}
	if be.finals != 0 {
		t.Error("backend should not be called")
	}
}
