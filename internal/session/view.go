// Package session assembles the live view of one meeting session: the
// message list, the checkpoint slot, the phase machine and the steering
// gateway, fed by the two event streams, the insert feed and a poll.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/alfredjeanlab/roundtable/internal/client"
	"github.com/alfredjeanlab/roundtable/internal/feed"
	"github.com/alfredjeanlab/roundtable/internal/gate"
	"github.com/alfredjeanlab/roundtable/internal/messages"
	"github.com/alfredjeanlab/roundtable/internal/model"
	"github.com/alfredjeanlab/roundtable/internal/phase"
	"github.com/alfredjeanlab/roundtable/internal/steering"
	"github.com/alfredjeanlab/roundtable/internal/stream"
)

var (
	// ErrInputDisabled is returned by SendMessage outside turn-taking phases.
	ErrInputDisabled = errors.New("session: free-text input is disabled in this phase")
	// ErrEmptyMessage is returned by SendMessage for blank text.
	ErrEmptyMessage = errors.New("session: message is empty")
)

// Backend is the subset of the session API the view calls.
type Backend interface {
	steering.Backend
	GetSession(ctx context.Context, id string) (*model.Session, error)
	LoadHistory(ctx context.Context, sessionID string) ([]model.MessageRecord, error)
	SendMessage(ctx context.Context, sessionID, text string) (*client.SendMessageResponse, error)
	ConfirmStop(ctx context.Context, sessionID string, confirmed bool) error
}

// Deps are the collaborators of a View. Stream carries turn and token
// events, Gates carries round boundaries. Nil streams and a nil feed are
// skipped; a zero PollInterval disables polling.
type Deps struct {
	Client       Backend
	Stream       *stream.Client
	Gates        *stream.Client
	Feed         feed.InsertFeed
	PollInterval time.Duration
	Clock        clockwork.Clock
	Logger       *slog.Logger
}

// DestinationKind names where the user is sent when the view is done.
type DestinationKind string

const (
	DestFinal     DestinationKind = "final"
	DestDashboard DestinationKind = "dashboard"
)

// Destination is a navigation request.
type Destination struct {
	Kind      DestinationKind
	SessionID string
}

// Snapshot is a read-only projection of the view.
type Snapshot struct {
	Session       model.Session
	Messages      []model.Message
	IsConnected   bool
	GateData      *model.GateData
	ActiveSpeaker model.Role
	StopPrompt    *model.StopConfirm
	Affordances   phase.Affordances
	Form          phase.Form
	Loading       bool
	LoadErr       error
	SessionErr    error
	Finalizing    bool
	Submitting    bool
	SteeringErr   error
}

// View owns the state of one session. It must not be shared between
// sessions.
type View struct {
	id      string
	deps    Deps
	logger  *slog.Logger
	store   *messages.Store
	router  *gate.Router
	machine *phase.Machine
	gateway *steering.Gateway

	mu            sync.RWMutex
	activeSpeaker model.Role
	stopPrompt    *model.StopConfirm
	finalizing    bool
	sessionErr    error
	sessionLoaded bool

	updates chan struct{}
	nav     chan Destination
	refetch chan struct{}
	done    chan struct{}
	navOnce sync.Once
}

// New returns a View for sessionID.
func New(sessionID string, deps Deps) *View {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Feed == nil {
		deps.Feed = feed.NoopFeed{}
	}
	logger := deps.Logger.With("session", sessionID)
	machine := phase.NewMachine(logger)
	return &View{
		id:      sessionID,
		deps:    deps,
		logger:  logger,
		store:   messages.New(sessionID, messages.WithLogger(logger)),
		router:  gate.NewRouter(logger),
		machine: machine,
		gateway: steering.New(sessionID, deps.Client, machine, steering.WithLogger(logger)),
		updates: make(chan struct{}, 1),
		nav:     make(chan Destination, 1),
		refetch: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// ID returns the session id.
func (v *View) ID() string { return v.id }

// Updates signals that the snapshot changed. Signals are coalesced; read
// Snapshot after each one.
func (v *View) Updates() <-chan struct{} { return v.updates }

// Done is closed when Run returns.
func (v *View) Done() <-chan struct{} { return v.done }

// Navigation delivers at most one destination.
func (v *View) Navigation() <-chan Destination { return v.nav }

func (v *View) notify() {
	select {
	case v.updates <- struct{}{}:
	default:
	}
}

func (v *View) requestRefetch() {
	select {
	case v.refetch <- struct{}{}:
	default:
	}
}

func (v *View) navigate(kind DestinationKind) {
	v.navOnce.Do(func() {
		v.logger.Info("navigating", "to", kind)
		v.nav <- Destination{Kind: kind, SessionID: v.id}
	})
}

type fetchResult struct {
	sess *model.Session
	err  error
}

// Run loads the session and follows it until ctx is done. Every event is
// applied on the calling goroutine. On return both streams are
// disconnected and the feed subscription and poll ticker are stopped.
func (v *View) Run(ctx context.Context) error {
	defer close(v.done)

	var mainCh, gateCh <-chan model.StreamEvent
	if s := v.deps.Stream; s != nil {
		ch, unsub := s.Subscribe()
		defer unsub()
		mainCh = ch
	}
	if s := v.deps.Gates; s != nil {
		ch, unsub := s.Subscribe()
		defer unsub()
		gateCh = ch
	}
	for _, s := range []*stream.Client{v.deps.Stream, v.deps.Gates} {
		if s == nil {
			continue
		}
		if err := s.Connect(ctx); err != nil {
			return fmt.Errorf("connecting stream: %w", err)
		}
		defer s.Disconnect()
	}

	feedCh, cancelFeed, err := v.deps.Feed.Subscribe(ctx, v.id)
	if err != nil {
		v.logger.Warn("insert feed unavailable", "error", err)
		feedCh = nil
	} else {
		defer cancelFeed()
	}

	go func() {
		_ = v.store.Load(ctx, v.deps.Client)
		v.notify()
	}()

	// At most one fetch runs; a request made meanwhile is queued behind it
	// so a boundary event is never answered by a pre-boundary snapshot.
	fetched := make(chan fetchResult, 1)
	fetching, again := false, false
	fetch := func() {
		if fetching {
			again = true
			return
		}
		fetching = true
		go func() {
			sess, err := v.deps.Client.GetSession(ctx, v.id)
			select {
			case fetched <- fetchResult{sess, err}:
			case <-ctx.Done():
			}
		}()
	}
	fetch()

	var tick <-chan time.Time
	if v.deps.PollInterval > 0 {
		ticker := v.deps.Clock.NewTicker(v.deps.PollInterval)
		defer ticker.Stop()
		tick = ticker.Chan()
	}

	for {
		select {
		case <-ctx.Done():
			v.logger.Debug("view stopped")
			return nil
		case ev, ok := <-mainCh:
			if !ok {
				mainCh = nil
				continue
			}
			if v.handleMain(ev) {
				fetch()
			}
		case ev, ok := <-gateCh:
			if !ok {
				gateCh = nil
				continue
			}
			if v.handleGate(ev) {
				fetch()
			}
		case m, ok := <-feedCh:
			if !ok {
				feedCh = nil
				continue
			}
			if v.store.Insert(m) {
				v.notify()
			}
		case r := <-fetched:
			fetching = false
			v.applySession(r)
			if again {
				again = false
				fetch()
			}
		case <-tick:
			fetch()
		case <-v.refetch:
			fetch()
		}
	}
}

// handleMain applies an event from the turn stream and reports whether the
// session should be refetched.
func (v *View) handleMain(ev model.StreamEvent) bool {
	log := v.logger.With("event_id", ev.ID, "type", ev.Type)
	switch {
	case ev.Type == model.EventSpeakerChange:
		var p model.SpeakerChange
		if err := ev.Decode(&p); err != nil {
			log.Warn("dropping malformed event", "error", err)
			return false
		}
		v.mu.Lock()
		v.activeSpeaker = p.ActiveSpeaker
		v.mu.Unlock()
	case ev.Type == model.EventMessageStreamStart:
		var p model.StreamStart
		if err := ev.Decode(&p); err != nil {
			log.Warn("dropping malformed event", "error", err)
			return false
		}
		v.store.StartStream(p)
		v.mu.Lock()
		v.activeSpeaker = p.Role
		v.mu.Unlock()
	case ev.Type == model.EventMessageStreamChunk:
		var p model.StreamChunk
		if err := ev.Decode(&p); err != nil {
			log.Warn("dropping malformed event", "error", err)
			return false
		}
		if !v.store.AppendChunk(p.Text) {
			return false
		}
	case ev.Type == model.EventMessageStreamEnd:
		var p model.StreamEnd
		if err := ev.Decode(&p); err != nil {
			log.Warn("dropping malformed event", "error", err)
			return false
		}
		if !v.store.EndStream(p.MessageID) {
			return false
		}
	case ev.Type.IsRoundStart(), ev.Type.IsRoundEnd():
		return true
	case ev.Type == model.EventStopConfirm:
		var p model.StopConfirm
		if len(ev.Data) > 0 {
			if err := ev.Decode(&p); err != nil {
				log.Warn("stop prompt without readable trigger", "error", err)
			}
		}
		v.mu.Lock()
		v.stopPrompt = &p
		v.mu.Unlock()
	case ev.Type == model.EventFinalizeStart:
		v.mu.Lock()
		v.finalizing = true
		v.mu.Unlock()
	case ev.Type == model.EventFinalizeDone, ev.Type == model.EventSessionEnd:
		v.mu.Lock()
		v.finalizing = false
		v.mu.Unlock()
		v.notify()
		v.navigate(DestFinal)
		return true
	case ev.Type == model.EventError:
		var p model.StreamError
		_ = ev.Decode(&p)
		log.Warn("backend reported error", "message", p.Message)
		return false
	default:
		log.Debug("ignoring event")
		return false
	}
	v.notify()
	return false
}

// handleGate applies an event from the boundary stream and reports whether
// the session should be refetched.
func (v *View) handleGate(ev model.StreamEvent) bool {
	if !v.router.Handle(ev) {
		return false
	}
	var b model.RoundBoundary
	if err := ev.Decode(&b); err == nil {
		v.machine.ApplyBoundary(b)
	}
	v.notify()
	return true
}

func (v *View) applySession(r fetchResult) {
	v.mu.Lock()
	if r.err != nil {
		v.sessionErr = r.err
		v.mu.Unlock()
		v.logger.Warn("session fetch failed", "error", r.err)
		v.notify()
		return
	}
	v.sessionErr = nil
	v.sessionLoaded = true
	v.mu.Unlock()

	v.machine.Apply(*r.sess)
	v.notify()
}

// Snapshot returns the current projection.
func (v *View) Snapshot() Snapshot {
	sess, _ := v.machine.Session()
	loading, loadErr := v.store.State()

	v.mu.RLock()
	defer v.mu.RUnlock()
	snap := Snapshot{
		Session:       sess,
		Messages:      v.store.Messages(),
		GateData:      v.router.Current(),
		ActiveSpeaker: v.activeSpeaker,
		Affordances:   v.machine.Affordances(),
		Form:          v.machine.Form(),
		Loading:       loading || !v.sessionLoaded,
		LoadErr:       loadErr,
		SessionErr:    v.sessionErr,
		Finalizing:    v.finalizing || sess.Phase == model.PhaseFinalizing,
		Submitting:    v.gateway.Submitting(),
		SteeringErr:   v.gateway.Err(),
	}
	if v.stopPrompt != nil {
		p := *v.stopPrompt
		snap.StopPrompt = &p
	}
	if v.deps.Stream != nil {
		snap.IsConnected = v.deps.Stream.Connected()
	}
	return snap
}

// SendMessage posts free text as the user. The message appears at once as a
// local echo and is withdrawn if the post fails.
func (v *View) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	if !v.machine.InputEnabled() {
		return ErrInputDisabled
	}
	sess, _ := v.machine.Session()
	localID := v.store.AddLocal(model.RoleUser, text, sess.RoundIndex, sess.Phase)
	v.notify()

	if _, err := v.deps.Client.SendMessage(ctx, v.id, text); err != nil {
		v.store.Discard(localID)
		v.notify()
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

// Finalize asks the backend to wrap the session up.
func (v *View) Finalize(ctx context.Context) error {
	defer v.notify()
	if err := v.gateway.Finalize(ctx); err != nil {
		return err
	}
	v.requestRefetch()
	return nil
}

// ConfirmStop answers the pending stop prompt. The prompt is dismissed
// whatever the outcome.
func (v *View) ConfirmStop(ctx context.Context, confirmed bool) error {
	v.mu.Lock()
	v.stopPrompt = nil
	v.mu.Unlock()
	v.notify()

	if err := v.deps.Client.ConfirmStop(ctx, v.id, confirmed); err != nil {
		return fmt.Errorf("confirming stop: %w", err)
	}
	v.requestRefetch()
	return nil
}

// ApplySteering submits a checkpoint decision.
func (v *View) ApplySteering(ctx context.Context, action model.Action, payload steering.Payload) (*model.SteeringResult, error) {
	defer v.notify()
	res, err := v.gateway.Submit(ctx, action, payload)
	if err != nil {
		return nil, err
	}
	v.requestRefetch()
	return res, nil
}

// LeaveAfter submits action and then navigates to the dashboard whatever
// the outcome. An empty action finalizes the session.
func (v *View) LeaveAfter(ctx context.Context, action model.Action, payload steering.Payload) error {
	defer v.notify()
	leave := func() { v.navigate(DestDashboard) }
	if action == "" {
		return v.gateway.FinalizeThenLeave(ctx, leave)
	}
	return v.gateway.SubmitThenLeave(ctx, action, payload, leave)
}

// FactsResponse returns the backend's answer to the last facts submission.
func (v *View) FactsResponse() *model.FactsResponse {
	return v.gateway.Facts()
}
