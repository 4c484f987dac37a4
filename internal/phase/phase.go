// Package phase maps the backend-supplied session phase to what the client
// may do in it. The client never computes transitions; it only reacts.
package phase

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/alfredjeanlab/roundtable/internal/model"
)

// Affordances is what the user may do in a phase.
type Affordances struct {
	InputEnabled bool
	Actions      []model.Action
}

// Allows reports whether a is a legal action.
func (a Affordances) Allows(action model.Action) bool {
	return slices.Contains(a.Actions, action)
}

var (
	turnTaking = Affordances{InputEnabled: true}
	locked     = Affordances{}
)

// table is the single legality table. Phases not listed are per-role turn
// phases and behave like ACTIVE.
var table = map[model.Phase]Affordances{
	model.PhaseUserGate: {Actions: []model.Action{
		model.ActionSkip, model.ActionInput, model.ActionFinalize,
	}},
	model.PhaseEndGate: {Actions: []model.Action{
		model.ActionFinalize, model.ActionExtendOnce, model.ActionNewSession,
	}},
	model.PhaseFactsIntake:    {Actions: []model.Action{model.ActionSubmitFacts}},
	model.PhaseFactsGate:      {Actions: []model.Action{model.ActionSubmitFacts}},
	model.PhaseFactsStipulate: locked,
	model.PhaseFinalizing:     locked,
	model.PhaseFinalized:      locked,
}

// Lookup returns the affordances of p. The result does not share memory with
// the table.
func Lookup(p model.Phase) Affordances {
	a, ok := table[p.Normalize()]
	if !ok {
		a = turnTaking
	}
	return Affordances{InputEnabled: a.InputEnabled, Actions: slices.Clone(a.Actions)}
}

// Form names the checkpoint form shown for a phase.
type Form string

const (
	FormNone        Form = "none"
	FormSteering    Form = "steering"
	FormDevGate     Form = "dev_gate"
	FormLegalGate   Form = "legal_gate"
	FormEndGate     Form = "end_gate"
	FormFactsIntake Form = "facts_intake"
	FormFactsGate   Form = "facts_gate"
)

// FormFor returns the form shown for p on track.
func FormFor(track model.Track, p model.Phase) Form {
	switch p.Normalize() {
	case model.PhaseUserGate:
		switch track {
		case model.TrackLegal:
			return FormLegalGate
		case model.TrackDev:
			return FormDevGate
		}
		return FormSteering
	case model.PhaseEndGate:
		return FormEndGate
	case model.PhaseFactsIntake:
		return FormFactsIntake
	case model.PhaseFactsGate:
		return FormFactsGate
	}
	return FormNone
}

// Machine caches the latest session snapshot. Snapshots from several
// channels arrive in no particular order, so Apply keeps round_index
// monotonic and treats finalization as terminal.
type Machine struct {
	logger *slog.Logger

	mu     sync.RWMutex
	sess   model.Session
	loaded bool
}

// NewMachine returns a Machine with no session. A nil logger uses
// slog.Default.
func NewMachine(logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{logger: logger}
}

// Apply replaces the cached session with s and reports whether anything
// changed. Stale snapshots are ignored.
func (m *Machine) Apply(s model.Session) bool {
	s.Phase = s.Phase.Normalize()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		if m.sess.IsFinalized() && !s.IsFinalized() {
			m.logger.Debug("ignoring snapshot after finalization", "session", s.ID, "phase", s.Phase)
			return false
		}
		if s.RoundIndex < m.sess.RoundIndex {
			m.logger.Debug("ignoring stale snapshot", "session", s.ID,
				"round", s.RoundIndex, "current", m.sess.RoundIndex)
			return false
		}
		if s == m.sess {
			return false
		}
	}
	if m.loaded && m.sess.Phase != s.Phase {
		m.logger.Info("phase changed", "session", s.ID, "from", m.sess.Phase, "to", s.Phase, "round", s.RoundIndex)
	}
	m.sess = s
	m.loaded = true
	return true
}

// ApplyBoundary folds a round-boundary push event into the cached session.
// An empty phase leaves the phase alone. Boundaries from an older round and
// anything before the first snapshot are ignored.
func (m *Machine) ApplyBoundary(b model.RoundBoundary) bool {
	m.mu.RLock()
	if !m.loaded {
		m.mu.RUnlock()
		return false
	}
	next := m.sess
	m.mu.RUnlock()

	if r := b.RoundIndex; r != nil {
		if *r < next.RoundIndex {
			return false
		}
		next.RoundIndex = *r
	}
	if b.Phase != "" {
		next.Phase = b.Phase
	}
	return m.Apply(next)
}

// Session returns the cached session and whether one has been applied.
func (m *Machine) Session() (model.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sess, m.loaded
}

// Affordances returns the affordances of the current phase. Nothing is
// allowed before the first snapshot or after finalization.
func (m *Machine) Affordances() Affordances {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.loaded || m.sess.IsFinalized() {
		return locked
	}
	return Lookup(m.sess.Phase)
}

// Form returns the checkpoint form for the current phase.
func (m *Machine) Form() Form {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.loaded || m.sess.IsFinalized() {
		return FormNone
	}
	return FormFor(m.sess.Track(), m.sess.Phase)
}

// Allows reports whether a is legal right now.
func (m *Machine) Allows(a model.Action) bool {
	return m.Affordances().Allows(a)
}

// InputEnabled reports whether free-text input is enabled right now.
func (m *Machine) InputEnabled() bool {
	return m.Affordances().InputEnabled
}
