// Package gate projects round-boundary events into the single GateData slot
// that backs the checkpoint view.
package gate

import (
	"log/slog"
	"sync"

	"github.com/alfredjeanlab/roundtable/internal/model"
)

// Router holds the most recent round-end snapshot for a gate phase. A round
// start always clears it.
type Router struct {
	logger *slog.Logger

	mu   sync.RWMutex
	slot *model.GateData
}

// NewRouter returns an empty Router. A nil logger uses slog.Default.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{logger: logger}
}

// Handle applies a round-boundary event and reports whether ev was one.
// Other event types are ignored.
func (r *Router) Handle(ev model.StreamEvent) bool {
	switch {
	case ev.Type.IsRoundStart():
		r.mu.Lock()
		r.slot = nil
		r.mu.Unlock()
		r.logger.Debug("gate cleared", "event_id", ev.ID)
		return true
	case ev.Type.IsRoundEnd():
		r.roundEnd(ev)
		return true
	}
	return false
}

func (r *Router) roundEnd(ev model.StreamEvent) {
	var g model.GateData
	if err := ev.Decode(&g); err != nil {
		r.logger.Warn("dropping malformed round end", "event_id", ev.ID, "error", err)
		return
	}
	g.Phase = g.Phase.Normalize()
	if !g.Phase.IsGate() {
		r.logger.Debug("round end outside gate phase", "event_id", ev.ID, "phase", g.Phase)
		return
	}
	g.VerifierGateStatus = g.VerifierGateStatus.Normalize()
	if g.OpenIssues == nil {
		g.OpenIssues = []string{}
	}

	r.mu.Lock()
	r.slot = &g
	r.mu.Unlock()
	r.logger.Debug("gate set", "event_id", ev.ID, "round", g.RoundIndex, "phase", g.Phase, "verifier", g.VerifierGateStatus)
}

// Current returns a copy of the slot, or nil when no checkpoint is pending.
func (r *Router) Current() *model.GateData {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.slot.Clone()
}

// Reset empties the slot.
func (r *Router) Reset() {
	r.mu.Lock()
	r.slot = nil
	r.mu.Unlock()
}
