// Package messages reconciles a session's one-time history load, its live
// insert feed and its token stream into one ordered, deduplicated list.
package messages

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/alfredjeanlab/roundtable/internal/idgen"
	"github.com/alfredjeanlab/roundtable/internal/model"
)

// HistorySource returns the persisted messages of a session in creation
// order.
type HistorySource interface {
	LoadHistory(ctx context.Context, sessionID string) ([]model.MessageRecord, error)
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store is the single owner of a session's rendered message list. At most
// one message is streaming at a time, and a message that stopped streaming
// is never rewritten.
type Store struct {
	sessionID string
	logger    *slog.Logger

	mu        sync.RWMutex
	items     []model.Message
	index     map[string]int
	streaming int             // position of the open placeholder, -1 if none
	local     map[string]bool // ids of optimistic echoes not yet confirmed
	loading   bool
	loadErr   error
}

// New returns an empty store for sessionID.
func New(sessionID string, opts ...Option) *Store {
	s := &Store{
		sessionID: sessionID,
		logger:    slog.Default(),
		index:     make(map[string]int),
		streaming: -1,
		local:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load seeds the store from src. Live messages that arrived before the load
// finished are kept after the history unless the history already has them.
// On failure the store keeps what it has and State reports the error.
func (s *Store) Load(ctx context.Context, src HistorySource) error {
	s.mu.Lock()
	s.loading = true
	s.loadErr = nil
	s.mu.Unlock()

	recs, err := src.LoadHistory(ctx, s.sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.loadErr = fmt.Errorf("loading history for %s: %w", s.sessionID, err)
		s.logger.Warn("history load failed", "session", s.sessionID, "error", err)
		return s.loadErr
	}

	live := s.items
	s.items = make([]model.Message, 0, len(recs)+len(live))
	s.index = make(map[string]int, len(recs)+len(live))
	s.streaming = -1
	// Persisted user contents not yet matched against a pending echo.
	confirmed := make(map[string]int)
	for i := range recs {
		m := recs[i].ToMessage()
		if _, dup := s.index[m.ID]; dup || m.ID == "" {
			continue
		}
		s.append(m)
		if m.Role == model.RoleUser {
			confirmed[m.Content]++
		}
	}
	for _, m := range live {
		if _, dup := s.index[m.ID]; dup {
			continue
		}
		if s.local[m.ID] && confirmed[m.Content] > 0 {
			confirmed[m.Content]--
			delete(s.local, m.ID)
			continue
		}
		s.append(m)
		if m.IsStreaming {
			s.streaming = len(s.items) - 1
		}
	}
	s.logger.Debug("history loaded", "session", s.sessionID, "history", len(recs), "total", len(s.items))
	return nil
}

// State reports whether a history load is running and the error of the last
// one.
func (s *Store) State() (loading bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading, s.loadErr
}

// Insert merges a persisted message. It is idempotent by id and reports
// whether the store changed. A user message matching a pending optimistic
// echo replaces the echo in place.
func (s *Store) Insert(m model.Message) bool {
	if m.ID == "" {
		return false
	}
	m.IsStreaming = false

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[m.ID]; ok {
		return false
	}
	if m.Role == model.RoleUser {
		for i, it := range s.items {
			if s.local[it.ID] && it.Content == m.Content {
				delete(s.local, it.ID)
				delete(s.index, it.ID)
				s.items[i] = m
				s.index[m.ID] = i
				return true
			}
		}
	}
	s.append(m)
	return true
}

func (s *Store) append(m model.Message) {
	s.index[m.ID] = len(s.items)
	s.items = append(s.items, m)
}

// remove deletes the item at i and rebuilds positions after it.
func (s *Store) remove(i int) {
	delete(s.index, s.items[i].ID)
	s.items = append(s.items[:i], s.items[i+1:]...)
	for j := i; j < len(s.items); j++ {
		s.index[s.items[j].ID] = j
	}
	switch {
	case s.streaming == i:
		s.streaming = -1
	case s.streaming > i:
		s.streaming--
	}
}

// StartStream appends an empty streaming placeholder and returns its
// temporary id. An earlier placeholder still open is closed first with the
// content it has.
func (s *Store) StartStream(start model.StreamStart) string {
	id := idgen.TempID()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streaming >= 0 {
		prev := &s.items[s.streaming]
		s.logger.Warn("stream started while another was open; closing previous",
			"session", s.sessionID, "previous", prev.ID, "role", prev.Role)
		prev.IsStreaming = false
	}
	s.append(model.Message{
		ID:          id,
		Role:        start.Role,
		RoundIndex:  start.RoundIndex,
		Phase:       start.Phase,
		IsStreaming: true,
	})
	s.streaming = len(s.items) - 1
	return id
}

// AppendChunk adds text to the open placeholder. Without one the chunk is
// dropped and AppendChunk reports false.
func (s *Store) AppendChunk(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streaming < 0 {
		s.logger.Warn("dropping chunk with no open stream", "session", s.sessionID, "bytes", len(text))
		return false
	}
	s.items[s.streaming].Content += text
	return true
}

// EndStream closes the open placeholder under its permanent id. When the
// insert feed already delivered finalID the placeholder is dropped in favour
// of that record. Without an open placeholder EndStream reports false.
func (s *Store) EndStream(finalID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streaming < 0 {
		s.logger.Warn("dropping stream end with no open stream", "session", s.sessionID, "message_id", finalID)
		return false
	}
	i := s.streaming
	if finalID != "" {
		if _, ok := s.index[finalID]; ok {
			s.remove(i)
			return true
		}
		delete(s.index, s.items[i].ID)
		s.items[i].ID = finalID
		s.index[finalID] = i
	}
	s.items[i].IsStreaming = false
	s.streaming = -1
	return true
}

// AddLocal appends an optimistic echo of a message the user just sent and
// returns its client id.
func (s *Store) AddLocal(role model.Role, content string, round int, phase model.Phase) string {
	id := idgen.LocalID()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.append(model.Message{ID: id, Role: role, Content: content, RoundIndex: round, Phase: phase})
	s.local[id] = true
	return id
}

// Discard removes an optimistic echo. Persisted messages cannot be removed.
func (s *Store) Discard(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.local[id] {
		return false
	}
	i, ok := s.index[id]
	if !ok {
		return false
	}
	delete(s.local, id)
	s.remove(i)
	return true
}

// All returns a projection of the list in insertion order. Each iteration
// takes a fresh snapshot, so the sequence can be ranged over repeatedly.
func (s *Store) All() iter.Seq[model.Message] {
	return func(yield func(model.Message) bool) {
		for _, m := range s.Messages() {
			if !yield(m) {
				return
			}
		}
	}
}

// Messages returns a copy of the list.
func (s *Store) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Message(nil), s.items...)
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Contains reports whether id is known.
func (s *Store) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[id]
	return ok
}

// Streaming returns the open placeholder, if any.
func (s *Store) Streaming() (model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.streaming < 0 {
		return model.Message{}, false
	}
	return s.items[s.streaming], true
}
