package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/roundtable/internal/model"
	"github.com/alfredjeanlab/roundtable/internal/store/postgres"
)

const (
	minReconnect = 10 * time.Second
	maxReconnect = time.Minute
	pingInterval = 90 * time.Second
	fetchTimeout = 10 * time.Second
)

// RowReader reads a persisted message back by id. *postgres.PostgresStore
// implements it.
type RowReader interface {
	GetMessage(ctx context.Context, id string) (*model.MessageRecord, error)
}

// notice is the insert trigger's NOTIFY payload.
type notice struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
}

// listener is the subset of *pq.Listener the feed uses.
type listener interface {
	Listen(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

// PGFeed fans message inserts announced by the Postgres insert trigger out
// to per-session subscribers. One LISTEN connection serves all sessions.
// Notifications name the row; the row itself is read through rows.
type PGFeed struct {
	l      listener
	rows   RowReader
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[string]map[chan model.Message]struct{}
	taps   map[chan *model.MessageRecord]struct{}
	closed bool

	done      chan struct{}
	closeOnce sync.Once
}

// NewPGFeed opens a LISTEN connection to the database at dsn. Announced
// rows are read from rows.
func NewPGFeed(dsn string, rows RowReader, logger *slog.Logger) (*PGFeed, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := pq.NewListener(dsn, minReconnect, maxReconnect, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			logger.Debug("pg listener connected")
		case pq.ListenerEventDisconnected:
			logger.Warn("pg listener disconnected", "error", err)
		case pq.ListenerEventReconnected:
			logger.Info("pg listener reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			logger.Warn("pg listener connection attempt failed", "error", err)
		}
	})
	f, err := newPGFeed(l, rows, logger)
	if err != nil {
		l.Close()
		return nil, err
	}
	return f, nil
}

func newPGFeed(l listener, rows RowReader, logger *slog.Logger) (*PGFeed, error) {
	if err := l.Listen(postgres.NotifyChannel); err != nil {
		return nil, fmt.Errorf("listening on %s: %w", postgres.NotifyChannel, err)
	}
	f := &PGFeed{
		l:      l,
		rows:   rows,
		logger: logger,
		subs:   make(map[string]map[chan model.Message]struct{}),
		taps:   make(map[chan *model.MessageRecord]struct{}),
		done:   make(chan struct{}),
	}
	go f.run()
	return f, nil
}

func (f *PGFeed) run() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	notes := f.l.NotificationChannel()
	for {
		select {
		case n, ok := <-notes:
			if !ok {
				return
			}
			if n == nil {
				// Sent after a reconnect. Inserts during the gap are lost.
				f.logger.Info("pg listener resumed; inserts during the outage were not delivered")
				continue
			}
			f.dispatch(n.Extra)
		case <-ticker.C:
			go func() {
				if err := f.l.Ping(); err != nil {
					f.logger.Debug("pg listener ping failed", "error", err)
				}
			}()
		case <-f.done:
			return
		}
	}
}

func (f *PGFeed) dispatch(payload string) {
	var n notice
	if err := json.Unmarshal([]byte(payload), &n); err != nil || n.ID == "" {
		f.logger.Warn("dropping malformed notification", "payload", payload, "error", err)
		return
	}
	if !f.wanted(n.SessionID) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	rec, err := f.rows.GetMessage(ctx, n.ID)
	cancel()
	if err != nil {
		f.logger.Warn("reading notified message", "session", n.SessionID, "id", n.ID, "error", err)
		return
	}
	msg := rec.ToMessage()

	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs[rec.SessionID] {
		select {
		case ch <- msg:
		default:
			f.logger.Warn("insert feed full, dropping message", "session", rec.SessionID, "id", rec.ID)
		}
	}
	for ch := range f.taps {
		select {
		case ch <- rec:
		default:
			f.logger.Warn("record tap full, dropping message", "session", rec.SessionID, "id", rec.ID)
		}
	}
}

// wanted reports whether any subscriber or tap would receive a row of the
// session, so unwatched inserts are never read back.
func (f *PGFeed) wanted(sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.taps) > 0 || len(f.subs[sessionID]) > 0
}

// Records delivers every persisted row, whatever its session, until ctx is
// done or the cancel function is called.
func (f *PGFeed) Records(ctx context.Context) (<-chan *model.MessageRecord, func(), error) {
	ch := make(chan *model.MessageRecord, subscriberBuffer)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, nil, fmt.Errorf("pg feed closed")
	}
	f.taps[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	stop := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(stop)
			f.mu.Lock()
			defer f.mu.Unlock()
			if _, ok := f.taps[ch]; !ok {
				return
			}
			delete(f.taps, ch)
			close(ch)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-stop:
		}
	}()
	return ch, cancel, nil
}

// Subscribe implements InsertFeed.
func (f *PGFeed) Subscribe(ctx context.Context, sessionID string) (<-chan model.Message, func(), error) {
	ch := make(chan model.Message, subscriberBuffer)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, nil, fmt.Errorf("subscribing to %s: feed closed", sessionID)
	}
	if f.subs[sessionID] == nil {
		f.subs[sessionID] = make(map[chan model.Message]struct{})
	}
	f.subs[sessionID][ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	stop := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(stop)
			f.mu.Lock()
			defer f.mu.Unlock()
			if _, ok := f.subs[sessionID][ch]; !ok {
				// Already closed by Close.
				return
			}
			delete(f.subs[sessionID], ch)
			if len(f.subs[sessionID]) == 0 {
				delete(f.subs, sessionID)
			}
			close(ch)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-stop:
		}
	}()
	return ch, cancel, nil
}

// Close stops the listener and closes every subscription channel.
func (f *PGFeed) Close() error {
	var err error
	f.closeOnce.Do(func() {
		close(f.done)
		err = f.l.Close()
		f.mu.Lock()
		defer f.mu.Unlock()
		f.closed = true
		for id, set := range f.subs {
			for ch := range set {
				close(ch)
			}
			delete(f.subs, id)
		}
		for ch := range f.taps {
			close(ch)
			delete(f.taps, ch)
		}
	})
	return err
}
