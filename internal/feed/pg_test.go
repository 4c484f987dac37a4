package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/roundtable/internal/model"
	"github.com/alfredjeanlab/roundtable/internal/store"
	"github.com/alfredjeanlab/roundtable/internal/store/postgres"
)

// fakeListener stands in for both the LISTEN connection and the messages
// table the feed reads announced rows from.
type fakeListener struct {
	notes     chan *pq.Notification
	listened  []string
	listenErr error
	closed    bool

	mu    sync.Mutex
	rows  map[string]model.MessageRecord
	reads int
}

func newFakeListener() *fakeListener {
	return &fakeListener{
		notes: make(chan *pq.Notification, 8),
		rows:  make(map[string]model.MessageRecord),
	}
}

func (l *fakeListener) GetMessage(_ context.Context, id string) (*model.MessageRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	rec, ok := l.rows[id]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", id, store.ErrNotFound)
	}
	return &rec, nil
}

func (l *fakeListener) readCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reads
}

func (l *fakeListener) Listen(channel string) error {
	l.listened = append(l.listened, channel)
	return l.listenErr
}

func (l *fakeListener) NotificationChannel() <-chan *pq.Notification { return l.notes }

func (l *fakeListener) Ping() error { return nil }

func (l *fakeListener) Close() error {
	if !l.closed {
		l.closed = true
		close(l.notes)
	}
	return nil
}

func notify(l *fakeListener, payload string) {
	l.notes <- &pq.Notification{Channel: postgres.NotifyChannel, Extra: payload}
}

// insert stores rec and announces it the way the insert trigger does.
func insert(l *fakeListener, rec model.MessageRecord) {
	l.mu.Lock()
	l.rows[rec.ID] = rec
	l.mu.Unlock()
	notify(l, fmt.Sprintf(`{"id":%q,"session_id":%q}`, rec.ID, rec.SessionID))
}

func newTestPGFeed(t *testing.T) (*PGFeed, *fakeListener) {
	t.Helper()
	l := newFakeListener()
	f, err := newPGFeed(l, l, quietLogger())
	if err != nil {
		t.Fatalf("newPGFeed: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f, l
}

func TestPGFeed_ListensOnNotifyChannel(t *testing.T) {
	_, l := newTestPGFeed(t)
	if len(l.listened) != 1 || l.listened[0] != postgres.NotifyChannel {
		t.Errorf("listened = %v", l.listened)
	}
}

func TestPGFeed_ListenError(t *testing.T) {
	l := newFakeListener()
	l.listenErr = errors.New("denied")
	if _, err := newPGFeed(l, l, quietLogger()); err == nil {
		t.Fatal("expected error")
	}
}

func TestPGFeed_FiltersBySession(t *testing.T) {
	f, l := newTestPGFeed(t)
	ch, cancel, err := f.Subscribe(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	insert(l, model.MessageRecord{ID: "x", SessionID: "s2", Role: model.RoleAgent1, ContentText: "other"})
	notify(l, `garbage`)
	notify(l, `{"session_id":"s1"}`)
	l.notes <- nil
	insert(l, model.MessageRecord{ID: "m1", SessionID: "s1", Role: model.RoleVerifier, ContentText: "Go", RoundIndex: 1})

	m := recv(t, ch)
	if m.ID != "m1" || m.Role != model.RoleVerifier || m.Content != "Go" || m.Phase != "" {
		t.Errorf("message = %+v", m)
	}
	select {
	case extra := <-ch:
		t.Errorf("unexpected extra message %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPGFeed_FanOut(t *testing.T) {
	f, l := newTestPGFeed(t)
	a, cancelA, _ := f.Subscribe(context.Background(), "s1")
	b, cancelB, _ := f.Subscribe(context.Background(), "s1")
	defer cancelB()

	insert(l, model.MessageRecord{ID: "m1", SessionID: "s1", Role: model.RoleAgent1})
	recv(t, a)
	recv(t, b)

	cancelA()
	if _, ok := <-a; ok {
		t.Error("cancelled channel should be closed")
	}
	insert(l, model.MessageRecord{ID: "m2", SessionID: "s1", Role: model.RoleAgent1})
	if m := recv(t, b); m.ID != "m2" {
		t.Errorf("b got %s, want m2", m.ID)
	}
}

func TestPGFeed_CloseClosesSubscribers(t *testing.T) {
	f, l := newTestPGFeed(t)
	ch, cancel, _ := f.Subscribe(context.Background(), "s1")
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !l.closed {
		t.Error("listener not closed")
	}
	if _, ok := <-ch; ok {
		t.Error("subscription channel should be closed")
	}
	cancel()
	if _, _, err := f.Subscribe(context.Background(), "s1"); err == nil {
		t.Error("Subscribe after Close should fail")
	}
}

// A long agent turn is announced by id only and read back whole.
func TestPGFeed_ReadsAnnouncedRow(t *testing.T) {
	f, l := newTestPGFeed(t)
	ch, cancel, err := f.Subscribe(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	long := strings.Repeat("쟁점을 정리하겠습니다. ", 1000)
	l.mu.Lock()
	l.rows["m1"] = model.MessageRecord{ID: "m1", SessionID: "s1", Role: model.RoleAgent3, ContentText: long, RoundIndex: 2}
	l.mu.Unlock()
	payload := `{"id":"m1","session_id":"s1"}`
	notify(l, payload)

	m := recv(t, ch)
	if m.ID != "m1" || m.Content != long || m.RoundIndex != 2 {
		t.Errorf("message = %+v", m)
	}
	if len(long) < 8000 || len(payload) >= 8000 {
		t.Fatalf("content %d bytes, payload %d bytes", len(long), len(payload))
	}
}

func TestPGFeed_SkipsUnwatchedAndMissingRows(t *testing.T) {
	f, l := newTestPGFeed(t)
	ch, cancel, _ := f.Subscribe(context.Background(), "s1")
	defer cancel()

	insert(l, model.MessageRecord{ID: "x", SessionID: "s2", Role: model.RoleAgent1})
	notify(l, `{"id":"deleted","session_id":"s1"}`)
	insert(l, model.MessageRecord{ID: "m1", SessionID: "s1", Role: model.RoleAgent1})

	if m := recv(t, ch); m.ID != "m1" {
		t.Errorf("got %s, want m1", m.ID)
	}
	// Only the watched session's rows are read back: the missing one and m1.
	if n := l.readCount(); n != 2 {
		t.Errorf("reads = %d, want 2", n)
	}
}
