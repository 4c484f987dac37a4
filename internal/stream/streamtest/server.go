// Package streamtest provides an in-process event-stream server with
// Last-Event-ID replay for exercising stream consumers in tests.
package streamtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

const (
	// ringSize is the number of recent events kept for Last-Event-ID replay.
	ringSize = 1000

	keepaliveInterval = 15 * time.Second
)

// Event is a single event stored in the ring buffer.
type Event struct {
	ID   uint64
	Type string
	Data []byte
}

// Request records what a consumer sent when it connected.
type Request struct {
	LastEventID string // Last-Event-ID header
	QueryID     string // lastEventId query parameter
	Auth        string // Authorization header
}

// Server is an httptest-backed event-stream endpoint. Every connection
// receives live events; connections that send Last-Event-ID first get the
// buffered events after that id.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	nextID   uint64
	ring     [ringSize]Event
	ringPos  int
	ringLen  int
	clients  map[*client]struct{}
	requests []Request
	status   int

	accepted chan Request
}

type client struct {
	ch   chan []byte
	kick chan struct{}
}

// NewServer starts a server and registers its shutdown with t.Cleanup.
func NewServer(t testing.TB) *Server {
	s := &Server{
		clients:  make(map[*client]struct{}),
		accepted: make(chan Request, 64),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(func() {
		s.DropClients()
		s.Server.Close()
	})
	return s
}

// Accepted delivers one Request per successful connection.
func (s *Server) Accepted() <-chan Request {
	return s.accepted
}

// Requests returns every connection request seen so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// FailWith makes subsequent connections answer with status instead of a
// stream. Zero restores normal behaviour.
func (s *Server) FailWith(status int) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// Publish assigns the next id to an event, buffers it and fans it out.
func (s *Server) Publish(eventType string, payload any) uint64 {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("streamtest: marshaling payload: %v", err))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	evt := Event{ID: s.nextID, Type: eventType, Data: data}
	s.ring[s.ringPos] = evt
	s.ringPos = (s.ringPos + 1) % ringSize
	if s.ringLen < ringSize {
		s.ringLen++
	}
	s.fanout(formatEvent(evt))
	return evt.ID
}

// PublishRaw writes frame verbatim to every connected client without
// buffering it. Use it for malformed or hand-built frames.
func (s *Server) PublishRaw(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fanout([]byte(frame))
}

// DropClients abruptly ends every open connection.
func (s *Server) DropClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		close(c.kick)
		delete(s.clients, c)
	}
}

// Clients returns the number of open connections.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) fanout(b []byte) {
	for c := range s.clients {
		c.ch <- b
	}
}

// eventsSince returns buffered events with ID > lastID, in order.
func (s *Server) eventsSince(lastID uint64) []Event {
	var result []Event
	start := s.ringPos - s.ringLen
	if start < 0 {
		start += ringSize
	}
	for i := range s.ringLen {
		evt := s.ring[(start+i)%ringSize]
		if evt.ID > lastID {
			result = append(result, evt)
		}
	}
	return result
}

func formatEvent(evt Event) []byte {
	return fmt.Appendf(nil, "id:%d\nevent:%s\ndata:%s\n\n", evt.ID, evt.Type, evt.Data)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	req := Request{
		LastEventID: r.Header.Get("Last-Event-ID"),
		QueryID:     r.URL.Query().Get("lastEventId"),
		Auth:        r.Header.Get("Authorization"),
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	if s.status != 0 {
		status := s.status
		s.mu.Unlock()
		http.Error(w, http.StatusText(status), status)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if req.LastEventID != "" {
		if lastID, err := strconv.ParseUint(req.LastEventID, 10, 64); err == nil {
			for _, evt := range s.eventsSince(lastID) {
				_, _ = w.Write(formatEvent(evt))
			}
		}
	}
	flusher.Flush()

	c := &client{ch: make(chan []byte, ringSize), kick: make(chan struct{})}
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	s.accepted <- req

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			delete(s.clients, c)
			s.mu.Unlock()
			return
		case <-c.kick:
			return
		case b := <-c.ch:
			_, _ = w.Write(b)
			flusher.Flush()
		case <-keepalive.C:
			_, _ = fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}
