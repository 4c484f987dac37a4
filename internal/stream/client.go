// Package stream maintains a resumable event-stream connection for one
// session and fans its events out to subscribers in arrival order.
package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/alfredjeanlab/roundtable/internal/model"
)

const (
	// DefaultBackoff is the fixed delay before each reconnect attempt.
	DefaultBackoff = 3 * time.Second

	// maxFrameSize bounds a single line of the stream.
	maxFrameSize = 1 << 20

	subscriberBuffer = 64
)

// ErrAlreadyConnected is returned by Connect when the read loop is running.
var ErrAlreadyConnected = errors.New("stream: already connected")

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used to open the stream. It must not
// impose an overall request timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock sets the clock that drives reconnect backoff.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithBackoff sets the reconnect delay.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.backoff = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithToken attaches a bearer token to every connection attempt.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithStatusHandler registers fn to be called whenever the connected state
// changes. fn runs on the read loop and must not block.
func WithStatusHandler(fn func(connected bool)) Option {
	return func(c *Client) { c.onStatus = fn }
}

// Client is an event-stream consumer with Last-Event-ID resumption and a
// fixed reconnect delay. It retries until Disconnect is called or the
// context passed to Connect is done.
type Client struct {
	url        string
	httpClient *http.Client
	clock      clockwork.Clock
	backoff    time.Duration
	logger     *slog.Logger
	token      string
	onStatus   func(bool)

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	subs      map[*subscriber]struct{}
	lastID    uint64
	hasLast   bool
	connected bool
}

// New returns a Client for the stream at rawURL. Nothing is opened until
// Connect.
func New(rawURL string, opts ...Option) *Client {
	c := &Client{
		url:        rawURL,
		httpClient: &http.Client{},
		clock:      clockwork.NewRealClock(),
		backoff:    DefaultBackoff,
		logger:     slog.Default(),
		subs:       make(map[*subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect starts the read loop. It returns immediately; connection failures
// are retried in the background and only change Connected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return ErrAlreadyConnected
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx, c.done)
	return nil
}

// Disconnect stops the read loop, cancels any pending reconnect and closes
// every subscriber channel. It is safe to call more than once.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	c.mu.Lock()
	subs := make([]*subscriber, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()
	for _, s := range subs {
		c.unsubscribe(s)
	}
}

// Connected reports whether a stream is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// LastEventID returns the id of the last delivered event and whether one has
// been delivered yet.
func (c *Client) LastEventID() (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastID, c.hasLast
}

// Subscribe returns a channel of events in arrival order. Delivery blocks
// when the channel is full, so a slow subscriber slows the stream rather
// than losing events. Call the returned cancel function to unsubscribe and
// close the channel.
func (c *Client) Subscribe() (<-chan model.StreamEvent, func()) {
	s := &subscriber{
		ch:   make(chan model.StreamEvent, subscriberBuffer),
		gone: make(chan struct{}),
	}
	c.mu.Lock()
	c.subs[s] = struct{}{}
	c.mu.Unlock()
	return s.ch, func() { c.unsubscribe(s) }
}

func (c *Client) unsubscribe(s *subscriber) {
	c.mu.Lock()
	delete(c.subs, s)
	c.mu.Unlock()
	s.close()
}

type subscriber struct {
	ch   chan model.StreamEvent
	gone chan struct{}

	once   sync.Once
	sendMu sync.Mutex
	closed bool
}

// send blocks until the event is accepted, the subscriber leaves, or ctx is
// done.
func (s *subscriber) send(ctx context.Context, ev model.StreamEvent) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
	case <-s.gone:
	case <-ctx.Done():
	}
}

func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.gone)
		s.sendMu.Lock()
		s.closed = true
		close(s.ch)
		s.sendMu.Unlock()
	})
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	changed := c.connected != v
	c.connected = v
	c.mu.Unlock()
	if changed && c.onStatus != nil {
		c.onStatus(v)
	}
}

func (c *Client) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		err := c.stream(ctx)
		c.setConnected(false)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("event stream disconnected, reconnecting",
			"url", c.url, "delay", c.backoff, "error", err)

		timer := c.clock.NewTimer(c.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
		}
	}
}

// requestURL appends the resumption parameter once an event was delivered.
func (c *Client) requestURL() (string, uint64, bool, error) {
	id, ok := c.LastEventID()
	if !ok {
		return c.url, 0, false, nil
	}
	u, err := url.Parse(c.url)
	if err != nil {
		return "", 0, false, fmt.Errorf("parsing stream url: %w", err)
	}
	q := u.Query()
	q.Set("lastEventId", strconv.FormatUint(id, 10))
	u.RawQuery = q.Encode()
	return u.String(), id, true, nil
}

// stream runs one connection until it ends. The returned error describes why.
func (c *Client) stream(ctx context.Context) error {
	target, lastID, resume, err := c.requestURL()
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if resume {
		req.Header.Set("Last-Event-ID", strconv.FormatUint(lastID, 10))
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("opening stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("opening stream: HTTP %d", resp.StatusCode)
	}

	c.setConnected(true)
	c.logger.Info("event stream connected", "url", c.url, "resume", resume, "last_event_id", lastID)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	var f frame
	for scanner.Scan() {
		if !f.line(scanner.Text()) {
			continue
		}
		if !f.empty() {
			c.dispatch(ctx, &f)
		}
		f.reset()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	return errors.New("stream closed by server")
}

// dispatch decodes a frame and delivers it. Bad frames are logged and
// skipped without moving the resume position; replayed frames at or below
// it are discarded.
func (c *Client) dispatch(ctx context.Context, f *frame) {
	ev, err := f.decode()
	if errors.Is(err, errNoData) {
		return
	}
	if err != nil {
		c.logger.Warn("dropping malformed stream frame", "url", c.url, "error", err)
		return
	}

	c.mu.Lock()
	if f.hasID {
		if c.hasLast && ev.ID <= c.lastID {
			c.mu.Unlock()
			c.logger.Debug("skipping replayed event", "id", ev.ID, "last_event_id", c.lastID)
			return
		}
		c.lastID = ev.ID
		c.hasLast = true
	}
	subs := make([]*subscriber, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		s.send(ctx, ev)
	}
}
