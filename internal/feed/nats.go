package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/alfredjeanlab/roundtable/internal/model"
)

// NATSFeed subscribes to per-session message subjects.
type NATSFeed struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewNATSFeed connects to NATS with automatic reconnection support.
// Extra nats.Option values (e.g. disconnect/reconnect handlers) can be appended.
func NewNATSFeed(url string, logger *slog.Logger, opts ...nats.Option) (*NATSFeed, error) {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := []nats.Option{
		nats.Name("roundtable"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSFeed{conn: nc, logger: logger}, nil
}

// Subscribe implements InsertFeed. Records for other sessions and malformed
// payloads are dropped.
func (f *NATSFeed) Subscribe(ctx context.Context, sessionID string) (<-chan model.Message, func(), error) {
	ch := make(chan model.Message, subscriberBuffer)

	var (
		mu     sync.Mutex
		closed bool
		once   sync.Once
	)

	subject := Subject(sessionID)
	sub, err := f.conn.Subscribe(subject, func(msg *nats.Msg) {
		rec, err := decodeRecord(msg.Data)
		if err != nil {
			f.logger.Warn("dropping malformed insert", "subject", msg.Subject, "error", err)
			return
		}
		if rec.SessionID != "" && rec.SessionID != sessionID {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- rec.ToMessage():
		default:
			// Drop message if channel is full to avoid blocking the NATS client.
			f.logger.Warn("insert feed full, dropping message", "session", sessionID, "id", rec.ID)
		}
	})
	if err != nil {
		close(ch)
		return nil, nil, fmt.Errorf("subscribing to %s: %w", subject, err)
	}
	// Flush ensures the subscription is registered on the server before
	// returning, so that messages published on other connections are routed.
	if err := f.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		close(ch)
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}

	stop := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(stop)
			_ = sub.Unsubscribe()
			mu.Lock()
			closed = true
			close(ch)
			mu.Unlock()
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

func (f *NATSFeed) Close() error {
	f.conn.Close()
	return nil
}

// NATSPublisher publishes persisted messages to their session subject.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("roundtable-relay"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc}, nil
}

// Publish sends rec to its session subject.
func (p *NATSPublisher) Publish(_ context.Context, rec *model.MessageRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}
	return p.conn.Publish(Subject(rec.SessionID), data)
}

// Flush waits until published messages reach the server.
func (p *NATSPublisher) Flush() error {
	return p.conn.Flush()
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}
