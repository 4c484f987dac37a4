// Package feed delivers newly persisted messages for a session, the live
// insert channel that complements the token stream.
package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/roundtable/internal/model"
)

// InsertFeed delivers messages as they are persisted.
type InsertFeed interface {
	// Subscribe delivers the session's new messages on the returned channel
	// until ctx is done or the cancel function is called. The channel is
	// closed on either.
	Subscribe(ctx context.Context, sessionID string) (<-chan model.Message, func(), error)
	Close() error
}

// subscriberBuffer is the per-subscription channel capacity. Messages past
// it are dropped; the history load and the token stream cover the gap.
const subscriberBuffer = 64

// Subject returns the NATS subject carrying a session's message inserts.
func Subject(sessionID string) string {
	return "roundtable.sessions." + sessionID + ".messages"
}

// decodeRecord parses a JSON message row.
func decodeRecord(data []byte) (*model.MessageRecord, error) {
	var rec model.MessageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding message record: %w", err)
	}
	if rec.ID == "" {
		return nil, fmt.Errorf("decoding message record: missing id")
	}
	return &rec, nil
}

// NoopFeed is an InsertFeed that never delivers (used when neither NATS nor
// Postgres is configured).
type NoopFeed struct{}

func (NoopFeed) Subscribe(ctx context.Context, _ string) (<-chan model.Message, func(), error) {
	ch := make(chan model.Message)
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, cancel, nil
}

func (NoopFeed) Close() error {
	return nil
}
