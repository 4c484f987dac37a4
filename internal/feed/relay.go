package feed

import (
	"context"
	"log/slog"

	"github.com/alfredjeanlab/roundtable/internal/model"
)

// Publisher forwards a persisted row to another transport.
type Publisher interface {
	Publish(ctx context.Context, rec *model.MessageRecord) error
}

// RecordSource delivers every persisted row. *PGFeed implements it.
type RecordSource interface {
	Records(ctx context.Context) (<-chan *model.MessageRecord, func(), error)
}

// Relay forwards rows from src to pub until ctx is done or src closes, and
// returns the number forwarded. A failed publish is logged and skipped.
func Relay(ctx context.Context, src RecordSource, pub Publisher, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ch, cancel, err := src.Records(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	n := 0
	for {
		select {
		case <-ctx.Done():
			return n, nil
		case rec, ok := <-ch:
			if !ok {
				return n, nil
			}
			if err := pub.Publish(ctx, rec); err != nil {
				logger.Warn("relay publish failed", "session", rec.SessionID, "id", rec.ID, "error", err)
				continue
			}
			n++
			logger.Debug("relayed message", "session", rec.SessionID, "id", rec.ID)
		}
	}
}
