package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/roundtable/internal/model"
)

// ErrNotFound is returned when a requested message does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for a local mirror of session
// messages.
type Store interface {
	// LoadHistory returns a session's messages ordered by creation time.
	LoadHistory(ctx context.Context, sessionID string) ([]model.MessageRecord, error)
	// GetMessage returns one message by id, or ErrNotFound.
	GetMessage(ctx context.Context, id string) (*model.MessageRecord, error)
	// AppendMessage stores a message. Storing an id that already exists is
	// not an error and reports false.
	AppendMessage(ctx context.Context, rec *model.MessageRecord) (bool, error)
	// ListSessions returns the ids of mirrored sessions, most recent first.
	ListSessions(ctx context.Context) ([]string, error)

	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error the transaction is rolled back; otherwise it is committed.
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	Close() error
}
