package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alfredjeanlab/roundtable/internal/model"
	"github.com/alfredjeanlab/roundtable/internal/store"
)

// messageColumns is the column list used for SELECT statements on the
// messages table.
const messageColumns = `id, session_id, role, content_text, round_index, phase, created_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryLoadHistory(ctx context.Context, db executor, sessionID string) ([]model.MessageRecord, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE session_id = $1 ORDER BY created_at, id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var recs []model.MessageRecord
	for rows.Next() {
		r, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		recs = append(recs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

func queryGetMessage(ctx context.Context, db executor, id string) (*model.MessageRecord, error) {
	r, err := scanMessage(db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	return r, nil
}

func queryAppendMessage(ctx context.Context, db executor, r *model.MessageRecord) (bool, error) {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, role, content_text, round_index, phase, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		r.ID,
		r.SessionID,
		string(r.Role),
		r.ContentText,
		r.RoundIndex,
		nullString(string(r.Phase)),
		createdAt,
	)
	if err != nil {
		return false, fmt.Errorf("append message %s: %w", r.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func queryListSessions(ctx context.Context, db executor) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT session_id FROM messages GROUP BY session_id ORDER BY max(created_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
