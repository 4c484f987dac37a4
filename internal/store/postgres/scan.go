package postgres

import (
	"database/sql"

	"github.com/alfredjeanlab/roundtable/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanMessage scans a single row into a model.MessageRecord.
// The row must contain columns in the order defined by messageColumns.
func scanMessage(row scannable) (*model.MessageRecord, error) {
	var r model.MessageRecord
	var (
		role  string
		phase sql.NullString
	)
	err := row.Scan(
		&r.ID,
		&r.SessionID,
		&role,
		&r.ContentText,
		&r.RoundIndex,
		&phase,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Role = model.Role(role)
	r.Phase = model.Phase(phase.String)
	return &r, nil
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
