// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/roundtable/internal/model"
	"github.com/alfredjeanlab/roundtable/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// NotifyChannel is the LISTEN/NOTIFY channel the insert trigger publishes
// on. Payloads carry only the row's id and session_id, since NOTIFY
// rejects payloads of 8000 bytes or more; listeners read the row back
// with GetMessage.
const NotifyChannel = "roundtable_messages"

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// Open connects to the PostgreSQL database at the given URL and configures
// the connection pool. Call Migrate to create the schema.
func Open(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Migrate applies pending schema migrations.
func (s *PostgresStore) Migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(s.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) LoadHistory(ctx context.Context, sessionID string) ([]model.MessageRecord, error) {
	return queryLoadHistory(ctx, s.db, sessionID)
}

func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*model.MessageRecord, error) {
	return queryGetMessage(ctx, s.db, id)
}

func (s *PostgresStore) AppendMessage(ctx context.Context, rec *model.MessageRecord) (bool, error) {
	return queryAppendMessage(ctx, s.db, rec)
}

func (s *PostgresStore) ListSessions(ctx context.Context) ([]string, error) {
	return queryListSessions(ctx, s.db)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) LoadHistory(ctx context.Context, sessionID string) ([]model.MessageRecord, error) {
	return queryLoadHistory(ctx, s.tx, sessionID)
}

func (s *txStore) GetMessage(ctx context.Context, id string) (*model.MessageRecord, error) {
	return queryGetMessage(ctx, s.tx, id)
}

func (s *txStore) AppendMessage(ctx context.Context, rec *model.MessageRecord) (bool, error) {
	return queryAppendMessage(ctx, s.tx, rec)
}

func (s *txStore) ListSessions(ctx context.Context) ([]string, error) {
	return queryListSessions(ctx, s.tx)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
