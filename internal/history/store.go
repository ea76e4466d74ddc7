// Package history journals the statements run from the leapdriver shell.
// Entries live in a SQLite database whose schema is managed by goose.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Outcome classifies how a journaled statement ended.
type Outcome string

// Statement outcomes.
const (
	OutcomeResult Outcome = "result"
	OutcomeCount  Outcome = "count"
	OutcomeError  Outcome = "error"
)

// Entry is one journaled statement.
type Entry struct {
	ID           string
	ConnectionID string
	Engine       string
	SQL          string
	Outcome      Outcome
	// Rows is the result row count or the affected-row count.
	Rows       int64
	Error      string
	Duration   time.Duration
	ExecutedAt time.Time
}

// Store is the SQLite-backed statement journal.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewStore creates a store. A nil logger discards output.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{logger: logger}
}

// Open opens the journal at path and applies pending migrations.
// Use ":memory:" for a throwaway journal.
func (s *Store) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return fmt.Errorf("failed to create history directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	// :memory: databases exist per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping history database: %w", err)
	}

	s.db = db
	s.path = path
	if err := s.Migrate(); err != nil {
		_ = db.Close()
		s.db = nil
		return err
	}
	s.logger.Debug("history store opened", slog.String("path", path))
	return nil
}

// Path returns the path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Close closes the journal.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record appends e to the journal, filling in ID and ExecutedAt when unset.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if s.db == nil {
		return Entry{}, fmt.Errorf("database not opened")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.ExecutedAt.IsZero() {
		e.ExecutedAt = time.Now().UTC()
	}

	var errMsg *string
	if e.Error != "" {
		errMsg = &e.Error
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO statements (id, connection_id, engine, sql_text, outcome, row_count, error, duration_us, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ConnectionID, e.Engine, e.SQL, string(e.Outcome), e.Rows, errMsg,
		e.Duration.Microseconds(), e.ExecutedAt.UnixMicro(),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to record statement: %w", err)
	}

	s.logger.Debug("statement journaled", slog.String("id", e.ID), slog.String("outcome", string(e.Outcome)))
	return e, nil
}

const selectEntry = `SELECT id, connection_id, engine, sql_text, outcome, row_count, error, duration_us, executed_at FROM statements`

// Get returns the entry with the given id.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	if s.db == nil {
		return Entry{}, fmt.Errorf("database not opened")
	}
	e, err := scanEntry(s.db.QueryRowContext(ctx, selectEntry+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("history entry not found: %s", id)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("failed to get history entry: %w", err)
	}
	return e, nil
}

// List returns up to limit entries, newest first. A non-positive limit
// returns every entry.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, selectEntry+` ORDER BY executed_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	return entries, nil
}

// Clear deletes every entry and reports how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database not opened")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM statements`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e          Entry
		outcome    string
		errMsg     sql.NullString
		durationUS int64
		executedUS int64
	)
	err := row.Scan(&e.ID, &e.ConnectionID, &e.Engine, &e.SQL, &outcome, &e.Rows, &errMsg, &durationUS, &executedUS)
	if err != nil {
		return Entry{}, err
	}
	e.Outcome = Outcome(outcome)
	e.Error = errMsg.String
	e.Duration = time.Duration(durationUS) * time.Microsecond
	e.ExecutedAt = time.UnixMicro(executedUS).UTC()
	return e, nil
}
