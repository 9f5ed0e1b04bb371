package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite via modernc.org/sqlite (pure Go).
type SQLiteStore struct {
	db *sql.DB
}

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// timeFormat has a fixed width so stored times sort as strings.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

var schema = []string{`
	CREATE TABLE IF NOT EXISTS entries (
		id          TEXT PRIMARY KEY,
		target      TEXT NOT NULL,
		place       TEXT NOT NULL,
		parameter   TEXT NOT NULL,
		expression  TEXT NOT NULL,
		value       TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL,
		UNIQUE (target, place, parameter, expression)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_target ON entries(target)`,
}

// NewSQLiteStore opens the store at dbPath, creating the schema when
// needed. Use ":memory:" for a throwaway store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("session: open database: %w", err)
	}
	// Each connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: ping database: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("session: create schema: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Lookup returns the value stored under key.
func (s *SQLiteStore) Lookup(ctx context.Context, key Key) (string, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT value FROM entries WHERE target = ? AND place = ? AND parameter = ? AND expression = ?`,
		key.Target, key.Place, key.Parameter, key.Expression)

	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("session: lookup: %w", err)
	}
	return value, true, nil
}

// Store saves value under key, replacing any previous value. New entries
// get a random UUID.
func (s *SQLiteStore) Store(ctx context.Context, key Key, value string) error {
	now := time.Now().UTC().Format(timeFormat)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (id, target, place, parameter, expression, value, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(target, place, parameter, expression) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at`,
		uuid.New().String(), key.Target, key.Place, key.Parameter, key.Expression, value, now, now)
	if err != nil {
		return fmt.Errorf("session: store: %w", err)
	}
	return nil
}

// List returns the entries of target, most recently updated first. An empty
// target lists every entry.
func (s *SQLiteStore) List(ctx context.Context, target string) ([]*Entry, error) {
	query := `SELECT id, target, place, parameter, expression, value, created_at, updated_at FROM entries`
	var args []any
	if target != "" {
		query += ` WHERE target = ?`
		args = append(args, target)
	}
	query += ` ORDER BY updated_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("session: list entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			e                  Entry
			created, updated string
		)
		if err := rows.Scan(&e.ID, &e.Key.Target, &e.Key.Place, &e.Key.Parameter, &e.Key.Expression, &e.Value, &created, &updated); err != nil {
			return nil, fmt.Errorf("session: scan entry: %w", err)
		}
		if e.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if e.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: iterate rows: %w", err)
	}
	return entries, nil
}

// Purge removes the entries of target, or every entry when target is
// empty. It returns the number of deleted entries.
func (s *SQLiteStore) Purge(ctx context.Context, target string) (int64, error) {
	query, args := `DELETE FROM entries`, []any{}
	if target != "" {
		query += ` WHERE target = ?`
		args = append(args, target)
	}
	return s.exec(ctx, "purge", query, args...)
}

// Cleanup removes entries whose updated_at is older than maxAge from now.
// It returns the number of deleted entries.
func (s *SQLiteStore) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Format(timeFormat)
	return s.exec(ctx, "cleanup", `DELETE FROM entries WHERE updated_at < ?`, cutoff)
}

func (s *SQLiteStore) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("session: %s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("session: rows affected: %w", err)
	}
	return n, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("session: parse time %q: %w", s, err)
	}
	return t, nil
}
