package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/craftdeck/craftdeck/internal/history"
)

// DB implements history.Store for SQLite (modernc.org/sqlite driver, CGO-free).
// DSN is a filesystem path to the SQLite database file. Use ":memory:" for in-memory.

type DB struct {
	db *sql.DB
}

// New opens a SQLite database at path.
func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &DB{db: d}, nil
}

func (s *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS server_events(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			pid INTEGER NOT NULL,
			exit_code INTEGER NOT NULL,
			note TEXT NOT NULL,
			occurred_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_server_events_occurred_at ON server_events(occurred_at);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Close() error { return s.db.Close() }

func (s *DB) Send(ctx context.Context, rec history.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO server_events(type, pid, exit_code, note, occurred_at)
		VALUES(?, ?, ?, ?, ?);`,
		string(rec.Type), rec.PID, rec.ExitCode, rec.Note, rec.OccurredAt.UTC())
	return err
}

func (s *DB) Recent(ctx context.Context, limit int) ([]history.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, pid, exit_code, note, occurred_at
		FROM server_events
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]history.Record, error) {
	out := make([]history.Record, 0)
	for rows.Next() {
		var r history.Record
		var typ string
		if err := rows.Scan(&r.ID, &typ, &r.PID, &r.ExitCode, &r.Note, &r.OccurredAt); err != nil {
			return nil, err
		}
		r.Type = history.EventType(typ)
		out = append(out, r)
	}
	return out, rows.Err()
}
