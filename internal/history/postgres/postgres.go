package postgres

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/craftdeck/craftdeck/internal/history"
)

// DB implements history.Store on PostgreSQL via the pgx stdlib driver.
type DB struct {
	db *sql.DB
}

func New(dsn string) (*DB, error) {
	d, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{db: d}, nil
}

func (p *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS server_events(
			id BIGSERIAL PRIMARY KEY,
			type TEXT NOT NULL,
			pid BIGINT NOT NULL,
			exit_code BIGINT NOT NULL,
			note TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_server_events_occurred_at ON server_events(occurred_at);`,
	}
	for _, q := range stmts {
		if _, err := p.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (p *DB) Close() error { return p.db.Close() }

func (p *DB) Send(ctx context.Context, rec history.Record) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO server_events(type, pid, exit_code, note, occurred_at)
		VALUES($1, $2, $3, $4, $5);`,
		string(rec.Type), rec.PID, rec.ExitCode, rec.Note, rec.OccurredAt.UTC())
	return err
}

func (p *DB) Recent(ctx context.Context, limit int) ([]history.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, type, pid, exit_code, note, occurred_at
		FROM server_events
		ORDER BY occurred_at DESC, id DESC
		LIMIT $1;`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
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
