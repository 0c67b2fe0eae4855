package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/craftdeck/craftdeck/internal/history"
)

// Store sends lifecycle events to ClickHouse using the official Go client.
// Intended for fleets that aggregate dashboard activity centrally.
type Store struct {
	conn  driver.Conn
	table string
}

func New(addr, table string) (*Store, error) {
	if table == "" {
		table = "server_events"
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: "default",
			Username: "default",
			Password: "",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test the connection
	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &Store{conn: conn, table: table}, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		type String,
		pid Int64,
		exit_code Int64,
		note String,
		occurred_at DateTime64(3)
	) ENGINE = MergeTree() ORDER BY occurred_at`, s.table)
	if err := s.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure ClickHouse schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Store) Send(ctx context.Context, rec history.Record) error {
	query := fmt.Sprintf(`INSERT INTO %s (type, pid, exit_code, note, occurred_at) VALUES (?, ?, ?, ?, ?)`, s.table)
	err := s.conn.Exec(ctx, query,
		string(rec.Type),
		rec.PID,
		rec.ExitCode,
		rec.Note,
		rec.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event into ClickHouse: %w", err)
	}
	return nil
}

func (s *Store) Recent(ctx context.Context, limit int) ([]history.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT type, pid, exit_code, note, occurred_at FROM %s ORDER BY occurred_at DESC LIMIT %d`, s.table, limit)
	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query ClickHouse history: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := make([]history.Record, 0)
	for rows.Next() {
		var r history.Record
		var typ string
		if err := rows.Scan(&typ, &r.PID, &r.ExitCode, &r.Note, &r.OccurredAt); err != nil {
			return nil, err
		}
		r.Type = history.EventType(typ)
		out = append(out, r)
	}
	return out, rows.Err()
}
