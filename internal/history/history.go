package history

import (
	"context"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStart EventType = "start"
	EventReady EventType = "ready"
	EventStop  EventType = "stop"
)

// Record is one supervisor lifecycle event as persisted.
type Record struct {
	ID         int64     `json:"id"`
	Type       EventType `json:"type"`
	PID        int64     `json:"pid"`
	ExitCode   int64     `json:"exit_code"`
	Note       string    `json:"note"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Sink is a destination for lifecycle events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, rec Record) error
}

// Store is a queryable sink backing the dashboard's history view.
type Store interface {
	Sink
	EnsureSchema(ctx context.Context) error
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}
