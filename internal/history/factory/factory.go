package factory

import (
	"fmt"
	"strings"

	"github.com/craftdeck/craftdeck/internal/history"
	"github.com/craftdeck/craftdeck/internal/history/clickhouse"
	"github.com/craftdeck/craftdeck/internal/history/postgres"
	"github.com/craftdeck/craftdeck/internal/history/sqlite"
)

// Config selects a history backend.
type Config struct {
	Type  string `mapstructure:"type"`  // sqlite | postgres | clickhouse | "" (disabled)
	DSN   string `mapstructure:"dsn"`   // path for sqlite, URL for postgres, host:port for clickhouse
	Table string `mapstructure:"table"` // clickhouse only, defaults to server_events
}

// New builds a history store from config. A nil store with nil error means
// history persistence is disabled.
func New(cfg Config) (history.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "":
		return nil, nil
	case "sqlite":
		return sqlite.New(cfg.DSN)
	case "postgres", "postgresql":
		return postgres.New(cfg.DSN)
	case "clickhouse":
		return clickhouse.New(cfg.DSN, cfg.Table)
	default:
		return nil, fmt.Errorf("unknown history type: %s", cfg.Type)
	}
}
