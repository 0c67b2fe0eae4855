// Package craftdeck wraps a third-party game server process behind a web
// dashboard: a single-process supervisor, a bounded console buffer, and a
// websocket broadcast channel for live multi-client control.
package craftdeck

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"

	icfg "github.com/craftdeck/craftdeck/internal/config"
	"github.com/craftdeck/craftdeck/internal/history"
	"github.com/craftdeck/craftdeck/internal/history/factory"
	"github.com/craftdeck/craftdeck/internal/hub"
	"github.com/craftdeck/craftdeck/internal/metrics"
	"github.com/craftdeck/craftdeck/internal/properties"
	"github.com/craftdeck/craftdeck/internal/server"
	"github.com/craftdeck/craftdeck/internal/supervisor"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Status = supervisor.Status

const (
	StatusStopped    = supervisor.StatusStopped
	StatusStarting   = supervisor.StatusStarting
	StatusRunning    = supervisor.StatusRunning
	StatusStopping   = supervisor.StatusStopping
	StatusRestarting = supervisor.StatusRestarting
)

type Config = icfg.Config

type ServerConfig = supervisor.Config

type HistoryRecord = history.Record

type HistorySink = history.Sink

func DefaultConfig() Config { return icfg.Default() }

func LoadConfig(path string) (Config, error) { return icfg.Load(path) }

// Deck is a thin facade over the supervisor, hub and history store.
// It provides a stable public API for embedding.
type Deck struct {
	cfg   Config
	sup   *supervisor.Supervisor
	hub   *hub.Hub
	store history.Store
}

// New assembles a Deck from config: the websocket hub, the supervisor wired
// to broadcast through it, the optional history store, and the rotating
// console mirror.
func New(cfg Config, logger *slog.Logger) (*Deck, error) {
	if logger == nil {
		logger = slog.Default()
	}

	h := hub.New(logger)
	sup := supervisor.New(cfg.Server, h, logger)
	h.SetController(sup)

	d := &Deck{cfg: cfg, sup: sup, hub: h}
	h.SetPropertiesSource(d.Properties)

	store, err := factory.New(cfg.History)
	if err != nil {
		return nil, err
	}
	if store != nil {
		if err := store.EnsureSchema(context.Background()); err != nil {
			_ = store.Close()
			return nil, err
		}
		d.store = store
		sup.SetHistorySinks(store)
		h.SetHistorySource(store.Recent)
	}

	if cfg.Log != nil {
		if w := cfg.Log.Writer("console"); w != nil {
			sup.SetOutputMirror(w)
		}
	}
	if cfg.Metrics.Enabled {
		if err := metrics.RegisterDefault(); err != nil {
			logger.Warn("metrics registration failed", "error", err)
		}
	}
	return d, nil
}

func (d *Deck) Start()                     { d.sup.Start() }
func (d *Deck) Stop()                      { d.sup.Stop() }
func (d *Deck) Restart()                   { d.sup.Restart() }
func (d *Deck) SendCommand(command string) { d.sup.SendCommand(command) }
func (d *Deck) Announce(message string)    { d.sup.Announce(message) }
func (d *Deck) Status() Status             { return d.sup.Status() }
func (d *Deck) PID() int                   { return d.sup.PID() }
func (d *Deck) Console() []string          { return d.sup.Console() }
func (d *Deck) Players() []string          { return d.sup.Players() }

// Properties reads the wrapped server's key=value configuration file. The
// path resolves relative to the server working directory unless absolute.
func (d *Deck) Properties() map[string]string {
	p := d.cfg.Server.Properties
	if p == "" {
		return map[string]string{}
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(d.cfg.Server.WorkDir, p)
	}
	return properties.Load(p)
}

// History returns up to limit recent lifecycle events, newest first.
// It returns nil when history is disabled.
func (d *Deck) History(ctx context.Context, limit int) ([]HistoryRecord, error) {
	if d.store == nil {
		return nil, nil
	}
	return d.store.Recent(ctx, limit)
}

// Router returns an embeddable HTTP router for the dashboard and REST API.
func (d *Deck) Router(basePath string) *server.Router {
	r := server.NewRouter(d.sup, d.hub, d.Properties, d.store, basePath)
	if d.cfg.Metrics.Enabled {
		r.EnableMetrics()
	}
	return r
}

// NewHTTPServer starts the dashboard HTTP server on addr.
func (d *Deck) NewHTTPServer(addr string) (*http.Server, error) {
	return server.NewServer(addr, d.Router(d.cfg.BasePath))
}

// Close stops the wrapped server's observers and releases resources. It does
// not stop the wrapped server itself; call Stop first for a clean shutdown.
func (d *Deck) Close() error {
	d.hub.Close()
	err := d.sup.Close()
	if d.store != nil {
		if cerr := d.store.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.RegisterDefault() }
