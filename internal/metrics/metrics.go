package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	serverStarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "craftdeck",
			Subsystem: "server",
			Name:      "starts_total",
			Help:      "Number of child server launches.",
		},
	)
	serverStops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "craftdeck",
			Subsystem: "server",
			Name:      "stops_total",
			Help:      "Number of observed child server exits.",
		},
	)
	serverRestarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "craftdeck",
			Subsystem: "server",
			Name:      "restarts_total",
			Help:      "Number of restart cycles issued from the dashboard.",
		},
	)
	commandsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "craftdeck",
			Subsystem: "server",
			Name:      "commands_total",
			Help:      "Number of commands forwarded to the child server stdin.",
		},
	)
	consoleLines = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "craftdeck",
			Subsystem: "server",
			Name:      "console_lines_total",
			Help:      "Number of console lines captured from the child server.",
		},
	)
	currentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "craftdeck",
			Subsystem: "server",
			Name:      "current_state",
			Help:      "Current supervisor state (1 = active state, 0 = inactive).",
		}, []string{"state"},
	)
	connectedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "craftdeck",
			Subsystem: "hub",
			Name:      "connected_clients",
			Help:      "Number of dashboard viewers currently connected.",
		},
	)
	onlinePlayers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "craftdeck",
			Subsystem: "server",
			Name:      "online_players",
			Help:      "Players currently online according to the console log.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{serverStarts, serverStops, serverRestarts, commandsSent, consoleLines, currentState, connectedClients, onlinePlayers}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// RegisterDefault registers with the default Prometheus registry.
func RegisterDefault() error { return Register(prometheus.DefaultRegisterer) }

// Handler returns an http.Handler serving Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncStart() {
	if regOK.Load() {
		serverStarts.Inc()
	}
}

func IncStop() {
	if regOK.Load() {
		serverStops.Inc()
	}
}

func IncRestart() {
	if regOK.Load() {
		serverRestarts.Inc()
	}
}

func IncCommand() {
	if regOK.Load() {
		commandsSent.Inc()
	}
}

func IncConsoleLine() {
	if regOK.Load() {
		consoleLines.Inc()
	}
}

// SetState marks state as the single active state on the current_state gauge.
func SetState(state string, all []string) {
	if !regOK.Load() {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1.0
		}
		currentState.WithLabelValues(s).Set(v)
	}
}

func SetConnectedClients(n int) {
	if regOK.Load() {
		connectedClients.Set(float64(n))
	}
}

func SetOnlinePlayers(n int) {
	if regOK.Load() {
		onlinePlayers.Set(float64(n))
	}
}
