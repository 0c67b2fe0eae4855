// Package hub fans supervisor events out to connected dashboard clients
// over websockets and feeds their control messages back to the supervisor.
package hub

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/craftdeck/craftdeck/internal/history"
	"github.com/craftdeck/craftdeck/internal/metrics"
	"github.com/craftdeck/craftdeck/internal/supervisor"
)

// Frame is the JSON envelope exchanged on the websocket. Server-to-client
// frames carry type status, console, players, properties or history.
// Client-to-server frames carry type start, stop, restart or command.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type inboundFrame struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// Controller is the subset of the supervisor the hub drives and snapshots.
type Controller interface {
	Start()
	Stop()
	Restart()
	SendCommand(command string)
	Status() supervisor.Status
	Console() []string
	Players() []string
}

// HistorySource returns recent lifecycle events for the connect snapshot.
type HistorySource func(ctx context.Context, limit int) ([]history.Record, error)

// sendBuffer bounds the per-client outbound queue. A client that cannot
// drain this many frames is dropped rather than stalling the broadcast.
const sendBuffer = 256

const snapshotHistoryLimit = 50

type client struct {
	conn *websocket.Conn
	send chan Frame
}

// Hub tracks connected clients and broadcasts supervisor events to all of
// them. It satisfies supervisor.Broadcaster, so the supervisor stays unaware
// of websockets.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	ctrl    Controller
	props   func() map[string]string
	hist    HistorySource
}

func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard is same-origin; embedders can front this
			// with their own origin policy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// SetController wires the supervisor in after construction. The hub must
// exist first because the supervisor takes it as its Broadcaster.
func (h *Hub) SetController(ctrl Controller) {
	h.mu.Lock()
	h.ctrl = ctrl
	h.mu.Unlock()
}

// SetPropertiesSource sets the provider for the properties snapshot frame.
func (h *Hub) SetPropertiesSource(fn func() map[string]string) {
	h.mu.Lock()
	h.props = fn
	h.mu.Unlock()
}

// SetHistorySource sets the provider for the history snapshot frame.
// A nil source disables the frame.
func (h *Hub) SetHistorySource(fn HistorySource) {
	h.mu.Lock()
	h.hist = fn
	h.mu.Unlock()
}

// BroadcastStatus implements supervisor.Broadcaster.
func (h *Hub) BroadcastStatus(st supervisor.Status) {
	h.broadcast(Frame{Type: "status", Data: string(st)})
}

// BroadcastConsole implements supervisor.Broadcaster.
func (h *Hub) BroadcastConsole(line string) {
	h.broadcast(Frame{Type: "console", Data: line})
}

// BroadcastPlayers implements supervisor.Broadcaster.
func (h *Hub) BroadcastPlayers(players []string) {
	if players == nil {
		players = []string{}
	}
	h.broadcast(Frame{Type: "players", Data: players})
}

// ClientCount reports the number of connected websocket clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleWS upgrades the request and serves the client until it disconnects.
// The snapshot frames are queued before the client joins the broadcast set,
// so every client sees snapshot first, live events after.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	cl := &client{conn: conn, send: make(chan Frame, sendBuffer)}

	// The snapshot reads back into the supervisor, which broadcasts under
	// its own lock, so it must be taken before h.mu is held.
	snapshot := h.snapshot()

	h.mu.Lock()
	for _, f := range snapshot {
		cl.send <- f
	}
	h.clients[cl] = struct{}{}
	metrics.SetConnectedClients(len(h.clients))
	ctrl := h.ctrl
	h.mu.Unlock()

	go h.writePump(cl)
	h.readPump(cl, ctrl)
}

// Close disconnects all clients. Used on daemon shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		clients = append(clients, cl)
	}
	h.clients = make(map[*client]struct{})
	metrics.SetConnectedClients(0)
	h.mu.Unlock()

	for _, cl := range clients {
		close(cl.send)
	}
}

func (h *Hub) snapshot() []Frame {
	h.mu.Lock()
	ctrl, props, hist := h.ctrl, h.props, h.hist
	h.mu.Unlock()

	frames := make([]Frame, 0, 5)
	if ctrl != nil {
		frames = append(frames, Frame{Type: "status", Data: string(ctrl.Status())})
		lines := ctrl.Console()
		if lines == nil {
			lines = []string{}
		}
		frames = append(frames, Frame{Type: "console", Data: lines})
		players := ctrl.Players()
		if players == nil {
			players = []string{}
		}
		frames = append(frames, Frame{Type: "players", Data: players})
	}
	if props != nil {
		frames = append(frames, Frame{Type: "properties", Data: props()})
	}
	if hist != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		recs, err := hist(ctx, snapshotHistoryLimit)
		cancel()
		if err != nil {
			h.logger.Warn("history snapshot failed", "error", err)
		} else {
			frames = append(frames, Frame{Type: "history", Data: recs})
		}
	}
	return frames
}

func (h *Hub) broadcast(f Frame) {
	h.mu.Lock()
	var slow []*client
	for cl := range h.clients {
		select {
		case cl.send <- f:
		default:
			slow = append(slow, cl)
		}
	}
	for _, cl := range slow {
		delete(h.clients, cl)
		close(cl.send)
	}
	metrics.SetConnectedClients(len(h.clients))
	h.mu.Unlock()

	if len(slow) > 0 {
		h.logger.Warn("dropped slow websocket clients", "count", len(slow))
	}
}

func (h *Hub) writePump(cl *client) {
	for f := range cl.send {
		if err := cl.conn.WriteJSON(f); err != nil {
			break
		}
	}
	_ = cl.conn.Close()
}

func (h *Hub) readPump(cl *client, ctrl Controller) {
	defer h.remove(cl)
	for {
		var in inboundFrame
		if err := cl.conn.ReadJSON(&in); err != nil {
			return
		}
		if ctrl == nil {
			continue
		}
		switch in.Type {
		case "start":
			ctrl.Start()
		case "stop":
			ctrl.Stop()
		case "restart":
			ctrl.Restart()
		case "command":
			ctrl.SendCommand(in.Data)
		default:
			h.logger.Debug("ignoring unknown websocket frame", "type", in.Type)
		}
	}
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	_, ok := h.clients[cl]
	if ok {
		delete(h.clients, cl)
		metrics.SetConnectedClients(len(h.clients))
	}
	h.mu.Unlock()
	if ok {
		close(cl.send)
	}
}
