// Package obs — WebSocket hub streaming live bank status frames to
// observers. One frame is broadcast per status iteration, and the hub's
// lifetime is tied to the engine's stop signal.
package obs

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/atmx/bank-engine/internal/metrics"
	"github.com/atmx/bank-engine/internal/model"
)

const (
	pingInterval = 30 * time.Second
	readWindow   = 2 * pingInterval
)

// AccountStatus is one account's row in a status frame.
type AccountStatus struct {
	ID         int   `json:"id"`
	BalanceILS int64 `json:"balance_ils"`
	BalanceUSD int64 `json:"balance_usd"`
}

// StatusFrame is the JSON message sent to observers each status iteration.
type StatusFrame struct {
	Type     string          `json:"type"`
	RunID    string          `json:"run_id"`
	BankILS  int64           `json:"bank_ils"`
	BankUSD  int64           `json:"bank_usd"`
	Accounts []AccountStatus `json:"accounts"`
}

// Hub fans status frames out to WebSocket observers. Observers are
// strictly read-only: inbound frames are discarded. All writes — frames and
// keepalive pings — happen on the Run goroutine, so no per-connection write
// pump is needed.
type Hub struct {
	runID          string
	stop           <-chan struct{}
	allowAnyOrigin bool
	frames         chan []byte

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewHub creates a hub tagging every frame with runID. The hub shuts down
// when stop is closed (the engine's Stopping channel). allowAnyOrigin
// disables the same-host origin check; leave it off outside development.
func NewHub(runID string, stop <-chan struct{}, allowAnyOrigin bool) *Hub {
	return &Hub{
		runID:          runID,
		stop:           stop,
		allowAnyOrigin: allowAnyOrigin,
		frames:         make(chan []byte, 256),
		conns:          make(map[*websocket.Conn]struct{}),
	}
}

// Run delivers queued frames and keepalive pings until the engine stops,
// then closes every observer connection. Must be called in a goroutine.
func (h *Hub) Run() {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-h.stop:
			h.closeAll()
			return
		case frame := <-h.frames:
			h.writeAll(websocket.TextMessage, frame)
		case <-ping.C:
			h.writeAll(websocket.PingMessage, nil)
		}
	}
}

// BroadcastStatus queues a snapshot for delivery. Frames are dropped rather
// than blocking the status service when the buffer is full.
func (h *Hub) BroadcastStatus(snap model.Snapshot) {
	frame := StatusFrame{
		Type:     "bank_status",
		RunID:    h.runID,
		BankILS:  snap.BankILS,
		BankUSD:  snap.BankUSD,
		Accounts: make([]AccountStatus, 0, len(snap.Entries)),
	}
	for _, se := range snap.Entries {
		frame.Accounts = append(frame.Accounts, AccountStatus{
			ID:         se.ID,
			BalanceILS: se.BalanceILS,
			BalanceUSD: se.BalanceUSD,
		})
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	select {
	case h.frames <- data:
	default:
	}
}

// writeAll sends one message to every observer, dropping connections whose
// write fails.
func (h *Hub) writeAll(messageType int, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := conn.WriteMessage(messageType, data); err != nil {
			conn.Close()
			delete(h.conns, conn)
		}
	}
	metrics.WebSocketClients.Set(float64(len(h.conns)))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "bank stopped"))
		conn.Close()
		delete(h.conns, conn)
	}
	metrics.WebSocketClients.Set(0)
}

func (h *Hub) add(conn *websocket.Conn) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
	n := len(h.conns)
	metrics.WebSocketClients.Set(float64(n))
	return n
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn]; !ok {
		return
	}
	conn.Close()
	delete(h.conns, conn)
	metrics.WebSocketClients.Set(float64(len(h.conns)))
}

// checkOrigin accepts requests without an Origin header (non-browser
// clients) and browser requests from the server's own host. Cross-origin
// observers require allowAnyOrigin.
func (h *Hub) checkOrigin(r *http.Request) bool {
	if h.allowAnyOrigin {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

// HandleWS handles WebSocket upgrade requests at GET /ws. Each connection
// gets only a read loop; it exists to refresh the liveness deadline on pongs
// and to notice disconnects, since observers never send data the hub acts on.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}
	slog.Info("status observer connected", "total", h.add(conn))

	go func() {
		defer h.remove(conn)
		conn.SetReadDeadline(time.Now().Add(readWindow))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(readWindow))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			conn.SetReadDeadline(time.Now().Add(readWindow))
		}
	}()
}
