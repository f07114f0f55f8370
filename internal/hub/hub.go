// Package hub broadcasts live search information to websocket subscribers,
// so the engine can be watched while it thinks.
package hub

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/pauxav06/ChePP/internal/engine"
)

// infoPayload is the wire form of a per-depth search report.
type infoPayload struct {
	Depth    int      `json:"depth"`
	Score    int      `json:"score"`
	Nodes    uint64   `json:"nodes"`
	TimeMs   int64    `json:"time_ms"`
	BestMove string   `json:"best_move"`
	PV       []string `json:"pv"`
}

// Hub tracks connected clients and fans search info out to them. Dead
// clients are dropped; slow clients miss reports rather than stall the
// search thread.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte

	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// New creates an empty hub.
func New(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]chan []byte),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// ServeHTTP upgrades the connection and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	send := make(chan []byte, 16)

	h.mu.Lock()
	h.clients[conn] = send
	h.mu.Unlock()

	go h.writer(conn, send)
	go h.reader(conn)
}

func (h *Hub) writer(conn *websocket.Conn, send <-chan []byte) {
	for msg := range send {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.drop(conn)
			return
		}
	}
	conn.Close()
}

// reader drains incoming frames so control messages are processed, and
// unregisters the client when the peer goes away.
func (h *Hub) reader(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.drop(conn)
			return
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if send, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(send)
	}
	h.mu.Unlock()
	conn.Close()
}

// Broadcast sends a search info report to every client. Clients whose send
// buffer is full miss this report.
func (h *Hub) Broadcast(info engine.SearchInfo) {
	payload := infoPayload{
		Depth:    info.Depth,
		Score:    info.Score,
		Nodes:    info.Nodes,
		TimeMs:   info.Time.Milliseconds(),
		BestMove: info.Best.String(),
	}
	for _, m := range info.PV {
		payload.PV = append(payload.PV, m.String())
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	h.mu.Lock()
	for _, send := range h.clients {
		select {
		case send <- data:
		default:
		}
	}
	h.mu.Unlock()
}

// ListenAndServe serves the hub on addr under /watch.
func (h *Hub) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/watch", h)
	h.log.Info().Str("addr", addr).Msg("analysis hub listening")
	return http.ListenAndServe(addr, mux)
}
