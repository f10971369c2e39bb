package sync

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeTimeout = 2 * time.Second

// Hub fans library events out to TCP and websocket clients. A client that
// subscribed to a user only receives that user's events.
type Hub struct {
	log *zap.Logger

	mu        sync.Mutex
	clients   map[net.Conn]string
	wsClients map[*websocket.Conn]string
}

type Stats struct {
	TCPClients int `json:"tcp_clients"`
	WSClients  int `json:"ws_clients"`
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:       log.With(zap.String("component", "hub")),
		clients:   make(map[net.Conn]string),
		wsClients: make(map[*websocket.Conn]string),
	}
}

func (h *Hub) Add(conn net.Conn) {
	h.mu.Lock()
	h.clients[conn] = ""
	h.mu.Unlock()
}

func (h *Hub) Remove(conn net.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

// Follow restricts a TCP client to the events of one user.
func (h *Hub) Follow(conn net.Conn, userID string) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		h.clients[conn] = userID
	}
	h.mu.Unlock()
}

// AddWS registers a websocket following userID, or every user when empty.
func (h *Hub) AddWS(ws *websocket.Conn, userID string) {
	h.mu.Lock()
	h.wsClients[ws] = userID
	h.mu.Unlock()
}

func (h *Hub) RemoveWS(ws *websocket.Conn) {
	h.mu.Lock()
	delete(h.wsClients, ws)
	h.mu.Unlock()
	_ = ws.Close()
}

func (h *Hub) FollowWS(ws *websocket.Conn, userID string) {
	h.mu.Lock()
	if _, ok := h.wsClients[ws]; ok {
		h.wsClients[ws] = userID
	}
	h.mu.Unlock()
}

// Broadcast sends ev to every client following its user or no user at all.
// Clients that cannot keep up are dropped.
func (h *Hub) Broadcast(ev LibraryEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("encode event failed", zap.Error(err))
		return
	}
	b = append(b, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	for c, follow := range h.clients {
		if follow != "" && follow != ev.UserID {
			continue
		}
		_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
		w := bufio.NewWriter(c)
		_, werr := w.Write(b)
		if werr == nil {
			werr = w.Flush()
		}
		if werr != nil {
			h.log.Debug("dropping tcp client", zap.Stringer("addr", c.RemoteAddr()), zap.Error(werr))
			_ = c.Close()
			delete(h.clients, c)
		}
	}

	for ws, follow := range h.wsClients {
		if follow != "" && follow != ev.UserID {
			continue
		}
		_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
			h.log.Debug("dropping ws client", zap.Error(err))
			_ = ws.Close()
			delete(h.wsClients, ws)
		}
	}
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		TCPClients: len(h.clients),
		WSClients:  len(h.wsClients),
	}
}

func (h *Hub) Welcome(conn net.Conn) {
	msg := fmt.Sprintf("{\"type\":\"welcome\",\"message\":\"connected\",\"clients\":%d}\n", h.Count())
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, _ = conn.Write([]byte(msg))
}

// parseSubscribe reads a subscribe message; other lines are ignored.
func parseSubscribe(line []byte) (string, bool) {
	var msg subscribeMsg
	if err := json.Unmarshal(line, &msg); err != nil || msg.Type != "subscribe" {
		return "", false
	}
	return msg.UserID, true
}
