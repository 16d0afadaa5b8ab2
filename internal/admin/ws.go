package admin

import (
	"encoding/json"
	"log"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSMessage is the envelope every admin WebSocket frame carries, matching
// the teacher's internal/proxy WSMessage shape.
type WSMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// Hub tracks connected admin WebSocket clients and polls Source for
// registry changes, broadcasting a "snapshot" message whenever the
// observed state differs from the last broadcast one.
type Hub struct {
	upgrader websocket.Upgrader
	source   *Source

	mu      sync.RWMutex
	clients map[*websocket.Conn]bool

	pollInterval time.Duration
	stop         chan struct{}
}

func NewHub(source *Source) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		source:       source,
		clients:      make(map[*websocket.Conn]bool),
		pollInterval: time.Second,
		stop:         make(chan struct{}),
	}
}

// Start begins the change-detection poll loop.
func (h *Hub) Start() {
	go h.pollLoop()
}

// Stop ends the poll loop and closes every connected client.
func (h *Hub) Stop() {
	close(h.stop)
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
}

func (h *Hub) pollLoop() {
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	var last RegistrySnapshot
	first := true
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			snap := h.source.Snapshot()
			if first || !reflect.DeepEqual(snap, last) {
				h.broadcast("snapshot", snap)
				last = snap
				first = false
			}
		}
	}
}

func (h *Hub) broadcast(msgType string, data interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}
	msg := WSMessage{Type: msgType, Data: data, Timestamp: time.Now().UnixMilli()}
	for conn := range h.clients {
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("admin: websocket broadcast to a client failed: %v", err)
		}
	}
}

// ServeWS upgrades the request to a WebSocket and registers the
// connection until it errors or closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("admin: websocket upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	initial, _ := json.Marshal(WSMessage{Type: "snapshot", Data: h.source.Snapshot(), Timestamp: time.Now().UnixMilli()})
	if err := conn.WriteMessage(websocket.TextMessage, initial); err != nil {
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
