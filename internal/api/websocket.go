package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/meridian-labs/resolverd/internal/store"
	"github.com/meridian-labs/resolverd/pkg/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSEvent is one frame delivered over a swap's event stream.
type WSEvent struct {
	Type      store.EventType `json:"type"`
	Data      interface{}     `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type wsBroadcast struct {
	swapID string
	event  *WSEvent
}

// WSClient is one connection subscribed to a single swap's events: the
// route it connected on (`/swaps/{id}/events`) pins the swap id for the
// life of the connection.
type WSClient struct {
	conn   *websocket.Conn
	send   chan []byte
	swapID string
	hub    *WSHub
}

// WSHub fans swap events out to every client watching that swap.
type WSHub struct {
	clients    map[string]map[*WSClient]bool // swapID -> clients
	broadcast  chan wsBroadcast
	register   chan *WSClient
	unregister chan *WSClient
	log        *logging.Logger
	mu         sync.RWMutex
}

// NewWSHub builds an empty hub. Call Run in a goroutine before Broadcast is
// used.
func NewWSHub(log *logging.Logger) *WSHub {
	if log == nil {
		log = logging.Default()
	}
	return &WSHub{
		clients:    make(map[string]map[*WSClient]bool),
		broadcast:  make(chan wsBroadcast, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		log:        log.Component("ws"),
	}
}

// Run drives the hub's event loop until the process exits; it is never
// cancelled mid-flight, matching the ambient codebase's fire-and-forget hub
// lifecycle.
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.swapID] == nil {
				h.clients[client.swapID] = make(map[*WSClient]bool)
			}
			h.clients[client.swapID][client] = true
			h.mu.Unlock()
			h.log.Debug("client subscribed", "swap", client.swapID)

		case client := <-h.unregister:
			h.mu.Lock()
			if set, ok := h.clients[client.swapID]; ok {
				if _, ok := set[client]; ok {
					delete(set, client)
					close(client.send)
				}
				if len(set) == 0 {
					delete(h.clients, client.swapID)
				}
			}
			h.mu.Unlock()
			h.log.Debug("client unsubscribed", "swap", client.swapID)

		case b := <-h.broadcast:
			data, err := json.Marshal(b.event)
			if err != nil {
				h.log.Error("marshal event failed", "err", err)
				continue
			}

			h.mu.RLock()
			for client := range h.clients[b.swapID] {
				select {
				case client.send <- data:
				default:
					h.log.Warn("client send buffer full, dropping", "swap", b.swapID)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast delivers data, tagged with eventType, to every client watching
// swapID. Non-blocking: a full queue drops the event rather than stall the
// engine loop that produced it.
func (h *WSHub) Broadcast(swapID string, eventType store.EventType, data interface{}) {
	event := &WSEvent{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	select {
	case h.broadcast <- wsBroadcast{swapID: swapID, event: event}:
	default:
		h.log.Warn("broadcast channel full, dropping event", "swap", swapID, "type", eventType)
	}
}

// ClientCount reports how many clients are watching swapID.
func (h *WSHub) ClientCount(swapID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[swapID])
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	swapID := r.PathValue("id")
	if _, err := s.store.GetSwap(r.Context(), swapID); err != nil {
		writeError(w, http.StatusNotFound, "swap not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "err", err)
		return
	}

	client := &WSClient{
		conn:   conn,
		send:   make(chan []byte, 64),
		swapID: swapID,
		hub:    s.wsHub,
	}
	s.wsHub.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
