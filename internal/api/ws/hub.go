package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/your-org/attention/internal/engine"
	"github.com/your-org/attention/internal/models"
	"github.com/your-org/attention/internal/observability"
	"github.com/your-org/attention/pkg/dto"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the API key guards /v1
	},
}

// Client is one connected monitor.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	// only, when set, limits the client to one event type.
	only string
}

type message struct {
	kind string
	data []byte
}

// Hub fans engine snapshots and presence events out to WebSocket clients.
type Hub struct {
	mu         sync.Mutex
	clients    map[*Client]struct{}
	broadcast  chan message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Attach subscribes the hub to an engine's snapshots and presence events.
func (h *Hub) Attach(e *engine.Engine) {
	e.OnSnapshot(h.BroadcastSnapshot)
	e.OnPresence(h.BroadcastPresence)
}

// Run is the hub event loop. It returns when ctx is done, closing every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			observability.WSConnections.Inc()
			slog.Debug("ws client connected", "only", client.only)

		case client := <-h.unregister:
			h.drop(client)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.only != "" && client.only != msg.kind {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// slow consumer
					delete(h.clients, client)
					close(client.send)
					observability.WSConnections.Dec()
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) drop(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		observability.WSConnections.Dec()
		slog.Debug("ws client disconnected")
	}
}

// Clients reports the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) BroadcastSnapshot(snap engine.Snapshot) {
	h.send(dto.WSEvent{Type: dto.WSEventSnapshot, At: snap.At, Tracks: snap.Tracks})
}

func (h *Hub) BroadcastPresence(tr models.Track) {
	h.send(dto.WSEvent{Type: dto.WSEventPresence, At: tr.LastSeenAt, Track: &tr})
}

// send never blocks the engine; events are dropped when the hub is behind.
func (h *Hub) send(evt dto.WSEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		slog.Error("marshal ws event", "error", err)
		return
	}
	select {
	case h.broadcast <- message{kind: evt.Type, data: data}:
	default:
		slog.Warn("ws broadcast queue full, dropping event", "type", evt.Type)
	}
}

// HandleWS upgrades the request. ?only=snapshot or ?only=presence filters events.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "error", err)
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, 64),
		only: c.Query("only"),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(h)
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// readPump only detects disconnection; clients send nothing.
func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
