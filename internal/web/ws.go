package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/user/gridpulse/internal/model"
	"github.com/user/gridpulse/internal/util"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Operator dashboards connect from arbitrary origins on the LAN.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is one frame on the live feed.
type Message struct {
	Type      string             `json:"type"`
	Timestamp time.Time          `json:"timestamp"`
	Data      *model.Measurement `json:"data,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan Message
}

// Hub fans successful-poll measurements out to connected websocket clients.
// It implements the poll engine's Sink; a slow client just misses frames.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*client]struct{}
	broadcast  chan Message
	register   chan *client
	unregister chan *client
}

// NewHub creates a websocket hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan Message, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// Run drives the hub event loop until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			util.Debug("Live feed: client connected (total %d)", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			util.Debug("Live feed: client disconnected (total %d)", n)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// client is not keeping up, skip this frame
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish queues a measurement for broadcast without blocking the caller.
func (h *Hub) Publish(m model.Measurement) {
	msg := Message{Type: "measurement", Timestamp: time.Now(), Data: &m}
	select {
	case h.broadcast <- msg:
	default:
	}
}

// Serve upgrades the request and streams the live feed until the peer leaves.
func (h *Hub) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		util.Warn("Live feed upgrade: %v", err)
		return
	}

	cl := &client{conn: conn, send: make(chan Message, 64)}
	h.register <- cl

	go cl.writePump()
	cl.readPump(h)
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// readPump discards client frames; its job is noticing the close.
func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
