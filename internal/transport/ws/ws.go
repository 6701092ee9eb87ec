// Package ws serves local UI clients. Each client receives every surfaced
// notification as a JSON text frame.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/alanyang/notify-relay/internal/domain/notification"
	portstream "github.com/alanyang/notify-relay/internal/port/stream"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub implements sink.Sink by broadcasting to every connected UI client.
// A client connecting counts as a consumer of the backend stream, so the hub
// asks the connector for a connection on every join.
type Hub struct {
	connector portstream.Connector
	logger    *slog.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewHub creates a hub. connector may be nil, in which case joins do not
// touch the backend stream.
func NewHub(connector portstream.Connector, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		connector: connector,
		logger:    logger.With("component", "ws"),
		clients:   make(map[*websocket.Conn]bool),
	}
}

func (h *Hub) Register(rg *gin.RouterGroup) {
	rg.GET("", h.handleWS)
}

// Clients returns the number of connected UI clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
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

	if h.connector != nil {
		if _, err := h.connector.Connect(c.Request.Context()); err != nil {
			h.logger.Warn("backend stream unavailable for ui client", "error", err)
		}
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Notify broadcasts req to every client. Write failures drop that client.
func (h *Hub) Notify(_ context.Context, req notification.Request) {
	data, err := json.Marshal(req)
	if err != nil {
		h.logger.Error("websocket broadcast marshal failed", "error", err)
		return
	}

	// Held for the whole broadcast: gorilla connections allow one writer.
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		//nolint:errcheck // a failed deadline surfaces on the write below
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Warn("websocket write failed", "error", err)
			delete(h.clients, conn)
			conn.Close()
		}
	}
}
