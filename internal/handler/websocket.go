package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/CageChen/astrohub/internal/collection"
	"github.com/CageChen/astrohub/internal/watcher"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WSHandler reloads the collection on file changes and notifies connected
// clients.
type WSHandler struct {
	coll    *collection.Synced
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
	// writeMu serializes writes; a conn allows one concurrent writer.
	writeMu sync.Mutex
}

// NewWSHandler creates a new WebSocket handler
func NewWSHandler(coll *collection.Synced) *WSHandler {
	return &WSHandler{
		coll:    coll,
		clients: make(map[*websocket.Conn]bool),
	}
}

// HandleWS handles WebSocket upgrade and connection
func (h *WSHandler) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer func() {
		h.removeClient(conn)
		_ = conn.Close()
	}()

	h.addClient(conn)

	// Keep connection alive until the client goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// OnFileChange is called when the watcher reports a change
func (h *WSHandler) OnFileChange(event watcher.Event) {
	ctx := context.Background()
	payload := map[string]interface{}{
		"event": event.Type.String(),
		"path":  event.Path,
	}
	if err := h.coll.Reload(ctx); err != nil {
		log.Printf("Warning: reload after %s of %s failed: %v", event.Type, event.Path, err)
		payload["error"] = err.Error()
	}
	payload["count"] = h.coll.Len(ctx)

	h.broadcast(WSMessage{Type: "reload", Payload: payload})
}

func (h *WSHandler) addClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = true
}

func (h *WSHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}

func (h *WSHandler) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	for _, client := range clients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			h.removeClient(client)
		}
	}
}
