package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"nhooyr.io/websocket" //nolint:staticcheck // TODO: migrate to github.com/coder/websocket

	"github.com/scrypster/storyblok-devtools/internal/engine"
)

// MessageRelationsState is the websocket message type carrying an
// engine.State snapshot.
const MessageRelationsState = "relations_state"

// MessageCacheCleared tells clients the cache was cleared by another process.
const MessageCacheCleared = "cache_cleared"

// WSMessage is the envelope for every websocket message.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// WebSocketHub manages WebSocket connections and broadcasts messages.
type WebSocketHub struct {
	clients    map[clientInterface]bool
	broadcast  chan interface{}
	register   chan clientInterface
	unregister chan clientInterface
	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
	logger     *slog.Logger
	origins    []string
}

// clientInterface allows for both real clients and mock clients.
type clientInterface interface {
	getSendChannel() chan []byte
	close()
}

// wsClient represents a WebSocket connection.
type wsClient struct {
	hub  *WebSocketHub
	conn *websocket.Conn //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	send chan []byte
}

func (c *wsClient) getSendChannel() chan []byte {
	return c.send
}

func (c *wsClient) close() {
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	}
}

// NewWebSocketHub creates a new WebSocket hub. origins are host[:port]
// patterns allowed to open a connection; requests without an Origin header
// (non-browser clients) are always accepted.
func NewWebSocketHub(logger *slog.Logger, origins ...string) *WebSocketHub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocketHub{
		clients:    make(map[clientInterface]bool),
		broadcast:  make(chan interface{}, 256),
		register:   make(chan clientInterface),
		unregister: make(chan clientInterface),
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger,
		origins:    origins,
	}
}

// Run starts the hub's message processing loop.
func (h *WebSocketHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("websocket client connected", "total", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.getSendChannel())
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("websocket client disconnected", "total", count)

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				h.logger.Error("failed to marshal websocket message", "error", err)
				continue
			}

			// Full lock: slow clients are dropped from the map.
			h.mu.Lock()
			for client := range h.clients {
				sendChan := client.getSendChannel()
				select {
				case sendChan <- data:
				default:
					close(sendChan)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			return
		}
	}
}

// Stop gracefully shuts down the hub.
func (h *WebSocketHub) Stop() {
	h.cancel()

	h.mu.Lock()
	for client := range h.clients {
		close(client.getSendChannel())
		client.close()
	}
	h.clients = make(map[clientInterface]bool)
	h.mu.Unlock()
}

// Broadcast sends a message to all connected clients. It never blocks.
func (h *WebSocketHub) Broadcast(message interface{}) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("websocket broadcast channel full, dropping message")
	}
}

// BroadcastState publishes an analyzer snapshot. Its signature matches
// engine.Analyzer.Subscribe.
func (h *WebSocketHub) BroadcastState(st engine.State) {
	h.Broadcast(WSMessage{Type: MessageRelationsState, Data: st})
}

// ClientCount returns the number of connected clients.
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub.
func (h *WebSocketHub) Register(client clientInterface) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister removes a client from the hub.
func (h *WebSocketHub) Unregister(client clientInterface) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

func (h *WebSocketHub) originAllowed(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	for _, allowed := range h.origins {
		if u.Host == allowed {
			return true
		}
	}
	return false
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *WebSocketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if origin := r.Header.Get("Origin"); origin != "" && !h.originAllowed(origin) {
		http.Error(w, "Forbidden: invalid origin", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{ //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}

	h.Register(client)

	go client.writePump()
	go client.readPump()
}

// writePump sends messages to the WebSocket connection.
func (c *wsClient) writePump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	}()

	for message := range c.send {
		ctx, cancel := context.WithTimeout(c.hub.ctx, 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, message) //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
		cancel()

		if err != nil {
			c.hub.logger.Debug("websocket write failed", "error", err)
			return
		}
	}
}

// readPump drains incoming messages to detect disconnections.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	}()

	for {
		if _, _, err := c.conn.Read(c.hub.ctx); err != nil { //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
			return
		}
	}
}

// MockClient is a mock client for testing.
type MockClient struct {
	SendChan chan []byte
}

func (m *MockClient) getSendChannel() chan []byte {
	return m.SendChan
}

func (m *MockClient) close() {}
