package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-node/internal/node"
)

// channels lists the event streams a client may subscribe to.
var channels = map[string]struct{}{
	node.ChannelConnectivity: {},
	node.ChannelState:        {},
}

// Hub fans node events out to WebSocket clients.
//
// The most recent event on each channel is kept and replayed to a client
// when it subscribes, so a dashboard that connects between transitions
// still sees the current connectivity state.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Broadcast is called from the
//     node loop, Register and Unregister from connection goroutines.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
	last    map[string][]byte
}

var _ node.Notifier = (*Hub)(nil)

// NewHub creates a hub with no clients.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
		last:    make(map[string][]byte),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// Unregister removes a client and closes its send channel. Only the call
// that actually removes the client closes the channel.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	if existed {
		close(client.send)
		h.logger.Debug("websocket client disconnected", "clients", n)
	}
}

// Broadcast records payload as the latest event on channel and delivers it
// to every subscribed client. Slow clients with a full buffer miss it.
func (h *Hub) Broadcast(channel string, payload any) {
	frame, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		Channel:   channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to encode event", "channel", channel, "error", err)
		return
	}

	h.mu.Lock()
	h.last[channel] = frame
	recipients := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		recipients = append(recipients, c)
	}
	h.mu.Unlock()

	sent := 0
	for _, c := range recipients {
		if c.isSubscribed(channel) {
			c.trySend(frame)
			sent++
		}
	}
	if sent > 0 {
		h.logger.Debug("event broadcast", "channel", channel, "recipients", sent)
	}
}

// replay sends the latest recorded event on each of channels to client.
func (h *Hub) replay(client *WSClient, chans []string) {
	for _, ch := range chans {
		h.mu.RLock()
		frame := h.last[ch]
		h.mu.RUnlock()
		if frame != nil {
			client.trySend(frame)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll closes every client's send channel and connection.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
		delete(h.clients, c)
	}
}
