package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
)

// Frame types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	wsSendBufferSize = 256
)

// WSMessage is a frame sent to a client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// wsRequest is a frame received from a client.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe frames.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// WSClient is one connected dashboard.
type WSClient struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]struct{}
	mu            sync.RWMutex
}

// wsTimings holds the keepalive settings derived from config.
type wsTimings struct {
	readLimit int64
	pingEvery time.Duration
	pongWait  time.Duration
}

func timingsFrom(cfg config.WebSocketConfig) wsTimings {
	return wsTimings{
		readLimit: int64(cfg.MaxMessageSize),
		pingEvery: time.Duration(cfg.PingInterval) * time.Second,
		pongWait:  time.Duration(cfg.PongTimeout) * time.Second,
	}
}

func (t wsTimings) readDeadline() time.Time {
	return time.Now().Add(t.pingEvery + t.pongWait)
}

// The feed is read-only, so any origin may observe it.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleWebSocket upgrades GET /api/v1/ws and attaches the client to the hub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "websocket hub not running")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	s.hub.Register(client)

	t := timingsFrom(s.wsCfg)
	go client.writePump(t)
	go client.readPump(t)
}

// readPump handles inbound frames until the connection fails.
func (c *WSClient) readPump(t wsTimings) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(t.readLimit)
	c.conn.SetReadDeadline(t.readDeadline()) //nolint:errcheck // Surfaces on next read
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(t.readDeadline())
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		// Application frames count as liveness too.
		c.conn.SetReadDeadline(t.readDeadline()) //nolint:errcheck // Surfaces on next read
		c.handle(data)
	}
}

// writePump drains the send channel and pings on an interval.
func (c *WSClient) writePump(t wsTimings) {
	ticker := time.NewTicker(t.pingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		var err error
		select {
		case frame, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck // Connection is going away
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(t.pongWait)) //nolint:errcheck // Surfaces on write
			err = c.conn.WriteMessage(websocket.TextMessage, frame)
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(t.pongWait)) //nolint:errcheck // Surfaces on write
			err = c.conn.WriteMessage(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}

// handle dispatches one inbound frame.
func (c *WSClient) handle(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply(WSTypeError, "", errorBody("invalid JSON message"))
		return
	}

	switch req.Type {
	case WSTypeSubscribe:
		chans, err := parseChannels(req.Payload)
		if err != nil {
			c.reply(WSTypeError, req.ID, errorBody(err.Error()))
			return
		}
		c.setSubscribed(chans, true)
		c.hub.logger.Debug("websocket client subscribed", "channels", chans)
		c.reply(WSTypeResponse, req.ID, map[string]any{"subscribed": chans})
		c.hub.replay(c, chans)
	case WSTypeUnsubscribe:
		chans, err := parseChannels(req.Payload)
		if err != nil {
			c.reply(WSTypeError, req.ID, errorBody(err.Error()))
			return
		}
		c.setSubscribed(chans, false)
		c.reply(WSTypeResponse, req.ID, map[string]any{"unsubscribed": chans})
	case WSTypePing:
		c.reply(WSTypePong, req.ID, nil)
	default:
		c.reply(WSTypeError, req.ID, errorBody("unknown message type: "+req.Type))
	}
}

// parseChannels decodes a subscribe payload. Every channel must be one the
// node publishes; a request naming any other channel changes nothing.
func parseChannels(raw json.RawMessage) ([]string, error) {
	var p WSSubscribePayload
	if len(raw) == 0 || json.Unmarshal(raw, &p) != nil {
		return nil, fmt.Errorf("invalid subscription payload")
	}
	if len(p.Channels) == 0 {
		return nil, fmt.Errorf("no channels given")
	}
	for _, ch := range p.Channels {
		if _, ok := channels[ch]; !ok {
			return nil, fmt.Errorf("unknown channel: %s", ch)
		}
	}
	sort.Strings(p.Channels)
	return p.Channels, nil
}

func (c *WSClient) setSubscribed(chans []string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range chans {
		if on {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
}

func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

// trySend queues frame without blocking. Frames for a full buffer or a
// client closed mid-broadcast are dropped.
func (c *WSClient) trySend(frame []byte) {
	defer func() {
		recover() //nolint:errcheck // Send on channel closed by Unregister
	}()

	select {
	case c.send <- frame:
	default:
	}
}

func (c *WSClient) reply(msgType, id string, payload any) {
	frame, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(frame)
}

func errorBody(message string) map[string]string {
	return map[string]string{"message": message}
}
