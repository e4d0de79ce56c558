package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang as a single-connection broker transport.
//
// Unlike a long-running service client it never reconnects on its own:
// each Connect builds a fresh paho client with a clean session, and a lost
// connection simply reports IsConnected() == false until the owner calls
// Connect again.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Message handlers run on paho goroutines.
type Client struct {
	cfg     config.MQTTConfig
	factory clientFactory

	mu         sync.RWMutex
	client     pahomqtt.Client
	connected  bool
	generation uint64

	// onDisconnect is invoked when the broker connection drops (optional).
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	// logger for error/panic logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// clientFactory creates a paho client from options.
type clientFactory func(opts *pahomqtt.ClientOptions) pahomqtt.Client

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked on paho goroutines and must not block.
//
// Parameters:
//   - topic: The topic the message was received on (wildcards expanded)
//   - payload: The raw message payload
//
// Returns:
//   - error: Logged but does not affect message acknowledgment
type MessageHandler = func(topic string, payload []byte) error

// New creates a disconnected client for the configured broker.
func New(cfg config.MQTTConfig) *Client {
	return &Client{
		cfg:     cfg,
		factory: pahomqtt.NewClient,
	}
}

// Connect performs a fresh MQTT handshake as clientID.
//
// Any existing connection is closed first. The handshake is bounded by the
// configured connect timeout and by ctx.
//
// Parameters:
//   - ctx: Cancels the wait for the CONNACK
//   - clientID: MQTT client identifier
//
// Returns:
//   - error: ErrConnectionFailed (wrapping the cause) if the broker refuses
//     or does not answer in time
func (c *Client) Connect(ctx context.Context, clientID string) error {
	if clientID == "" {
		return ErrInvalidClientID
	}

	c.Disconnect()

	opts := buildClientOptions(c.cfg, clientID)
	configureLWT(opts, c.cfg.Topics.Availability)

	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleConnectionLost(gen, err)
	})

	client := c.factory(opts)
	token := client.Connect()
	if err := waitToken(ctx, token, opts.ConnectTimeout); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("%w: %s: %w", ErrConnectionFailed, brokerURL(c.cfg.Broker), err)
	}

	c.mu.Lock()
	if c.generation != gen {
		// A concurrent Connect superseded this one.
		c.mu.Unlock()
		client.Disconnect(0)
		return fmt.Errorf("%w: superseded by a newer connect", ErrConnectionFailed)
	}
	c.client = client
	c.connected = true
	c.mu.Unlock()

	return nil
}

// handleConnectionLost is called by paho when an established connection drops.
func (c *Client) handleConnectionLost(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.connected = false
	c.mu.Unlock()

	if logger := c.getLogger(); logger != nil {
		logger.Warn("MQTT connection lost", "error", err)
	}

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// Disconnect closes the current connection, if any.
//
// A clean DISCONNECT suppresses the Last Will, so callers wanting an explicit
// offline status publish it before calling Disconnect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.connected = false
	c.generation++
	c.mu.Unlock()

	if client != nil {
		client.Disconnect(defaultDisconnectQuiesce)
	}
}

// HealthCheck verifies the MQTT connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected reports whether the current connection is open.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnectionOpen()
}

// SetOnDisconnect sets a callback to be invoked when connection is lost.
// The error parameter describes why the connection was lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for error and panic logging.
// If not set, errors in handlers are silently ignored.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// current returns the connected paho client or ErrNotConnected.
func (c *Client) current() (pahomqtt.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected || c.client == nil || !c.client.IsConnectionOpen() {
		return nil, ErrNotConnected
	}
	return c.client, nil
}

// wrapHandler wraps a MessageHandler with panic recovery and optional logging.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}

// waitToken waits for a paho token to complete, ctx to end, or timeout to pass.
func waitToken(ctx context.Context, token pahomqtt.Token, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultOperationTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w after %v", ErrTimeout, timeout)
	}
}
