package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-rules/internal/infrastructure/config"
)

// Logger is the subset of logging.Logger used by the client.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MessageHandler processes one received message. Handlers run on paho's
// goroutines; a returned error is logged and the message is dropped.
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client wraps a paho client with subscription tracking, status publishing
// and handler panic recovery. It is safe for concurrent use.
type Client struct {
	conn   pahomqtt.Client
	cfg    config.MQTTConfig
	logger Logger

	subMu sync.RWMutex
	subs  map[string]subscription

	cbMu      sync.RWMutex
	onConnect func()
}

// Connect establishes a connection to the MQTT broker.
//
// It performs the following setup:
//  1. Builds connection options from config (broker URL, auth, TLS)
//  2. Registers a retained offline status as Last Will and Testament
//  3. Enables auto-reconnect and logs lost and restored connections
//  4. Attempts the initial connection with a timeout
//
// Every (re)connect restores the tracked subscriptions and republishes the
// online status.
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//   - logger: Receives connection lifecycle events
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: ErrConnectionFailed if the broker is not reached within the timeout
func Connect(cfg config.MQTTConfig, logger Logger) (*Client, error) {
	c := newClient(nil, cfg, logger)

	opts := buildClientOptions(cfg)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.logger.Warn("mqtt connection lost", "error", err)
	})
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.logger.Info("mqtt reconnecting", "broker", cfg.Broker.Host)
	})

	c.conn = pahomqtt.NewClient(opts)
	token := c.conn.Connect()
	if !token.WaitTimeout(connectTimeout) {
		c.conn.Disconnect(0)
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return c, nil
}

func newClient(conn pahomqtt.Client, cfg config.MQTTConfig, logger Logger) *Client {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Client{
		conn:   conn,
		cfg:    cfg,
		logger: logger,
		subs:   make(map[string]subscription),
	}
}

func (c *Client) handleConnect() {
	c.subMu.RLock()
	for topic, sub := range c.subs {
		c.conn.Subscribe(topic, sub.qos, c.wrapHandler(sub.handler))
	}
	c.subMu.RUnlock()

	c.conn.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true,
		statusPayload("online", c.cfg.Broker.ClientID, "", time.Now()))

	c.cbMu.RLock()
	cb := c.onConnect
	c.cbMu.RUnlock()
	if cb != nil {
		cb()
	}
}

// SetOnConnect registers a callback run after every (re)connect.
func (c *Client) SetOnConnect(cb func()) {
	c.cbMu.Lock()
	c.onConnect = cb
	c.cbMu.Unlock()
}

// Close publishes a graceful offline status and disconnects.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	if c.IsConnected() {
		token := c.conn.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true,
			statusPayload("offline", c.cfg.Broker.ClientID, "graceful_shutdown", time.Now()))
		token.WaitTimeout(operationTimeout)
	}
	c.conn.Disconnect(disconnectQuiesce)
	return nil
}

// IsConnected reports the broker connection state.
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// HealthCheck fails when the context is done or the client is disconnected.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// wrapHandler adapts a MessageHandler to paho, recovering panics.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("mqtt handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.logger.Warn("mqtt handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}

// wait resolves a paho token into an error wrapped with kind.
func wait(token pahomqtt.Token, kind error) error {
	if !token.WaitTimeout(operationTimeout) {
		return fmt.Errorf("%w: timeout after %v", kind, operationTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", kind, err)
	}
	return nil
}
