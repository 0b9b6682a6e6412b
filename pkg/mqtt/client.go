package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/saaga0h/curator-platform/pkg/config"
)

type subscription struct {
	qos     byte
	handler paho.MessageHandler
}

// pahoClient implements Client with the Paho MQTT client
type pahoClient struct {
	client paho.Client
	broker string
	logger *slog.Logger

	mu            sync.Mutex
	subscriptions map[string]subscription
}

// NewClient creates a new MQTT client with the given configuration
func NewClient(cfg *config.Config, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}

	c := &pahoClient{
		broker:        cfg.MQTTAddress(),
		logger:        logger,
		subscriptions: make(map[string]subscription),
	}

	opts := clientOptions(cfg)
	opts.OnConnect = c.onConnect
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		logger.Warn("MQTT connection lost", "error", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		logger.Info("MQTT reconnecting", "broker", c.broker)
	}

	c.client = paho.NewClient(opts)
	return c
}

// clientOptions maps configuration onto Paho options. A fixed client id
// gets a persistent session so QoS 1 interactions queue while the agent is
// away; a generated id gets a clean one.
func clientOptions(cfg *config.Config) *paho.ClientOptions {
	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.MQTTAddress())

	clientID := cfg.MQTTClientID
	if clientID == "" {
		clientID = fmt.Sprintf("%s-%d", cfg.ServiceName, time.Now().UnixNano())
	}
	opts.SetClientID(clientID)
	opts.SetCleanSession(cfg.MQTTClientID == "")

	if cfg.MQTTUser != "" {
		opts.SetUsername(cfg.MQTTUser)
	}
	if cfg.MQTTPassword != "" {
		opts.SetPassword(cfg.MQTTPassword)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetOrderMatters(false)

	return opts
}

// onConnect restores subscriptions; a clean session loses them on reconnect
func (c *pahoClient) onConnect(client paho.Client) {
	c.logger.Info("Connected to MQTT broker", "broker", c.broker)

	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subscriptions))
	for topic, sub := range c.subscriptions {
		subs[topic] = sub
	}
	c.mu.Unlock()

	for topic, sub := range subs {
		token := client.Subscribe(topic, sub.qos, sub.handler)
		if token.Wait() && token.Error() != nil {
			c.logger.Error("Failed to restore subscription", "topic", topic, "error", token.Error())
		}
	}
}

// Connect waits for the first connection or ctx
func (c *pahoClient) Connect(ctx context.Context) error {
	c.logger.Info("Connecting to MQTT broker", "broker", c.broker)

	token := c.client.Connect()
	select {
	case <-token.Done():
		if token.Error() != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("connection timeout: %w", ctx.Err())
	}
}

// Disconnect closes the connection after a 250ms grace period
func (c *pahoClient) Disconnect() {
	c.logger.Info("Disconnecting from MQTT broker")
	c.client.Disconnect(250)
}

// Subscribe registers handler and remembers it for reconnects
func (c *pahoClient) Subscribe(topic string, qos byte, handler MessageHandler) error {
	wrapped := c.wrap(topic, handler)

	token := c.client.Subscribe(topic, qos, wrapped)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
	}

	c.mu.Lock()
	c.subscriptions[topic] = subscription{qos: qos, handler: wrapped}
	c.mu.Unlock()

	c.logger.Info("Subscribed to topic", "topic", topic, "qos", qos)
	return nil
}

// wrap adapts handler to Paho and contains panics so one bad message
// cannot stop delivery
func (c *pahoClient) wrap(subscription string, handler MessageHandler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("MQTT handler panicked",
					"subscription", subscription,
					"topic", msg.Topic(),
					"panic", r)
			}
		}()
		handler(msg)
	}
}

// Publish waits for the broker to accept the message
func (c *pahoClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}

	c.logger.Debug("Published message", "topic", topic, "size", len(payload))
	return nil
}

func (c *pahoClient) IsConnected() bool {
	return c.client.IsConnected()
}
