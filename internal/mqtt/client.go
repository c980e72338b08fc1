// Package mqtt keys a networked lamp and reads a networked light sensor
// over an MQTT broker.
package mqtt

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

var (
	// ErrBrokerRequired indicates a broker URL is required
	ErrBrokerRequired = errors.New("mqtt broker is required")
	// ErrTimeout indicates the broker did not acknowledge in time
	ErrTimeout = errors.New("mqtt operation timed out")
)

const (
	qos            = 1
	disconnectWait = 250 // milliseconds
)

// ClientConfig holds MQTT client configuration
type ClientConfig struct {
	Broker   string // e.g., "tcp://localhost:1883"
	ClientID string
	Username string
	Password string
	Timeout  time.Duration // per publish/subscribe acknowledgement
}

// Client manages the MQTT connection. Lamp and Sensor share one.
type Client struct {
	client paho.Client
	config ClientConfig
}

// NewClient connects to the broker.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Broker == "" {
		return nil, ErrBrokerRequired
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetOnConnectHandler(func(paho.Client) {
		slog.Info("mqtt connected", "broker", config.Broker)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		slog.Warn("mqtt connection lost", "error", err)
	})
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(config.Timeout)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	client := paho.NewClient(opts)
	if err := wait(client.Connect(), config.Timeout); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", config.Broker, err)
	}

	return &Client{client: client, config: config}, nil
}

// Close disconnects from the broker.
func (c *Client) Close() {
	c.client.Disconnect(disconnectWait)
	slog.Debug("mqtt disconnected", "broker", c.config.Broker)
}

// Lamp returns a sink publishing to topic over this connection.
func (c *Client) Lamp(topic string) *Lamp {
	return NewLamp(c.client, topic, c.config.Timeout)
}

// Sensor returns a source subscribed to topic over this connection.
func (c *Client) Sensor(topic string) *Sensor {
	return NewSensor(c.client, topic, c.config.Timeout)
}

func wait(token paho.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return ErrTimeout
	}
	return token.Error()
}
