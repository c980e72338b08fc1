package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Lamp payloads
const (
	PayloadOn  = "on"
	PayloadOff = "off"
)

// Publisher is the part of a paho client a Lamp needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Lamp is a tx.Sink that switches a networked lamp.
type Lamp struct {
	client  Publisher
	topic   string
	timeout time.Duration
}

// NewLamp creates a lamp sink on topic.
func NewLamp(client Publisher, topic string, timeout time.Duration) *Lamp {
	return &Lamp{client: client, topic: topic, timeout: timeout}
}

// Activate switches the lamp on.
func (l *Lamp) Activate(time.Duration) error {
	return l.publish(PayloadOn)
}

// Deactivate switches the lamp off.
func (l *Lamp) Deactivate() error {
	return l.publish(PayloadOff)
}

func (l *Lamp) publish(payload string) error {
	if err := wait(l.client.Publish(l.topic, qos, false, payload), l.timeout); err != nil {
		return fmt.Errorf("publish %q to %s: %w", payload, l.topic, err)
	}
	return nil
}
