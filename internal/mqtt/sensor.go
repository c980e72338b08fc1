package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/ColonelBlimp/morselink/internal/rx"
)

var (
	ErrAlreadySubscribed = errors.New("sensor already subscribed")
	ErrNotSubscribed     = errors.New("sensor not subscribed")
	// ErrInvalidPayload indicates a sensor message that is not a level
	ErrInvalidPayload = errors.New("invalid sensor payload")
)

// Subscriber is the part of a paho client a Sensor needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Unsubscribe(topics ...string) paho.Token
}

// Sensor is an rx.Source fed by a light sensor that publishes its level
// whenever it changes. Samples are stamped on arrival.
type Sensor struct {
	client  Subscriber
	topic   string
	timeout time.Duration
	now     func() time.Time

	mu  sync.Mutex
	out chan rx.Sample
}

// NewSensor creates a sensor source on topic.
func NewSensor(client Subscriber, topic string, timeout time.Duration) *Sensor {
	return &Sensor{client: client, topic: topic, timeout: timeout, now: time.Now}
}

// Start subscribes to the sensor topic.
func (s *Sensor) Start(ctx context.Context) (<-chan rx.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.out != nil {
		return nil, ErrAlreadySubscribed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(chan rx.Sample, 64)
	s.out = out
	if err := wait(s.client.Subscribe(s.topic, qos, s.handle), s.timeout); err != nil {
		s.out = nil
		return nil, fmt.Errorf("subscribe to %s: %w", s.topic, err)
	}
	slog.Debug("sensor subscribed", "topic", s.topic)
	return out, nil
}

// Stop unsubscribes and closes the sample channel.
func (s *Sensor) Stop() error {
	s.mu.Lock()
	subscribed := s.out != nil
	s.mu.Unlock()
	if !subscribed {
		return ErrNotSubscribed
	}

	err := wait(s.client.Unsubscribe(s.topic), s.timeout)

	s.mu.Lock()
	if s.out != nil {
		close(s.out)
		s.out = nil
	}
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("unsubscribe from %s: %w", s.topic, err)
	}
	return nil
}

func (s *Sensor) handle(_ paho.Client, msg paho.Message) {
	high, err := ParseLevel(msg.Payload())
	if err != nil {
		slog.Warn("sensor message ignored", "topic", msg.Topic(), "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out == nil {
		return
	}
	select {
	case s.out <- rx.Sample{High: high, At: s.now()}:
	default:
		slog.Warn("sensor channel full, dropping sample", "topic", s.topic)
	}
}

// ParseLevel reads a sensor payload: 1/0, on/off, true/false, high/low.
func ParseLevel(payload []byte) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(string(payload))) {
	case "1", "on", "true", "high":
		return true, nil
	case "0", "off", "false", "low":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrInvalidPayload, payload)
}
