// internal/tx/sink.go
package tx

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Sink turns a signal channel on and off.
//
// Activate starts emitting and must return promptly; d is the intended
// length so sinks that self-time (a tone buffer) can use it. The scheduler
// always follows with Deactivate once d has elapsed.
type Sink interface {
	Activate(d time.Duration) error
	Deactivate() error
}

// Channel names the selectable sinks.
type Channel string

const (
	// ChannelTone plays an audible tone on the default audio output
	ChannelTone Channel = "tone"
	// ChannelScreen flashes a bar in the terminal
	ChannelScreen Channel = "screen"
	// ChannelLamp switches a networked lamp over MQTT
	ChannelLamp Channel = "lamp"
)

// Channels lists every known channel.
func Channels() []Channel {
	return []Channel{ChannelTone, ChannelScreen, ChannelLamp}
}

// ParseChannel validates a channel name.
func ParseChannel(s string) (Channel, error) {
	for _, c := range Channels() {
		if string(c) == strings.ToLower(s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown channel %q", s)
}

// ScreenSink is the visual flash channel for a terminal: a solid bar while
// the signal is on, blanked when it goes off.
type ScreenSink struct {
	mu    sync.Mutex
	w     io.Writer
	width int
	on    bool
}

// NewScreenSink draws a bar of width cells on w.
func NewScreenSink(w io.Writer, width int) *ScreenSink {
	if width <= 0 {
		width = 20
	}
	return &ScreenSink{w: w, width: width}
}

// Activate draws the bar.
func (s *ScreenSink) Activate(time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.on = true
	_, err := fmt.Fprint(s.w, "\r"+strings.Repeat("█", s.width))
	return err
}

// Deactivate blanks the bar.
func (s *ScreenSink) Deactivate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.on {
		return nil
	}
	s.on = false
	_, err := fmt.Fprint(s.w, "\r"+strings.Repeat(" ", s.width))
	return err
}

// IsOn reports whether the bar is drawn.
func (s *ScreenSink) IsOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.on
}
