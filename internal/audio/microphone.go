package audio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/ColonelBlimp/morselink/internal/dsp"
	"github.com/ColonelBlimp/morselink/internal/recovery"
	"github.com/ColonelBlimp/morselink/internal/rx"
)

var (
	ErrMeterRequired   = errors.New("level meter is required")
	ErrInvalidInterval = errors.New("sample interval must be positive")
)

// Microphone is an rx.Source that listens for a tone on a capture device
// and reports its presence at a fixed cadence.
type Microphone struct {
	audio    *Context
	config   Config
	meter    *dsp.LevelMeter
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	device *malgo.Device
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMicrophone creates a source sampling meter every interval.
func NewMicrophone(audio *Context, cfg Config, meter *dsp.LevelMeter, interval time.Duration) (*Microphone, error) {
	if audio == nil {
		return nil, ErrContextRequired
	}
	if meter == nil {
		return nil, ErrMeterRequired
	}
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	return &Microphone{
		audio:    audio,
		config:   cfg,
		meter:    meter,
		interval: interval,
		now:      time.Now,
	}, nil
}

// Start opens the capture device and begins emitting samples.
func (m *Microphone) Start(ctx context.Context) (<-chan rx.Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return nil, ErrAlreadyRunning
	}

	m.meter.Reset()
	device, err := m.audio.open(m.config, malgo.Capture, func(_, input []byte, _ uint32) {
		if len(input) > 0 {
			m.meter.Process(bytesToFloat32(input))
		}
	})
	if err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	out := make(chan rx.Sample, 16)
	done := make(chan struct{})
	m.device = device
	m.cancel = cancel
	m.done = done

	go watchLevel(loopCtx, m.meter.High, m.interval, m.now, out, done, func() {
		closeDevice(device)
	})

	return out, nil
}

// Stop ends sampling and releases the capture device.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return ErrNotRunning
	}

	m.cancel()
	<-m.done
	closeDevice(m.device)
	m.device = nil
	return nil
}

// watchLevel runs pollLevel and closes done when it returns. A panic
// releases the device through release before the process exits.
func watchLevel(ctx context.Context, level func() bool, interval time.Duration, now func() time.Time,
	out chan<- rx.Sample, done chan<- struct{}, release func()) {
	defer recovery.HandlePanicFunc(release)
	defer close(done)
	pollLevel(ctx, level, interval, now, out)
}

// pollLevel reads level once per interval and sends it until ctx ends,
// then closes out.
func pollLevel(ctx context.Context, level func() bool, interval time.Duration, now func() time.Time, out chan<- rx.Sample) {
	defer close(out)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case out <- rx.Sample{High: level(), At: now()}:
			case <-ctx.Done():
				return
			}
		}
	}
}
