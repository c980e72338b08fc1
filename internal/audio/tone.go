package audio

import (
	"errors"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/ColonelBlimp/morselink/internal/dsp"
)

// ErrOscillatorRequired indicates an oscillator is required
var ErrOscillatorRequired = errors.New("oscillator is required")

// Tone is a tx.Sink that sounds a sidetone on a playback device.
// The device runs from Open to Close; Activate and Deactivate key the oscillator.
type Tone struct {
	audio  *Context
	config Config
	osc    *dsp.Oscillator

	mu     sync.Mutex
	device *malgo.Device
	buffer []float32 // reused by the audio thread
}

// NewTone creates a sink playing osc.
func NewTone(audio *Context, cfg Config, osc *dsp.Oscillator) (*Tone, error) {
	if audio == nil {
		return nil, ErrContextRequired
	}
	if osc == nil {
		return nil, ErrOscillatorRequired
	}
	return &Tone{audio: audio, config: cfg, osc: osc}, nil
}

// Open starts the playback device. It plays silence until keyed.
func (t *Tone) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.device != nil {
		return ErrAlreadyRunning
	}

	device, err := t.audio.open(t.config, malgo.Playback, func(output, _ []byte, frames uint32) {
		t.buffer = render(t.osc, output, int(frames), int(t.config.Channels), t.buffer)
	})
	if err != nil {
		return err
	}
	t.device = device
	return nil
}

// Activate keys the tone. The duration is timed by the scheduler.
func (t *Tone) Activate(time.Duration) error {
	if !t.isOpen() {
		return ErrNotRunning
	}
	t.osc.Key(true)
	return nil
}

// Deactivate unkeys the tone.
func (t *Tone) Deactivate() error {
	t.osc.Key(false)
	return nil
}

// Close stops the playback device.
func (t *Tone) Close() error {
	t.osc.Key(false)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.device == nil {
		return ErrNotRunning
	}
	closeDevice(t.device)
	t.device = nil
	return nil
}

func (t *Tone) isOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.device != nil
}

// render fills frames of interleaved float32 output from osc, copying the
// mono signal to every channel. buf is scratch space, returned for reuse.
func render(osc *dsp.Oscillator, output []byte, frames, channels int, buf []float32) []float32 {
	if channels < 1 {
		channels = 1
	}
	if limit := len(output) / (4 * channels); frames > limit {
		frames = limit
	}
	if cap(buf) < frames {
		buf = make([]float32, frames)
	}
	buf = buf[:frames]

	osc.Fill(buf)
	for i, v := range buf {
		for ch := 0; ch < channels; ch++ {
			putFloat32(output, i*channels+ch, v)
		}
	}
	return buf
}
