// internal/dsp/oscillator.go
package dsp

import (
	"errors"
	"math"
	"sync"
)

// ErrInvalidAmplitude indicates amplitude must be between 0 and 1
var ErrInvalidAmplitude = errors.New("amplitude must be between 0.0 and 1.0")

// rampSamples shapes key-up/key-down to avoid clicks (about 5ms at 48kHz)
const rampSamples = 240

// OscillatorConfig configures a keyed sine oscillator.
type OscillatorConfig struct {
	// Frequency of the tone in Hz (from config: tone_frequency)
	Frequency float64
	// SampleRate of the output in Hz (from config: sample_rate)
	SampleRate float64
	// Amplitude of the tone, 0.0-1.0 (from config: tone_volume)
	Amplitude float64
}

// Oscillator is a phase-continuous sine generator that is keyed on and off.
// Key may be called from any goroutine; Fill runs on the audio thread.
type Oscillator struct {
	config OscillatorConfig
	step   float64 // phase increment per sample

	mu       sync.Mutex
	keyed    bool
	phase    float64
	envelope float64 // 0..1, ramps toward keyed state
}

// NewOscillator creates an oscillator for cfg.
func NewOscillator(cfg OscillatorConfig) (*Oscillator, error) {
	if cfg.SampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if cfg.Frequency <= 0 || cfg.Frequency >= cfg.SampleRate/2 {
		return nil, ErrInvalidFrequency
	}
	if cfg.Amplitude < 0 || cfg.Amplitude > 1 {
		return nil, ErrInvalidAmplitude
	}
	return &Oscillator{
		config: cfg,
		step:   2 * math.Pi * cfg.Frequency / cfg.SampleRate,
	}, nil
}

// Key turns the tone on or off.
func (o *Oscillator) Key(on bool) {
	o.mu.Lock()
	o.keyed = on
	o.mu.Unlock()
}

// Keyed reports whether the tone is on.
func (o *Oscillator) Keyed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.keyed
}

// Fill writes the next len(out) samples.
func (o *Oscillator) Fill(out []float32) {
	o.mu.Lock()
	defer o.mu.Unlock()

	target := 0.0
	if o.keyed {
		target = 1.0
	}
	delta := 1.0 / rampSamples

	for i := range out {
		switch {
		case o.envelope < target:
			o.envelope = math.Min(o.envelope+delta, target)
		case o.envelope > target:
			o.envelope = math.Max(o.envelope-delta, target)
		}

		if o.envelope == 0 {
			out[i] = 0
			continue
		}
		out[i] = float32(o.config.Amplitude * o.envelope * math.Sin(o.phase))
		o.phase += o.step
		if o.phase >= 2*math.Pi {
			o.phase -= 2 * math.Pi
		}
	}
}
