// internal/dsp/level.go
package dsp

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
)

var (
	// ErrInvalidThreshold indicates threshold must be between 0 and 1
	ErrInvalidThreshold = errors.New("threshold must be between 0.0 and 1.0")
	// ErrInvalidAGCDecay indicates AGC decay must be between 0 and 1
	ErrInvalidAGCDecay = errors.New("agc decay must be between 0.0 and 1.0")
	// ErrInvalidAGCAttack indicates AGC attack must be between 0 and 1
	ErrInvalidAGCAttack = errors.New("agc attack must be between 0.0 and 1.0")
	// ErrInvalidAGCWarmup indicates AGC warmup blocks must be non-negative
	ErrInvalidAGCWarmup = errors.New("agc warmup blocks must be non-negative")
	// ErrGoertzelRequired indicates Goertzel instance is required
	ErrGoertzelRequired = errors.New("goertzel instance is required")
)

// minPeak keeps AGC normalisation away from division by zero
const minPeak = 0.001

// LevelConfig configures a LevelMeter.
type LevelConfig struct {
	// Threshold above which the tone counts as present, 0.0-1.0 (from config: threshold)
	Threshold float64
	// AGCEnabled normalises magnitude against a decaying peak (from config: agc_enabled)
	AGCEnabled bool
	// AGCDecay is the per-block peak decay (from config: agc_decay)
	AGCDecay float64
	// AGCAttack is how fast the peak follows louder signals (from config: agc_attack)
	AGCAttack float64
	// AGCWarmupBlocks are measured but never reported high, to calibrate the peak
	AGCWarmupBlocks int
}

// LevelMeter reduces an audio stream to a boolean "tone present" level.
// Process is called from the audio thread; High may be read from any goroutine.
type LevelMeter struct {
	config   LevelConfig
	goertzel *Goertzel

	mu      sync.Mutex
	buffer  []float32
	agcPeak float64
	blocks  int

	high      atomic.Bool
	magnitude atomic.Uint64 // float64 bits of the last normalised magnitude
}

// NewLevelMeter creates a meter measuring with g.
func NewLevelMeter(cfg LevelConfig, g *Goertzel) (*LevelMeter, error) {
	if g == nil {
		return nil, ErrGoertzelRequired
	}
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, ErrInvalidThreshold
	}
	if cfg.AGCDecay < 0 || cfg.AGCDecay > 1 {
		return nil, ErrInvalidAGCDecay
	}
	if cfg.AGCAttack < 0 || cfg.AGCAttack > 1 {
		return nil, ErrInvalidAGCAttack
	}
	if cfg.AGCWarmupBlocks < 0 {
		return nil, ErrInvalidAGCWarmup
	}

	return &LevelMeter{
		config:   cfg,
		goertzel: g,
		buffer:   make([]float32, 0, 2*g.BlockSize()),
		agcPeak:  1.0,
	}, nil
}

// Process appends samples and measures every complete block.
func (m *LevelMeter) Process(samples []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.goertzel.BlockSize()
	m.buffer = append(m.buffer, samples...)
	for len(m.buffer) >= n {
		m.measure(m.goertzel.magnitude(m.buffer[:n]))
		m.buffer = append(m.buffer[:0], m.buffer[n:]...)
	}
}

func (m *LevelMeter) measure(magnitude float64) {
	m.blocks++

	if m.blocks <= m.config.AGCWarmupBlocks {
		// track the loudest block seen so detection starts calibrated
		if m.config.AGCEnabled && (m.blocks == 1 || magnitude > m.agcPeak) {
			m.agcPeak = math.Max(magnitude, minPeak)
		}
		return
	}

	if m.config.AGCEnabled {
		magnitude = m.applyAGC(magnitude)
	}

	m.magnitude.Store(math.Float64bits(magnitude))
	m.high.Store(magnitude > m.config.Threshold)
}

func (m *LevelMeter) applyAGC(magnitude float64) float64 {
	if magnitude > m.agcPeak {
		m.agcPeak += m.config.AGCAttack * (magnitude - m.agcPeak)
	} else {
		m.agcPeak *= m.config.AGCDecay
	}
	if m.agcPeak < minPeak {
		m.agcPeak = minPeak
	}
	return math.Min(magnitude/m.agcPeak, 1.0)
}

// High reports whether the last measured block held the tone.
func (m *LevelMeter) High() bool {
	return m.high.Load()
}

// Magnitude is the last measured magnitude after AGC.
func (m *LevelMeter) Magnitude() float64 {
	return math.Float64frombits(m.magnitude.Load())
}

// AGCPeak returns the current AGC peak (for monitoring)
func (m *LevelMeter) AGCPeak() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.agcPeak
}

// Reset clears buffered audio and calibration.
func (m *LevelMeter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffer = m.buffer[:0]
	m.agcPeak = 1.0
	m.blocks = 0
	m.high.Store(false)
	m.magnitude.Store(0)
}
