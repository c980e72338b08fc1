package dsp

import (
	"testing"
)

func testLevelConfig() LevelConfig {
	return LevelConfig{
		Threshold:       0.4,
		AGCEnabled:      false,
		AGCDecay:        0.9995,
		AGCAttack:       0.1,
		AGCWarmupBlocks: 0,
	}
}

func TestNewLevelMeter_Validation(t *testing.T) {
	g := testGoertzel(t)

	tests := []struct {
		name   string
		mutate func(*LevelConfig)
		want   error
	}{
		{"valid", func(*LevelConfig) {}, nil},
		{"threshold high", func(c *LevelConfig) { c.Threshold = 1.5 }, ErrInvalidThreshold},
		{"threshold low", func(c *LevelConfig) { c.Threshold = -0.1 }, ErrInvalidThreshold},
		{"decay", func(c *LevelConfig) { c.AGCDecay = 2 }, ErrInvalidAGCDecay},
		{"attack", func(c *LevelConfig) { c.AGCAttack = -1 }, ErrInvalidAGCAttack},
		{"warmup", func(c *LevelConfig) { c.AGCWarmupBlocks = -1 }, ErrInvalidAGCWarmup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testLevelConfig()
			tt.mutate(&cfg)
			if _, err := NewLevelMeter(cfg, g); err != tt.want {
				t.Errorf("NewLevelMeter() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := NewLevelMeter(testLevelConfig(), nil); err != ErrGoertzelRequired {
		t.Errorf("NewLevelMeter(nil) error = %v, want %v", err, ErrGoertzelRequired)
	}
}

func TestLevelMeter_ToneAndSilence(t *testing.T) {
	m, err := NewLevelMeter(testLevelConfig(), testGoertzel(t))
	if err != nil {
		t.Fatalf("NewLevelMeter() error = %v", err)
	}

	if m.High() {
		t.Fatal("High() = true before any audio")
	}

	m.Process(generateSineWave(testToneFrequency, testSampleRate, testBlockSize, 0.9))
	if !m.High() {
		t.Errorf("High() = false for tone, magnitude %v", m.Magnitude())
	}

	m.Process(make([]float32, testBlockSize))
	if m.High() {
		t.Errorf("High() = true for silence, magnitude %v", m.Magnitude())
	}
}

func TestLevelMeter_BuffersPartialBlocks(t *testing.T) {
	m, _ := NewLevelMeter(testLevelConfig(), testGoertzel(t))
	tone := generateSineWave(testToneFrequency, testSampleRate, testBlockSize, 0.9)

	m.Process(tone[:testBlockSize/2])
	if m.High() {
		t.Fatal("High() = true before a full block arrived")
	}

	m.Process(tone[testBlockSize/2:])
	if !m.High() {
		t.Error("High() = false after the block completed")
	}
}

func TestLevelMeter_AGCNormalisesQuietTone(t *testing.T) {
	cfg := testLevelConfig()
	cfg.AGCEnabled = true
	cfg.AGCWarmupBlocks = 2
	m, _ := NewLevelMeter(cfg, testGoertzel(t))

	quiet := generateSineWave(testToneFrequency, testSampleRate, testBlockSize, 0.1)

	// warmup blocks calibrate but never report high
	m.Process(quiet)
	m.Process(quiet)
	if m.High() {
		t.Error("High() = true during warmup")
	}

	m.Process(quiet)
	if !m.High() {
		t.Errorf("quiet tone not detected with AGC, magnitude %v peak %v", m.Magnitude(), m.AGCPeak())
	}
}

func TestLevelMeter_WithoutAGCQuietToneIsLow(t *testing.T) {
	m, _ := NewLevelMeter(testLevelConfig(), testGoertzel(t))

	m.Process(generateSineWave(testToneFrequency, testSampleRate, testBlockSize, 0.1))
	if m.High() {
		t.Errorf("quiet tone detected without AGC, magnitude %v", m.Magnitude())
	}
}

func TestLevelMeter_Reset(t *testing.T) {
	m, _ := NewLevelMeter(testLevelConfig(), testGoertzel(t))
	m.Process(generateSineWave(testToneFrequency, testSampleRate, testBlockSize, 0.9))

	m.Reset()
	if m.High() || m.Magnitude() != 0 || m.AGCPeak() != 1.0 {
		t.Errorf("Reset() left high=%v magnitude=%v peak=%v", m.High(), m.Magnitude(), m.AGCPeak())
	}
}
