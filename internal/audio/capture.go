// internal/audio/capture.go
// Package audio connects the transmitter and receiver to sound hardware.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

var (
	ErrNotInitialized  = errors.New("audio context not initialized")
	ErrAlreadyRunning  = errors.New("audio device already running")
	ErrNotRunning      = errors.New("audio device not running")
	ErrContextRequired = errors.New("audio context is required")
)

// Config holds audio device configuration
type Config struct {
	DeviceIndex int    // -1 for default device
	SampleRate  uint32 // e.g., 48000
	Channels    uint32 // 1 for mono, 2 for stereo
	BufferSize  uint32 // frames per callback
}

// DefaultConfig returns sensible defaults for keying a sidetone
func DefaultConfig() Config {
	return Config{
		DeviceIndex: -1,
		SampleRate:  48000,
		Channels:    1,
		BufferSize:  512,
	}
}

// Context owns the malgo backend shared by capture and playback devices.
type Context struct {
	mu  sync.Mutex
	ctx *malgo.AllocatedContext
}

// NewContext initializes the audio backend
func NewContext() (*Context, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &Context{ctx: ctx}, nil
}

// Devices lists the devices of one kind (malgo.Capture or malgo.Playback).
func (c *Context) Devices(kind malgo.DeviceType) ([]malgo.DeviceInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx == nil {
		return nil, ErrNotInitialized
	}

	infos, err := c.ctx.Devices(kind)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	return infos, nil
}

// open initializes and starts a device. The caller owns Stop/Uninit.
func (c *Context) open(cfg Config, kind malgo.DeviceType, onData malgo.DataProc) (*malgo.Device, error) {
	deviceConfig := malgo.DefaultDeviceConfig(kind)
	deviceConfig.SampleRate = cfg.SampleRate
	deviceConfig.PeriodSizeInFrames = cfg.BufferSize

	sub := malgo.SubConfig{Format: malgo.FormatF32, Channels: cfg.Channels}
	if cfg.DeviceIndex >= 0 {
		devices, err := c.Devices(kind)
		if err != nil {
			return nil, err
		}
		if cfg.DeviceIndex >= len(devices) {
			return nil, fmt.Errorf("device index %d out of range (have %d devices)",
				cfg.DeviceIndex, len(devices))
		}
		sub.DeviceID = devices[cfg.DeviceIndex].ID.Pointer()
	}
	if kind == malgo.Capture {
		deviceConfig.Capture = sub
	} else {
		deviceConfig.Playback = sub
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return nil, ErrNotInitialized
	}

	device, err := malgo.InitDevice(c.ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onData})
	if err != nil {
		return nil, fmt.Errorf("init device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("start device: %w", err)
	}
	return device, nil
}

// Close releases the audio backend. Devices must be closed first.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx == nil {
		return nil
	}
	if err := c.ctx.Uninit(); err != nil {
		return fmt.Errorf("uninit context: %w", err)
	}
	c.ctx.Free()
	c.ctx = nil
	return nil
}

func closeDevice(d *malgo.Device) {
	if d == nil {
		return
	}
	_ = d.Stop()
	d.Uninit()
}

// bytesToFloat32 converts little-endian float32 frames to samples
func bytesToFloat32(data []byte) []float32 {
	samples := make([]float32, len(data)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples
}

// putFloat32 writes v as little-endian float32 at sample index i
func putFloat32(data []byte, i int, v float32) {
	binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
}
