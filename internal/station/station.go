// Package station coordinates the transmitter and the receiver so that
// only one of them drives the hardware at a time.
package station

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ColonelBlimp/morselink/internal/morse"
	"github.com/ColonelBlimp/morselink/internal/rx"
	"github.com/ColonelBlimp/morselink/internal/tx"
)

// Station switches between sending and listening. Starting one side stops
// the other.
type Station struct {
	scheduler  *tx.Scheduler
	thresholds morse.Thresholds
	codebook   *morse.Codebook

	// op serializes switching so a start never races the stop of the other side
	op sync.Mutex

	mu      sync.Mutex
	session *rx.Session
}

// New creates a station sending at t and decoding with thresholds derived
// from t and r. A nil codebook uses morse.Default.
func New(t morse.Timing, r morse.Ratios, cb *morse.Codebook) (*Station, error) {
	scheduler, err := tx.NewScheduler(t)
	if err != nil {
		return nil, err
	}
	th, err := t.Thresholds(r)
	if err != nil {
		return nil, err
	}
	if cb == nil {
		cb = morse.Default
	}
	return &Station{scheduler: scheduler, thresholds: th, codebook: cb}, nil
}

// Timing returns the transmit timing.
func (s *Station) Timing() morse.Timing {
	return s.scheduler.Timing()
}

// Thresholds returns the receive thresholds.
func (s *Station) Thresholds() morse.Thresholds {
	return s.thresholds
}

// Transmit stops any reception, then plays code on sink.
func (s *Station) Transmit(ctx context.Context, code string, sink tx.Sink, loop bool) (*tx.Run, error) {
	s.op.Lock()
	defer s.op.Unlock()

	s.stopReception()
	return s.scheduler.Transmit(ctx, code, sink, loop)
}

// TransmitText encodes text and transmits it. The code string is returned
// with the run so callers can show it.
func (s *Station) TransmitText(ctx context.Context, text string, sink tx.Sink, loop bool) (*tx.Run, string, error) {
	code := s.codebook.TextToCode(text)
	run, err := s.Transmit(ctx, code, sink, loop)
	return run, code, err
}

// Receive stops any transmission and the previous reception, then starts
// decoding from src. cb, if set, sees every decoder update.
func (s *Station) Receive(ctx context.Context, src rx.Source, cb rx.UpdateCallback) (*rx.Session, error) {
	s.op.Lock()
	defer s.op.Unlock()

	s.scheduler.Stop()
	s.stopReception()

	dec, err := rx.NewDecoder(s.thresholds, s.codebook)
	if err != nil {
		return nil, err
	}
	dec.SetCallback(cb)

	session, err := rx.NewSession(src, dec)
	if err != nil {
		return nil, err
	}
	if err := session.Start(ctx); err != nil {
		return nil, fmt.Errorf("start reception: %w", err)
	}

	s.mu.Lock()
	s.session = session
	s.mu.Unlock()
	return session, nil
}

// StopReception ends the current reception, if any, and returns its output.
func (s *Station) StopReception() rx.Result {
	s.op.Lock()
	defer s.op.Unlock()
	return s.stopReception()
}

func (s *Station) stopReception() rx.Result {
	s.mu.Lock()
	session := s.session
	s.session = nil
	s.mu.Unlock()

	if session == nil {
		return rx.Result{}
	}
	return session.Stop()
}

// StopAll stops both sides. It is used when the user leaves the station.
func (s *Station) StopAll() rx.Result {
	s.op.Lock()
	defer s.op.Unlock()

	s.scheduler.Stop()
	result := s.stopReception()
	slog.Debug("station stopped")
	return result
}

// Transmitting reports whether a transmission is running.
func (s *Station) Transmitting() bool {
	return s.scheduler.State() == tx.Running
}

// Receiving reports whether a reception session is active.
func (s *Station) Receiving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil
}
