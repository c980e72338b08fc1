package rx

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// failingSource cannot be acquired
type failingSource struct{}

func (failingSource) Start(context.Context) (<-chan Sample, error) {
	return nil, errors.New("camera busy")
}
func (failingSource) Stop() error { return nil }

// manualSource hands samples over one at a time
type manualSource struct {
	ch      chan Sample
	mu      sync.Mutex
	stopped bool
}

func newManualSource() *manualSource {
	return &manualSource{ch: make(chan Sample)}
}

func (m *manualSource) Start(context.Context) (<-chan Sample, error) {
	return m.ch, nil
}

func (m *manualSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

func (m *manualSource) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

func newSession(t *testing.T, src Source) *Session {
	t.Helper()
	s, err := NewSession(src, newTestDecoder(t, time.Now()))
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	return s
}

func TestNewSession_Validation(t *testing.T) {
	dec := newTestDecoder(t, time.Now())

	if _, err := NewSession(nil, dec); err != ErrSourceRequired {
		t.Errorf("NewSession(nil, dec) error = %v, want %v", err, ErrSourceRequired)
	}
	if _, err := NewSession(NewReplay(nil), nil); err != ErrDecoderRequired {
		t.Errorf("NewSession(src, nil) error = %v, want %v", err, ErrDecoderRequired)
	}
}

func TestSession_ReplayTimeline(t *testing.T) {
	timeline := `
# .- then a word gap, then E
on 200ms
off 200ms
on 600ms
off 1400ms
on 200ms
off 800ms
`
	samples, err := ParseTimeline(strings.NewReader(timeline), time.Unix(0, 0))
	if err != nil {
		t.Fatalf("ParseTimeline() error = %v", err)
	}

	s := newSession(t, NewReplay(samples))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("replay did not finish")
	}

	res := s.Stop()
	if res.Text != "A E" {
		t.Errorf("Text = %q, want %q", res.Text, "A E")
	}
	if res.Code != ".- / . " {
		t.Errorf("Code = %q, want %q", res.Code, ".- / . ")
	}
}

func TestSession_StopFlushesPendingLetter(t *testing.T) {
	src := newManualSource()
	s := newSession(t, src)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	start := time.Now()
	src.ch <- Sample{High: true, At: start}
	src.ch <- Sample{High: false, At: start.Add(600 * time.Millisecond)}
	src.ch <- Sample{High: true, At: start.Add(800 * time.Millisecond)}
	src.ch <- Sample{High: false, At: start.Add(1400 * time.Millisecond)}

	res := s.Stop()
	if res.Text != "M" {
		t.Errorf("Text = %q, want %q", res.Text, "M")
	}
	if !src.isStopped() {
		t.Error("Stop() did not release the source")
	}
}

func TestSession_StopIsIdempotent(t *testing.T) {
	src := newManualSource()
	s := newSession(t, src)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	first := s.Stop()
	second := s.Stop()
	if first != second {
		t.Errorf("second Stop() = %+v, want %+v", second, first)
	}
}

func TestSession_StopWithoutStart(t *testing.T) {
	src := newManualSource()
	s := newSession(t, src)

	res := s.Stop()
	if res != (Result{}) {
		t.Errorf("Stop() = %+v, want empty", res)
	}
	if src.isStopped() {
		t.Error("Stop() without Start should not touch the source")
	}

	if err := s.Start(context.Background()); err != ErrStopped {
		t.Errorf("Start() after Stop() error = %v, want %v", err, ErrStopped)
	}
}

func TestSession_StartTwice(t *testing.T) {
	s := newSession(t, newManualSource())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	if err := s.Start(context.Background()); err != ErrAlreadyStarted {
		t.Errorf("second Start() error = %v, want %v", err, ErrAlreadyStarted)
	}
}

func TestSession_SourceFailure(t *testing.T) {
	s := newSession(t, failingSource{})

	err := s.Start(context.Background())
	if err == nil {
		t.Fatal("Start() error = nil, want failure")
	}
	if !strings.Contains(err.Error(), "camera busy") {
		t.Errorf("Start() error = %v, want wrapped source error", err)
	}

	// A failed session can still be stopped and holds nothing
	if res := s.Stop(); res != (Result{}) {
		t.Errorf("Stop() = %+v, want empty", res)
	}
}

func TestSession_ContextCancel(t *testing.T) {
	s := newSession(t, newManualSource())

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop after context cancel")
	}
	s.Stop()
}

func TestSession_ID(t *testing.T) {
	a := newSession(t, newManualSource())
	b := newSession(t, newManualSource())

	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("session ids not unique: %q %q", a.ID(), b.ID())
	}
}
