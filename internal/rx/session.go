// internal/rx/session.go
package rx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ColonelBlimp/morselink/internal/recovery"
	"github.com/google/uuid"
)

var (
	// ErrSourceRequired indicates a session needs a sample source
	ErrSourceRequired = errors.New("sample source is required")
	// ErrDecoderRequired indicates a session needs a decoder
	ErrDecoderRequired = errors.New("decoder is required")
	// ErrAlreadyStarted indicates Start was called twice on one session
	ErrAlreadyStarted = errors.New("session already started")
	// ErrStopped indicates Start was called on a session that was stopped
	ErrStopped = errors.New("session stopped")
)

// Sample is one level reading from a sample source.
type Sample struct {
	// High is true when the signal is above the source's threshold
	High bool
	// At is when the reading was taken
	At time.Time
}

// Source delivers level samples at a roughly fixed cadence.
// Start returns a channel that is closed when the source stops or ctx ends.
// Implementations must deliver samples in timestamp order.
type Source interface {
	Start(ctx context.Context) (<-chan Sample, error)
	Stop() error
}

// Session binds a Source to a Decoder for one reception run.
// A session is started once and stopped once.
type Session struct {
	id      string
	source  Source
	decoder *Decoder
	now     func() time.Time

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}

	stopOnce sync.Once
	result   Result
}

// NewSession creates a session reading from src into dec.
func NewSession(src Source, dec *Decoder) (*Session, error) {
	if src == nil {
		return nil, ErrSourceRequired
	}
	if dec == nil {
		return nil, ErrDecoderRequired
	}
	return &Session{
		id:      uuid.New().String(),
		source:  src,
		decoder: dec,
		now:     time.Now,
		done:    make(chan struct{}),
	}, nil
}

// ID identifies the session in logs.
func (s *Session) ID() string {
	return s.id
}

// Decoder returns the session's decoder.
func (s *Session) Decoder() *Decoder {
	return s.decoder
}

// Start acquires the source and begins decoding. If the source cannot be
// started the error is returned and the session holds no state.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	samples, err := s.source.Start(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("start sample source: %w", err)
	}

	s.decoder.Reset(s.now())
	s.started = true
	s.cancel = cancel

	slog.Debug("reception started", "session", s.id)

	go func() {
		defer recovery.HandlePanicFunc(func() {
			_ = s.source.Stop()
		})
		s.loop(ctx, samples)
	}()

	return nil
}

// loop is the single consumer of the sample channel.
func (s *Session) loop(ctx context.Context, samples <-chan Sample) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		case sample, ok := <-samples:
			if !ok {
				return
			}
			s.decoder.Process(sample.High, sample.At)
		}
	}
}

// Done is closed when the session stops consuming samples, either because
// the source ran dry or because Stop was called.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Stop releases the source, flushes the letter in progress and returns the
// final output. Safe to call multiple times; later calls return the same result.
// A session stopped before Start can never be started.
func (s *Session) Stop() Result {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		started := s.started
		cancel := s.cancel
		s.mu.Unlock()

		if !started {
			s.result = s.decoder.Result()
			return
		}

		cancel()
		<-s.done

		if err := s.source.Stop(); err != nil {
			slog.Warn("stop sample source", "session", s.id, "error", err)
		}

		s.decoder.Flush(s.now())
		s.result = s.decoder.Result()

		slog.Debug("reception stopped", "session", s.id, "text", s.result.Text)
	})
	return s.result
}
