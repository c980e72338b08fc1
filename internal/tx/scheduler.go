// internal/tx/scheduler.go
package tx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ColonelBlimp/morselink/internal/morse"
	"github.com/ColonelBlimp/morselink/internal/recovery"
	"github.com/google/uuid"
)

var (
	// ErrSinkRequired indicates a transmission needs an output sink
	ErrSinkRequired = errors.New("output sink is required")
	// ErrEmptyCode indicates the code string produced no steps
	ErrEmptyCode = errors.New("code string has nothing to transmit")
)

// State of a transmission.
type State int32

const (
	// Idle means nothing is being transmitted
	Idle State = iota
	// Running means a plan is being walked
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Scheduler owns the output sink timeline. At most one Run is active;
// starting a new one stops the previous run and waits for it to go idle.
type Scheduler struct {
	timing morse.Timing

	mu      sync.Mutex
	current *Run
}

// NewScheduler creates a scheduler playing at timing t.
func NewScheduler(t morse.Timing) (*Scheduler, error) {
	if t.Unit <= 0 {
		return nil, morse.ErrInvalidUnit
	}
	return &Scheduler{timing: t}, nil
}

// Timing returns the scheduler's timing.
func (s *Scheduler) Timing() morse.Timing {
	return s.timing
}

// Transmit plays code on sink in the background and returns its handle.
// When loop is set the message repeats after each end-of-message gap until
// stopped or looping is switched off.
func (s *Scheduler) Transmit(ctx context.Context, code string, sink Sink, loop bool) (*Run, error) {
	if sink == nil {
		return nil, ErrSinkRequired
	}
	plan := BuildPlan(code, s.timing)
	if plan.Emits() == 0 {
		return nil, ErrEmptyCode
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.current.Stop()
		<-s.current.Done()
	}

	run := newRun(plan, sink, s.timing, loop)
	s.current = run

	slog.Debug("transmission started", "run", run.id, "steps", plan.Len(), "loop", loop)
	run.state.Store(int32(Running))
	go func() {
		defer recovery.HandlePanicFunc(func() {
			_ = sink.Deactivate()
		})
		run.walk(ctx)
	}()

	return run, nil
}

// Stop stops the active run, if any, and waits until it is idle.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	run := s.current
	s.mu.Unlock()

	if run != nil {
		run.Stop()
		<-run.Done()
	}
}

// State reports whether a run is active.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Idle
	}
	return s.current.State()
}

// Run is the handle of one transmission.
type Run struct {
	id     string
	plan   Plan
	sink   Sink
	timing morse.Timing

	loop   atomic.Bool
	state  atomic.Int32
	passes atomic.Int32

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	err error // written before done is closed
}

func newRun(plan Plan, sink Sink, t morse.Timing, loop bool) *Run {
	r := &Run{
		id:     uuid.New().String(),
		plan:   plan,
		sink:   sink,
		timing: t,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	r.loop.Store(loop)
	return r
}

// ID identifies the run in logs.
func (r *Run) ID() string { return r.id }

// Plan returns the plan being walked.
func (r *Run) Plan() Plan { return r.plan }

// State returns Running until the run has fully stopped.
func (r *Run) State() State { return State(r.state.Load()) }

// Passes counts completed passes over the message.
func (r *Run) Passes() int { return int(r.passes.Load()) }

// Looping reports whether the message will repeat.
func (r *Run) Looping() bool { return r.loop.Load() }

// SetLoop switches looping on or off while the run is active.
func (r *Run) SetLoop(loop bool) { r.loop.Store(loop) }

// Stop requests cancellation. A mark that is already being emitted is
// completed first. Safe to call multiple times.
func (r *Run) Stop() {
	r.stopOnce.Do(func() {
		r.loop.Store(false)
		close(r.stopCh)
	})
}

// Done is closed when the run is idle.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run is idle and returns the sink error that ended
// it, if any.
func (r *Run) Wait() error {
	<-r.done
	return r.err
}

// Err returns the sink error that ended the run, or nil. Only meaningful
// after Done is closed.
func (r *Run) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

func (r *Run) stopRequested(ctx context.Context) bool {
	select {
	case <-r.stopCh:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// walk executes the plan, checking for stop at every step boundary.
func (r *Run) walk(ctx context.Context) {
	defer close(r.done)
	defer r.state.Store(int32(Idle))
	defer func() {
		if err := r.sink.Deactivate(); err != nil {
			slog.Warn("deactivate sink", "run", r.id, "error", err)
		}
		slog.Debug("transmission stopped", "run", r.id, "passes", r.Passes(), "error", r.err)
	}()

	for {
		for _, step := range r.plan.steps {
			if r.stopRequested(ctx) {
				return
			}
			switch step.Action {
			case Emit:
				if err := r.emit(step.Duration); err != nil {
					r.err = err
					return
				}
			case Pause:
				r.pause(ctx, step.Duration)
			}
		}

		// end-of-message gap
		r.pause(ctx, r.timing.WordGap())
		r.passes.Add(1)

		if !r.loop.Load() || r.stopRequested(ctx) {
			return
		}
	}
}

// emit runs a mark to completion; it does not observe stop.
func (r *Run) emit(d time.Duration) error {
	if err := r.sink.Activate(d); err != nil {
		return fmt.Errorf("activate sink: %w", err)
	}
	time.Sleep(d)
	if err := r.sink.Deactivate(); err != nil {
		return fmt.Errorf("deactivate sink: %w", err)
	}
	return nil
}

// pause waits d, returning early on stop. Nothing is emitted during a pause
// so cutting it short cannot truncate a mark.
func (r *Run) pause(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-r.stopCh:
	case <-ctx.Done():
	}
}
