// internal/tx/plan.go
// Package tx plays a code string as a timed sequence of signal on/off
// commands on an output sink.
package tx

import (
	"time"

	"github.com/ColonelBlimp/morselink/internal/morse"
)

// Action is what a plan step does.
type Action int

const (
	// Emit turns the sink on for the step's duration
	Emit Action = iota
	// Pause keeps the sink off for the step's duration
	Pause
)

func (a Action) String() string {
	switch a {
	case Emit:
		return "emit"
	case Pause:
		return "pause"
	default:
		return "unknown"
	}
}

// Step is one timed action.
type Step struct {
	Action   Action
	Duration time.Duration
}

// Plan is the immutable step sequence for one code string.
type Plan struct {
	steps []Step
}

// BuildPlan maps every glyph of code to timed steps:
//
//	.  emit(dot)  + pause(symbol gap)
//	-  emit(dash) + pause(symbol gap)
//	   pause(letter gap)
//	/  pause(word gap)
//
// Any other rune is skipped.
func BuildPlan(code string, t morse.Timing) Plan {
	steps := make([]Step, 0, 2*len(code))
	for _, g := range code {
		switch g {
		case morse.Dot:
			steps = append(steps,
				Step{Action: Emit, Duration: t.Dot()},
				Step{Action: Pause, Duration: t.SymbolGap()})
		case morse.Dash:
			steps = append(steps,
				Step{Action: Emit, Duration: t.Dash()},
				Step{Action: Pause, Duration: t.SymbolGap()})
		case morse.LetterGap:
			steps = append(steps, Step{Action: Pause, Duration: t.LetterGap()})
		case morse.WordGap:
			steps = append(steps, Step{Action: Pause, Duration: t.WordGap()})
		}
	}
	return Plan{steps: steps}
}

// Steps returns a copy of the steps.
func (p Plan) Steps() []Step {
	out := make([]Step, len(p.steps))
	copy(out, p.steps)
	return out
}

// Len is the number of steps.
func (p Plan) Len() int {
	return len(p.steps)
}

// Emits counts the emit steps.
func (p Plan) Emits() int {
	n := 0
	for _, s := range p.steps {
		if s.Action == Emit {
			n++
		}
	}
	return n
}

// Duration is the total length of one pass, excluding the end-of-message gap.
func (p Plan) Duration() time.Duration {
	var d time.Duration
	for _, s := range p.steps {
		d += s.Duration
	}
	return d
}
