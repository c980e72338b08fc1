// internal/morse/timing.go
package morse

import (
	"errors"
	"time"
)

// Morse code timing ratios (ITU standard), in units
const (
	// DahDitRatio is the ratio of dash duration to dot duration (ITU: 3:1)
	DahDitRatio = 3
	// IntraCharSpaceRatio is the pause between marks of one letter (ITU: 1:1)
	IntraCharSpaceRatio = 1
	// InterCharSpaceRatio is the pause between letters (ITU: 3:1)
	InterCharSpaceRatio = 3
	// WordSpaceRatio is the pause between words (ITU: 7:1)
	WordSpaceRatio = 7

	// MillisecondsPerMinute is used for WPM calculations
	MillisecondsPerMinute = 60000.0
	// DitsPerWord is the standard word "PARIS" = 50 dit units
	DitsPerWord = 50.0

	// DefaultUnit is the base unit used when nothing else is configured
	DefaultUnit = 200 * time.Millisecond
)

var (
	// ErrInvalidUnit indicates the unit must be positive
	ErrInvalidUnit = errors.New("timing unit must be positive")
	// ErrInvalidWPM indicates WPM must be positive
	ErrInvalidWPM = errors.New("WPM must be positive")
	// ErrInvalidNoiseRatio indicates the noise floor must sit below the dit/dah boundary
	ErrInvalidNoiseRatio = errors.New("noise ratio must be positive and below the dit/dah boundary")
	// ErrInvalidDitDahBoundary indicates the dit/dah boundary must lie between 1 and 3 units
	ErrInvalidDitDahBoundary = errors.New("dit/dah boundary must be between 1 and 3 units")
	// ErrInvalidLetterBoundary indicates the letter boundary must be above 1 unit and below the word boundary
	ErrInvalidLetterBoundary = errors.New("letter boundary must be above 1 unit and below the word boundary")
)

// Ratios scale the unit into receive classification thresholds.
// They are a tolerance band around the ITU ratios, not a second timing source.
type Ratios struct {
	// Noise is the shortest mark accepted as a dot (from config: noise_ratio)
	Noise float64
	// DitDah is the mark length from which a dash is assumed (from config: dit_dah_boundary)
	DitDah float64
	// Letter is the silence length above which a letter ends (from config: letter_boundary)
	Letter float64
	// Word is the silence length above which a word ends (from config: word_boundary)
	Word float64
}

// DefaultRatios returns the receive tolerance band. At a 200ms unit this gives
// 50ms noise floor, 350ms dash threshold, 500ms letter gap and 1200ms word gap.
func DefaultRatios() Ratios {
	return Ratios{
		Noise:  0.25,
		DitDah: 1.75,
		Letter: 2.5,
		Word:   6.0,
	}
}

// Validate checks the ratios are ordered.
func (r Ratios) Validate() error {
	if r.DitDah <= IntraCharSpaceRatio || r.DitDah >= DahDitRatio {
		return ErrInvalidDitDahBoundary
	}
	if r.Noise <= 0 || r.Noise >= r.DitDah {
		return ErrInvalidNoiseRatio
	}
	if r.Letter <= IntraCharSpaceRatio || r.Letter >= r.Word {
		return ErrInvalidLetterBoundary
	}
	return nil
}

// Timing is the set of durations derived from one base unit.
type Timing struct {
	Unit time.Duration
}

// NewTiming returns a Timing for unit.
func NewTiming(unit time.Duration) (Timing, error) {
	if unit <= 0 {
		return Timing{}, ErrInvalidUnit
	}
	return Timing{Unit: unit}, nil
}

// TimingFromWPM derives the unit from a words-per-minute speed using PARIS.
// unit_ms = 60000 / (WPM * DitsPerWord)
func TimingFromWPM(wpm int) (Timing, error) {
	if wpm <= 0 {
		return Timing{}, ErrInvalidWPM
	}
	ms := MillisecondsPerMinute / (float64(wpm) * DitsPerWord)
	return Timing{Unit: time.Duration(ms * float64(time.Millisecond))}, nil
}

// Dot is the length of a dot mark.
func (t Timing) Dot() time.Duration { return t.Unit }

// Dash is the length of a dash mark.
func (t Timing) Dash() time.Duration { return DahDitRatio * t.Unit }

// SymbolGap is the pause after every mark.
func (t Timing) SymbolGap() time.Duration { return IntraCharSpaceRatio * t.Unit }

// LetterGap is the pause between letters.
func (t Timing) LetterGap() time.Duration { return InterCharSpaceRatio * t.Unit }

// WordGap is the pause between words and at the end of a message.
func (t Timing) WordGap() time.Duration { return WordSpaceRatio * t.Unit }

// WPM returns the speed in words per minute, rounded.
func (t Timing) WPM() int {
	if t.Unit <= 0 {
		return 0
	}
	ms := float64(t.Unit) / float64(time.Millisecond)
	return int(MillisecondsPerMinute/(ms*DitsPerWord) + 0.5)
}

// Thresholds scales the unit by r.
func (t Timing) Thresholds(r Ratios) (Thresholds, error) {
	if t.Unit <= 0 {
		return Thresholds{}, ErrInvalidUnit
	}
	if err := r.Validate(); err != nil {
		return Thresholds{}, err
	}
	return Thresholds{
		DotMin:    t.scale(r.Noise),
		DashMin:   t.scale(r.DitDah),
		LetterGap: t.scale(r.Letter),
		WordGap:   t.scale(r.Word),
	}, nil
}

func (t Timing) scale(ratio float64) time.Duration {
	return time.Duration(float64(t.Unit) * ratio)
}

// Thresholds classify received marks and silences.
//
// A mark shorter than DotMin is noise, one in [DotMin, DashMin) is a dot and
// anything longer is a dash. A silence longer than WordGap ends a word, one
// longer than LetterGap ends a letter, anything shorter is an intra-letter pause.
type Thresholds struct {
	DotMin    time.Duration
	DashMin   time.Duration
	LetterGap time.Duration
	WordGap   time.Duration
}

// DotMax is the exclusive upper bound of a dot.
func (th Thresholds) DotMax() time.Duration {
	return th.DashMin
}
