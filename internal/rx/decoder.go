// internal/rx/decoder.go
// Package rx reconstructs Morse text from a stream of sampled on/off levels.
package rx

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ColonelBlimp/morselink/internal/morse"
)

var (
	// ErrInvalidDotMin indicates the noise floor must be positive
	ErrInvalidDotMin = errors.New("dot minimum must be positive")
	// ErrInvalidDashMin indicates the dash threshold must be above the noise floor
	ErrInvalidDashMin = errors.New("dash minimum must be greater than dot minimum")
	// ErrInvalidGaps indicates the letter gap must be positive and below the word gap
	ErrInvalidGaps = errors.New("letter gap must be positive and less than word gap")
)

// Edge is a transition in the sampled signal level.
type Edge struct {
	// Rising is true for off→on, false for on→off
	Rising bool
	// Timestamp is when the transition was sampled
	Timestamp time.Time
}

// Update describes what a single edge appended to the decoded output.
type Update struct {
	// Code is the text appended to the code trace (glyphs and separators)
	Code string
	// Text is the text appended to the decoded text (empty for bare symbols)
	Text string
	// Timestamp is when the update happened
	Timestamp time.Time
}

// UpdateCallback is called whenever the decoded output grows.
// Must be non-blocking and fast; it runs with the decoder locked.
type UpdateCallback func(u Update)

// Result is a snapshot of the decoded output.
type Result struct {
	Code string
	Text string
}

// Decoder is an edge-triggered state machine turning level samples into
// a code trace and decoded text. One decoder serves one session.
type Decoder struct {
	thresholds morse.Thresholds
	codebook   *morse.Codebook

	mu sync.Mutex

	// Symbol accumulator
	signalState bool
	lastEdge    time.Time
	symbols     []byte

	// Decoded output, append-only until Reset
	code strings.Builder
	text strings.Builder

	callbackPtr *UpdateCallback
}

// NewDecoder creates a decoder classifying against th. A nil codebook uses
// morse.Default.
func NewDecoder(th morse.Thresholds, cb *morse.Codebook) (*Decoder, error) {
	if th.DotMin <= 0 {
		return nil, ErrInvalidDotMin
	}
	if th.DashMin <= th.DotMin {
		return nil, ErrInvalidDashMin
	}
	if th.LetterGap <= 0 || th.LetterGap >= th.WordGap {
		return nil, ErrInvalidGaps
	}
	if cb == nil {
		cb = morse.Default
	}
	return &Decoder{
		thresholds: th,
		codebook:   cb,
		symbols:    make([]byte, 0, 8),
	}, nil
}

// SetCallback sets the callback for decoded output.
func (d *Decoder) SetCallback(cb UpdateCallback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cb == nil {
		d.callbackPtr = nil
	} else {
		d.callbackPtr = &cb
	}
}

// Thresholds returns the classification thresholds.
func (d *Decoder) Thresholds() morse.Thresholds {
	return d.thresholds
}

// Reset starts a new session at start: signal off, empty accumulator and output.
func (d *Decoder) Reset(start time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.signalState = false
	d.lastEdge = start
	d.symbols = d.symbols[:0]
	d.code.Reset()
	d.text.Reset()
}

// Process feeds one level sample. Samples that do not change the level are
// ignored. Samples must arrive in timestamp order.
func (d *Decoder) Process(high bool, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if high == d.signalState {
		return
	}
	d.handleEdge(Edge{Rising: high, Timestamp: at})
}

// HandleEdge applies an already detected edge. An edge that repeats the
// current level is ignored.
func (d *Decoder) HandleEdge(e Edge) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e.Rising == d.signalState {
		return
	}
	d.handleEdge(e)
}

func (d *Decoder) handleEdge(e Edge) {
	elapsed := e.Timestamp.Sub(d.lastEdge)

	if e.Rising {
		d.handleSilenceEnd(elapsed, e.Timestamp)
	} else {
		d.handleMarkEnd(elapsed, e.Timestamp)
	}

	d.signalState = e.Rising
	d.lastEdge = e.Timestamp
}

// handleSilenceEnd classifies the silence that a rising edge just ended.
// A word gap closes the pending letter before the word separator is written.
func (d *Decoder) handleSilenceEnd(gap time.Duration, at time.Time) {
	switch {
	case gap > d.thresholds.WordGap:
		d.closeLetter(at)
		d.closeWord(at)
	case gap > d.thresholds.LetterGap:
		d.closeLetter(at)
	}
}

// handleMarkEnd classifies the mark that a falling edge just ended.
func (d *Decoder) handleMarkEnd(pulse time.Duration, at time.Time) {
	var symbol byte
	switch {
	case pulse < d.thresholds.DotMin:
		return // noise
	case pulse < d.thresholds.DashMin:
		symbol = morse.Dot
	default:
		symbol = morse.Dash
	}

	d.symbols = append(d.symbols, symbol)
	d.code.WriteByte(symbol)
	d.emit(Update{Code: string(symbol), Timestamp: at})
}

// closeLetter resolves the accumulator into a character.
func (d *Decoder) closeLetter(at time.Time) {
	if len(d.symbols) == 0 {
		return
	}

	char := string(d.codebook.DecodeCode(string(d.symbols)))
	d.symbols = d.symbols[:0]

	d.text.WriteString(char)
	d.code.WriteByte(morse.LetterGap)
	d.emit(Update{Code: string(morse.LetterGap), Text: char, Timestamp: at})
}

// closeWord appends a word gap. Leading silence and repeated gaps each count.
func (d *Decoder) closeWord(at time.Time) {
	code := string([]byte{morse.WordGap, morse.LetterGap})
	d.text.WriteByte(' ')
	d.code.WriteString(code)
	d.emit(Update{Code: code, Text: " ", Timestamp: at})
}

func (d *Decoder) emit(u Update) {
	if d.callbackPtr != nil {
		(*d.callbackPtr)(u)
	}
}

// Flush closes the letter in progress, if any. Called when a session stops
// so the final letter of a message is not lost.
func (d *Decoder) Flush(at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeLetter(at)
}

// Pending returns the symbols of the letter in progress.
func (d *Decoder) Pending() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return string(d.symbols)
}

// SignalState returns the current held level.
func (d *Decoder) SignalState() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.signalState
}

// Code returns the code trace so far.
func (d *Decoder) Code() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.code.String()
}

// Text returns the decoded text so far.
func (d *Decoder) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text.String()
}

// Result returns both outputs at once.
func (d *Decoder) Result() Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Result{Code: d.code.String(), Text: d.text.String()}
}
