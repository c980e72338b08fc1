// internal/morse/codebook.go
// Package morse holds the Morse codebook, the text codec and the timing model
// shared by the transmitter and the receiver.
package morse

import (
	"unicode"
)

// Code string glyphs
const (
	// Dot is a short mark
	Dot = '.'
	// Dash is a long mark (3 units)
	Dash = '-'
	// LetterGap separates two letters in a code string
	LetterGap = ' '
	// WordGap separates two words in a code string
	WordGap = '/'

	// Unknown is rendered for codes that have no character in the codebook
	Unknown = '?'
)

// itu is the character table. Space is a first-class entry mapped to the word gap.
var itu = map[rune]string{
	'A': ".-", 'B': "-...", 'C': "-.-.", 'D': "-..", 'E': ".", 'F': "..-.",
	'G': "--.", 'H': "....", 'I': "..", 'J': ".---", 'K': "-.-", 'L': ".-..",
	'M': "--", 'N': "-.", 'O': "---", 'P': ".--.", 'Q': "--.-", 'R': ".-.",
	'S': "...", 'T': "-", 'U': "..-", 'V': "...-", 'W': ".--", 'X': "-..-",
	'Y': "-.--", 'Z': "--..",

	'0': "-----", '1': ".----", '2': "..---", '3': "...--", '4': "....-",
	'5': ".....", '6': "-....", '7': "--...", '8': "---..", '9': "----.",

	'.': ".-.-.-", ',': "--..--", '?': "..--..", '\'': ".----.", '!': "-.-.--",
	'/': "-..-.", '(': "-.--.", ')': "-.--.-", '&': ".-...", ':': "---...",
	';': "-.-.-.", '=': "-...-", '+': ".-.-.", '-': "-....-", '_': "..--.-",
	'"': ".-..-.", '$': "...-..-", '@': ".--.-.",

	' ': string(WordGap),
}

// Codebook is an immutable bidirectional mapping between characters and codes.
type Codebook struct {
	forward map[rune]string
	reverse map[string]rune
}

// Default is the process-wide ITU codebook.
var Default = NewCodebook(itu)

// NewCodebook builds a codebook from a character table. Letters are stored
// upper case. If two characters share a code the later one in iteration order
// wins on decode, so callers must pass a bijective table.
func NewCodebook(table map[rune]string) *Codebook {
	cb := &Codebook{
		forward: make(map[rune]string, len(table)),
		reverse: make(map[string]rune, len(table)),
	}
	for r, code := range table {
		r = unicode.ToUpper(r)
		cb.forward[r] = code
		cb.reverse[code] = r
	}
	return cb
}

// EncodeChar returns the code for r. Lookup is case-insensitive.
// Characters outside the alphabet return ("", false).
func (cb *Codebook) EncodeChar(r rune) (string, bool) {
	code, ok := cb.forward[unicode.ToUpper(r)]
	return code, ok
}

// DecodeCode returns the character for code, or Unknown.
func (cb *Codebook) DecodeCode(code string) rune {
	if r, ok := cb.reverse[code]; ok {
		return r
	}
	return Unknown
}

// Codes returns a copy of the character table.
func (cb *Codebook) Codes() map[rune]string {
	out := make(map[rune]string, len(cb.forward))
	for r, code := range cb.forward {
		out[r] = code
	}
	return out
}

// EncodeChar looks r up in the Default codebook.
func EncodeChar(r rune) (string, bool) {
	return Default.EncodeChar(r)
}

// DecodeCode looks code up in the Default codebook.
func DecodeCode(code string) rune {
	return Default.DecodeCode(code)
}
