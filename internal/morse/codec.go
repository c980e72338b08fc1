// internal/morse/codec.go
package morse

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var upper = cases.Upper(language.Und)

// TextToCode converts text to a code string using the Default codebook.
func TextToCode(text string) string {
	return Default.TextToCode(text)
}

// CodeToText converts a code string to text using the Default codebook.
func CodeToText(code string) string {
	return Default.CodeToText(code)
}

// TextToCode upper-cases text and joins the code of every character with a
// single letter gap. Characters without a code contribute an empty token, so
// they show up as an extra separator rather than a placeholder.
func (cb *Codebook) TextToCode(text string) string {
	text = upper.String(text)

	tokens := make([]string, 0, len(text))
	for _, r := range text {
		code, _ := cb.EncodeChar(r)
		tokens = append(tokens, code)
	}
	return strings.Join(tokens, string(LetterGap))
}

// CodeToText splits code on letter gaps and decodes every token.
// Empty tokens decode to nothing, unknown tokens to Unknown.
func (cb *Codebook) CodeToText(code string) string {
	var sb strings.Builder
	for _, token := range strings.Split(code, string(LetterGap)) {
		if token == "" {
			continue
		}
		sb.WriteRune(cb.DecodeCode(token))
	}
	return sb.String()
}
