package imagegen

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxPromptRunes bounds the prompt length accepted by the generators.
const MaxPromptRunes = 2000

// NormalizePrompt applies NFC normalization, drops control characters and
// collapses runs of whitespace. The result may be empty.
func NormalizePrompt(prompt string) string {
	normalized := norm.NFC.String(prompt)
	var b strings.Builder
	b.Grow(len(normalized))
	space := false
	for _, r := range normalized {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case unicode.IsControl(r):
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// PromptTooLong reports whether prompt exceeds MaxPromptRunes.
func PromptTooLong(prompt string) bool {
	return utf8.RuneCountInString(prompt) > MaxPromptRunes
}
