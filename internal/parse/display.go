package parse

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DisplayTitle builds a human-readable fallback title for files neither
// parser could make sense of. Used only for log and UI strings, never for
// catalog lookups.
func DisplayTitle(fileName string) string {
	base := stripExtension(fileName)
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return "Unknown File"
	}
	return cases.Title(language.Und).String(title)
}
