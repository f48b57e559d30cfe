package llm

import (
	"strings"
	"unicode"
)

// CleanText folds line breaks and runs of whitespace into single spaces and drops
// non-printable characters, so each explanation is one line in the rendered status.
func CleanText(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return ' '
		case !unicode.IsPrint(r):
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func joinSemicolon(parts []string) string {
	return strings.Join(parts, "; ")
}
