// Package text provides text canonicalization used for keyword matching
// and duplicate detection.
package text

import (
	"strings"
	"unicode"
)

// Normalize canonicalizes raw message text for comparison.
//
// The result is lower case, contains only Latin and Cyrillic letters, ASCII
// digits and single spaces, and has no leading or trailing space. Any Unicode
// whitespace counts as a word separator; brackets and every other rune are
// dropped without leaving a gap. Normalize is idempotent.
func Normalize(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	pendingSpace := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = sb.Len() > 0
		case allowed(r):
			if pendingSpace {
				sb.WriteByte(' ')
				pendingSpace = false
			}
			sb.WriteRune(r)
		}
	}

	return sb.String()
}

// IsQuestion reports whether raw text contains a question mark. The check
// runs on raw text because Normalize strips punctuation.
func IsQuestion(raw string) bool {
	return strings.ContainsRune(raw, '?')
}

func allowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r >= 'а' && r <= 'я', r == 'ё':
		return true
	}
	return false
}
