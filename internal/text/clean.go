package text

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"
)

var (
	controlChars     = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	excessNewlines   = regexp.MustCompile(`\n{3,}`)
	invisibleReplace = strings.NewReplacer(
		"\u2060", "", // word joiner
		"\uFEFF", "", // byte order mark
		"\u00AD", "", // soft hyphen
		"\u200E", "", // left-to-right mark
		"\u200F", "", // right-to-left mark
		"\u2028", "\n",
		"\u2029", "\n\n",
		"\u200B", " ",
		"\u00A0", " ",
		"\u202F", " ",
	)
)

// Clean prepares message text for display in a notification. Unlike
// Normalize it keeps case, punctuation and paragraph breaks; it only removes
// invisible and control characters, collapses spaces within lines and caps
// blank lines at one.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = invisibleReplace.Replace(s)
	s = controlChars.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = collapseSpaces(line)
	}

	s = excessNewlines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(s)
}

// Preview returns at most limit runes of Clean(s) on a single line, with an
// ellipsis when truncated. Used for log fields.
func Preview(s string, limit int) string {
	s = strings.ReplaceAll(Clean(s), "\n", " ")
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return cutRunes(s, limit) + ellipsis
}

// UTF16Len returns the length of s in UTF-16 code units, the unit Telegram
// counts message and caption limits in.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// TruncateUTF16 cuts s so that UTF16Len of the result is at most limit,
// ending it with an ellipsis when anything was removed.
func TruncateUTF16(s string, limit int) string {
	if UTF16Len(s) <= limit {
		return s
	}
	if limit <= 0 {
		return ""
	}

	budget := limit - 1 // the ellipsis is one code unit
	used, end := 0, 0
	for i, r := range s {
		w := utf16.RuneLen(r)
		if used+w > budget {
			break
		}
		used += w
		end = i + utf8.RuneLen(r)
	}
	return strings.TrimRightFunc(s[:end], unicode.IsSpace) + ellipsis
}

const ellipsis = "…"

func cutRunes(s string, n int) string {
	i := 0
	for j := range s {
		if i == n {
			return s[:j]
		}
		i++
	}
	return s
}

func collapseSpaces(line string) string {
	var sb strings.Builder
	space := false
	for _, r := range line {
		if unicode.IsSpace(r) {
			if !space {
				sb.WriteByte(' ')
				space = true
			}
			continue
		}
		sb.WriteRune(r)
		space = false
	}
	return strings.TrimSpace(sb.String())
}
