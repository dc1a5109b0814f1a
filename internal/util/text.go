package util

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	whitespace  = regexp.MustCompile(`\s+`)
	inlineSpace = regexp.MustCompile(`[ \t\f\v\r]+`)
	handleChars = regexp.MustCompile(`^[A-Za-z0-9_]{1,50}$`)
)

// NormalizeWhitespace trims and collapses whitespace to single spaces.
func NormalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// NormalizeLines collapses runs of spaces inside each line but keeps line breaks.
func NormalizeLines(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(inlineSpace.ReplaceAllString(l, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// ContainsAnyCaseInsensitive returns true if text contains any of the needles (case-insensitive).
func ContainsAnyCaseInsensitive(text string, needles []string) bool {
	lt := strings.ToLower(text)
	for _, n := range needles {
		if strings.Contains(lt, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// CleanHandle strips a leading @ and surrounding space. Returns "" for anything
// that is not a plausible account handle.
func CleanHandle(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "@")
	if !handleChars.MatchString(s) {
		return ""
	}
	return s
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
