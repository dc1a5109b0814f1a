package util

import (
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

// ParseCount reads a display count such as "1,234", "12.5K", "3M" or "2B".
// Negative, non-finite and unparsable input reports false.
func ParseCount(s string) (int, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(s, ",", ""), " ", ""))
	if s == "" {
		return 0, false
	}
	// humanize uses SI prefixes: k is kilo, M is mega, G is giga, m would be milli.
	switch last := s[len(s)-1]; last {
	case 'K', 'k':
		s = s[:len(s)-1] + "k"
	case 'M', 'm':
		s = s[:len(s)-1] + "M"
	case 'B', 'b':
		s = s[:len(s)-1] + "G"
	}
	v, _, err := humanize.ParseSI(s)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	if v > math.MaxInt32 {
		return math.MaxInt32, true
	}
	return int(math.Round(v)), true
}
