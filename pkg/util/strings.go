package util

import "strings"

// NormalizeSymbols trims and uppercases every symbol and drops blanks.
// Order and duplicates are preserved so that callers can still reject them.
func NormalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
