package domain

import (
	"strings"
	"unicode"
)

// NormalizePhone trims surrounding whitespace and prefixes "+" unless the
// value already starts with one. Internal whitespace is left untouched.
func NormalizePhone(raw string) string {
	trimmed := strings.TrimFunc(raw, isTrimmable)
	if strings.HasPrefix(trimmed, "+") {
		return trimmed
	}
	return "+" + trimmed
}

// NormalizePhones normalizes every entry and drops the ones that end up with
// nothing after the "+". Order is preserved.
func NormalizePhones(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		n := NormalizePhone(r)
		if len(n) <= 1 {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Batches splits ids into consecutive slices of at most size entries.
func Batches(ids []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	batches := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end])
	}
	return batches
}

func isTrimmable(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}
