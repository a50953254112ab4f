// Package strings holds the list normalization shared by catalog records and
// request metadata.
package strings

import (
	"strings"
)

// DedupeAndTrim trims each value and drops blanks and repeats, keeping the
// first occurrence order.
func DedupeAndTrim(values []string) []string {
	return dedupe(values, strings.TrimSpace)
}

// DedupeAndTrimLower is DedupeAndTrim with case folded to lower, for keys
// such as document types.
func DedupeAndTrimLower(values []string) []string {
	return dedupe(values, func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	})
}

func dedupe(values []string, normalize func(string) string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		n := normalize(v)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
