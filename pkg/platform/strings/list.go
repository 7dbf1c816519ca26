// Package strings provides string list utilities for header and payload
// values.
package strings

import (
	"strings"
)

// SplitList flattens comma-separated header values into their trimmed,
// non-empty elements. Order and duplicates are preserved.
//
// Example:
//
//	SplitList([]string{"https://a.test/x, https://b.test/y", " ", "https://c.test"})
//	// Returns: []string{"https://a.test/x", "https://b.test/y", "https://c.test"}
func SplitList(values []string) []string {
	var result []string
	for _, v := range values {
		for part := range strings.SplitSeq(v, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
	}
	return result
}

// Dedupe removes repeated elements, keeping the first occurrence.
func Dedupe(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			result = append(result, v)
		}
	}
	return result
}
