// Package strings provides string-set helpers used for client and scope lists.
package strings

import (
	"strings"
)

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
//
// Example:
//
//	DedupeAndTrim([]string{"  foo ", "bar", "foo", "", "  "})
//	// Returns: []string{"foo", "bar"}
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// Union returns the ordered set union of existing and additions. The result
// never aliases existing, so callers may keep using the input slice.
//
// Example:
//
//	Union([]string{"a", "b"}, "b", "c")
//	// Returns: []string{"a", "b", "c"}
func Union(existing []string, additions ...string) []string {
	merged := make([]string, 0, len(existing)+len(additions))
	merged = append(merged, existing...)
	merged = append(merged, additions...)
	return DedupeAndTrim(merged)
}

// SplitFields splits a space-delimited list (an OAuth scope parameter, for
// instance) into a deduplicated slice. An empty input yields nil.
func SplitFields(s string) []string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	return DedupeAndTrim(fields)
}
