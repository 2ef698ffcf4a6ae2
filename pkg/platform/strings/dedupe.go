// Package strings provides string slice utilities.
package strings

import (
	"strings"
)

// Dedupe removes exact duplicates and empty strings from a slice.
// Order is preserved and values are not altered, so it is safe for
// case-sensitive identifiers such as wallet addresses.
//
// Example:
//
//	Dedupe([]string{"Abc", "abc", "Abc", ""})
//	// Returns: []string{"Abc", "abc"}
func Dedupe(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			result = append(result, v)
		}
	}

	return result
}

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

	trimmed := make([]string, 0, len(values))
	for _, v := range values {
		trimmed = append(trimmed, strings.TrimSpace(v))
	}
	return Dedupe(trimmed)
}

// Without returns values minus every element equal to one of remove.
// Order of the remaining elements is preserved.
func Without(values []string, remove []string) []string {
	if len(values) == 0 || len(remove) == 0 {
		return values
	}

	drop := make(map[string]struct{}, len(remove))
	for _, r := range remove {
		drop[r] = struct{}{}
	}

	result := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := drop[v]; !ok {
			result = append(result, v)
		}
	}
	return result
}

// SplitList splits a comma-separated configuration value into trimmed,
// deduplicated, non-empty parts.
func SplitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return DedupeAndTrim(strings.Split(value, ","))
}
