// Package filter implements the substring inclusion filters applied to
// exam and series collections before download.
//
// Patterns are comma-separated, case-insensitive, and OR-combined: a
// record passes when the inspected field is non-empty and contains at
// least one pattern as a substring. An empty pattern list filters
// nothing.
//
// Filtering always reports what it saw and what it kept through the
// supplied log function, so an operator can diagnose a filter that
// matched nothing:
//
//	kept := filter.ByField(series, "series description",
//	    func(s model.SeriesRecord) string { return s.Description },
//	    "t1,spgr,bravo,mpr", logf)
package filter

import "strings"

// Patterns parses a comma-separated pattern list into lowercased,
// trimmed substrings. Blank entries are dropped; an empty or blank
// input yields nil.
func Patterns(spec string) []string {
	if strings.TrimSpace(spec) == "" {
		return nil
	}
	var patterns []string
	for _, p := range strings.Split(spec, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

// Matches reports whether value is non-empty and contains at least one
// of the patterns, case-insensitively. With no patterns every value
// matches.
func Matches(value string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	if value == "" {
		return false
	}
	lower := strings.ToLower(value)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// ByField filters records on one field, keeping those whose field value
// matches the pattern spec. An empty spec returns records unchanged and
// logs nothing.
//
// The field values seen before filtering and the before/after counts
// are reported through logf, one line each. logf may be nil.
func ByField[T any](records []T, fieldName string, value func(T) string, spec string, logf func(format string, args ...any)) []T {
	patterns := Patterns(spec)
	if len(patterns) == 0 {
		return records
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}

	before := make([]string, len(records))
	for i, r := range records {
		before[i] = value(r)
	}

	kept := make([]T, 0, len(records))
	for _, r := range records {
		if Matches(value(r), patterns) {
			kept = append(kept, r)
		}
	}

	logf("original %s values (n=%d): %s", fieldName, len(before), strings.Join(before, "; "))
	logf("%s values after filtering (n=%d): %s", fieldName, len(kept), joinField(kept, value))

	return kept
}

func joinField[T any](records []T, value func(T) string) string {
	values := make([]string, len(records))
	for i, r := range records {
		values[i] = value(r)
	}
	return strings.Join(values, "; ")
}
