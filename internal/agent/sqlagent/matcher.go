// Package sqlagent answers data questions against the building database:
// explicit table detection, query generation, a bounded repair loop and a
// natural-language answer.
package sqlagent

import (
	"regexp"
	"sort"
	"strings"
)

var quoteChars = regexp.MustCompile(`["']`)

// FindExplicitTable returns the table named literally in question. Longer
// names are tried first so "resident_distances" wins over "resident".
// Quotes are stripped and matching is case-insensitive on word boundaries.
func FindExplicitTable(question string, tables []string) (string, bool) {
	sorted := make([]string, len(tables))
	copy(sorted, tables)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i]) > len(sorted[j])
	})

	clean := quoteChars.ReplaceAllString(strings.ToLower(question), "")
	for _, name := range sorted {
		if name == "" {
			continue
		}
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(strings.ToLower(name)) + `\b`)
		if err != nil {
			continue
		}
		if re.MatchString(clean) {
			return name, true
		}
	}
	return "", false
}

// FindExplicitColumn returns the first column, in schema order, whose name
// appears anywhere in question (case-insensitive substring). Unlike tables
// there is no length ordering and no word boundary.
func FindExplicitColumn(question string, columns []string) (string, bool) {
	q := strings.ToLower(question)
	for _, c := range columns {
		if c == "" {
			continue
		}
		if strings.Contains(q, strings.ToLower(c)) {
			return c, true
		}
	}
	return "", false
}

// FocusHint appends the column focus hint to question.
func FocusHint(question, column string) string {
	return question + " (Focus only on column: " + column + ")"
}
