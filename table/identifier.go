package table

import "strings"

// IdentifierCandidates are header names that usually name the client
var IdentifierCandidates = []string{
	"nome da empresa",
	"empresa",
	"company",
	"name",
	"cliente",
	"organization",
	"razão social",
	"razao social",
}

// dateKeywords mark columns that are never identifiers (form timestamps and the like)
var dateKeywords = []string{"data", "date", "time", "carimbo", "timestamp", "hora"}

// IdentifierColumn picks the column used to label rows:
//  1. a header equal to a candidate, then one containing a candidate
//  2. the first header with no date keyword
//  3. the first header
func IdentifierColumn(columns []string) string {
	if len(columns) == 0 {
		return ""
	}

	for _, cand := range IdentifierCandidates {
		for _, c := range columns {
			if strings.EqualFold(strings.TrimSpace(c), cand) {
				return c
			}
		}
	}
	if c, ok := firstContaining(columns, IdentifierCandidates); ok {
		return c
	}

	for _, c := range columns {
		if !containsAny(strings.ToLower(c), dateKeywords) {
			return c
		}
	}
	return columns[0]
}

func firstContaining(columns, fragments []string) (string, bool) {
	for _, c := range columns {
		if containsAny(strings.ToLower(c), fragments) {
			return c, true
		}
	}
	return "", false
}

func containsAny(s string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}
