package grading

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FuzzyYes is the affirmative predicate used by the eligibility gates:
// lower-cased, diacritics stripped, and true when the value contains "si" or
// is exactly "yes".
func FuzzyYes(v string) bool {
	t := foldAccents(strings.ToLower(strings.TrimSpace(v)))
	return strings.Contains(t, "si") || t == "yes"
}

// Yes is the strict check the bulk graders use on choice values.
func Yes(v string) bool {
	return strings.ToLower(strings.TrimSpace(v)) == "yes"
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
