package enrichment

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NutriScore is a lower-case Nutri-Score grade, "a" (best) to "e" (worst).
// Open Food Facts also returns "unknown" and "not-applicable", which are kept
// as-is and reported as unknown.
type NutriScore string

// ParseNutriScore normalizes a grade string.
func ParseNutriScore(s string) NutriScore {
	return NutriScore(cases.Lower(language.Und).String(strings.TrimSpace(s)))
}

type nutriScoreInfo struct {
	description string
	color       string
}

var nutriScoreGrades = map[NutriScore]nutriScoreInfo{
	"a": {"Excellent nutritional quality", "green"},
	"b": {"Good nutritional quality", "light-green"},
	"c": {"Average nutritional quality", "yellow"},
	"d": {"Poor nutritional quality", "orange"},
	"e": {"Very poor nutritional quality", "red"},
}

// Valid reports whether n is one of the grades a to e.
func (n NutriScore) Valid() bool {
	_, ok := nutriScoreGrades[n]
	return ok
}

// Grade returns the upper-case letter, or "?" when the grade is unknown.
func (n NutriScore) Grade() string {
	if !n.Valid() {
		return "?"
	}
	return cases.Upper(language.Und).String(string(n))
}

// Description returns a human readable rating.
func (n NutriScore) Description() string {
	if info, ok := nutriScoreGrades[n]; ok {
		return info.description
	}
	return "Unknown rating"
}

// Color returns the badge color conventionally used for the grade.
func (n NutriScore) Color() string {
	if info, ok := nutriScoreGrades[n]; ok {
		return info.color
	}
	return "gray"
}
