package ccda

import "strings"

// unitPrefixes are the recognized strength units. A token counts as a unit
// when it equals one of these case-insensitively or starts with one followed
// by a slash (e.g. "MG/ML").
var unitPrefixes = []string{"MG", "MEQ", "UNT"}

// SplitStrength scans a free-text dispensable drug name of the shape
// "<name tokens> <strength> <unit> <trailing tokens>" and returns the
// strength and unit tokens. The scan takes the first token recognized as a
// unit; the token immediately before it becomes the strength. A unit in the
// leading position yields a unit with no strength, and a name with no
// recognizable unit yields two empty strings. The strength token is not
// validated as numeric; whatever precedes the unit is accepted.
func SplitStrength(name string) (strength, unit string) {
	tokens := strings.Split(name, " ")
	for i, tok := range tokens {
		if !isUnitToken(tok) {
			continue
		}
		if i > 0 {
			strength = tokens[i-1]
		}
		return strength, tok
	}
	return "", ""
}

func isUnitToken(tok string) bool {
	upper := strings.ToUpper(tok)
	for _, u := range unitPrefixes {
		if upper == u || strings.HasPrefix(upper, u+"/") {
			return true
		}
	}
	return false
}
