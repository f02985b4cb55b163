package model

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// countyCode reduces a county name to a three-letter uppercase code:
// decompose, strip diacritics, drop non-letters, take the first three runes.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func countyCode(countyName string) string {
	cleaned, _, err := transform.String(stripMarks, countyName)
	if err != nil {
		cleaned = countyName
	}
	var b strings.Builder
	for _, r := range cleaned {
		if unicode.IsLetter(r) {
			b.WriteRune(unicode.ToUpper(r))
			if b.Len() >= 3 {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "UNK"
	}
	return b.String()
}

// DisplayID builds the human-readable cave id from a state abbreviation, a
// county name, and the county number allocated at first approval, e.g.
// "AR-WAS-0142".
func DisplayID(stateAbbrev, countyName string, countyNumber int) string {
	return fmt.Sprintf("%s-%s-%04d", strings.ToUpper(stateAbbrev), countyCode(countyName), countyNumber)
}
