package workout

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jinzhu/inflection"
)

//nolint:gochecknoglobals // read-only lookup table
var abbreviations = map[string]bool{
	"rdl": true, "ohp": true, "db": true, "bb": true, "ez": true, "cgbp": true, "bw": true,
	"tbdl": true, "sumo": true, "rom": true, "amrap": true, "emom": true, "rpe": true, "rm": true,
}

func splitName(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool {
		return unicode.IsSpace(r) || r == '_' || r == '-'
	})
}

// NormalizeMovementName returns the key movements are deduplicated by, e.g. "Single Leg RDLs" becomes
// "single-leg-rdl". Every word is singularized, words of up to two runes are kept as is.
func NormalizeMovementName(name string) string {
	words := splitName(strings.ToLower(name))
	for i, w := range words {
		if utf8.RuneCountInString(w) > 2 { //nolint:mnd // "bw", "db" and "ez" are not plurals
			words[i] = inflection.Singular(w)
		}
	}
	return strings.Join(words, "-")
}

// FormatMovementName returns the display form of a movement name, e.g. "single_leg rdl" becomes
// "Single Leg RDL".
func FormatMovementName(name string) string {
	words := splitName(name)
	for i, w := range words {
		lower := strings.ToLower(w)
		if abbreviations[lower] {
			words[i] = strings.ToUpper(lower)
			continue
		}
		r, size := utf8.DecodeRuneInString(lower)
		words[i] = string(unicode.ToUpper(r)) + lower[size:]
	}
	return strings.Join(words, " ")
}
