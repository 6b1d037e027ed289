// Package i18n translates the labels of rendered feedback reports.
package i18n

import (
	"fmt"
	"strings"
)

// Language represents a supported language.
type Language string

const (
	// English is the English language.
	English Language = "en"
	// Finnish is the Finnish language.
	Finnish Language = "fi"
)

// DefaultLanguage is the fallback language.
const DefaultLanguage = English

// translations maps language codes to translation keys and their values.
//
//nolint:gochecknoglobals // read-only lookup table
var translations = map[Language]map[string]string{
	English: {
		"report.title":                 "Workout feedback",
		"report.quality":               "Completion quality",
		"report.movements":             "Movements",
		"report.balance":               "Muscle balance",
		"report.column.movement":       "Movement",
		"report.column.assessment":     "Assessment",
		"report.column.first_set_reps": "First set reps",
		"report.column.last_set_reps":  "Last set reps",
		"report.column.decline_ratio":  "Decline ratio",
		"report.column.multiplier":     "Suggested multiplier",
		"report.imbalance.dominates":   "%s dominates with a ratio of %s.",
		"pattern.insufficient_data":    "Not enough data",
		"pattern.weight_too_heavy":     "Too heavy",
		"pattern.weight_appropriate":   "Appropriate",
		"pattern.weight_too_light":     "Too light",
		"language.name.en":             "English",
		"language.name.fi":             "Suomi",
	},
	Finnish: {
		"report.title":                 "Treenipalaute",
		"report.quality":               "Suorituksen laatu",
		"report.movements":             "Liikkeet",
		"report.balance":               "Lihastasapaino",
		"report.column.movement":       "Liike",
		"report.column.assessment":     "Arvio",
		"report.column.first_set_reps": "Ensimmäisen sarjan toistot",
		"report.column.last_set_reps":  "Viimeisen sarjan toistot",
		"report.column.decline_ratio":  "Pudotussuhde",
		"report.column.multiplier":     "Ehdotettu kerroin",
		"report.imbalance.dominates":   "%s hallitsee suhteella %s.",
		"pattern.insufficient_data":    "Ei tarpeeksi dataa",
		"pattern.weight_too_heavy":     "Liian raskas",
		"pattern.weight_appropriate":   "Sopiva",
		"pattern.weight_too_light":     "Liian kevyt",
		"language.name.en":             "English",
		"language.name.fi":             "Suomi",
	},
}

// SupportedLanguages returns a list of all supported languages.
func SupportedLanguages() []Language {
	return []Language{English, Finnish}
}

// IsSupported checks if a language is supported.
func IsSupported(lang Language) bool {
	_, ok := translations[lang]
	return ok
}

// ParseLanguage parses a language code such as "fi" or "FI". An empty code is the default language.
func ParseLanguage(code string) (Language, error) {
	if code == "" {
		return DefaultLanguage, nil
	}
	lang := Language(strings.ToLower(strings.TrimSpace(code)))
	if !IsSupported(lang) {
		return "", fmt.Errorf("unsupported language %q", code)
	}
	return lang, nil
}

// Translate returns the translation for the given key in the specified language.
// If the key is not found, it falls back to the default language.
// If still not found, it returns the key itself.
func Translate(lang Language, key string) string {
	if langTranslations, ok := translations[lang]; ok {
		if translation, ok := langTranslations[key]; ok {
			return translation
		}
	}

	if lang != DefaultLanguage {
		if translation, ok := translations[DefaultLanguage][key]; ok {
			return translation
		}
	}

	return key
}
