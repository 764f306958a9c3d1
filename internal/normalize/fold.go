package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// StripAccents removes combining diacritical marks ("categoría" →
// "categoria") so Spanish headers and descriptions match ASCII tables.
func StripAccents(s string) string {
	out, _, err := transform.String(accentStripper, s)
	if err != nil {
		return s
	}
	return out
}

var innerSpaceRe = regexp.MustCompile(`\s+`)

// FoldKey lower-cases, strips accents and collapses whitespace. It is the
// shared normal form for header names, preference-map keys and pattern
// matching inputs.
func FoldKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(StripAccents(s)))
	return innerSpaceRe.ReplaceAllString(s, " ")
}

var (
	merchantNoiseRe = regexp.MustCompile(`\b\d{4,}\b|\*+|#\d+`)
	titleCaser      = cases.Title(language.Und)
)

// MerchantLabel derives a cleaned display label from a raw transaction
// description: card reference numbers and filler symbols are dropped and
// the remainder is title-cased.
func MerchantLabel(description string) string {
	s := merchantNoiseRe.ReplaceAllString(description, " ")
	s = innerSpaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
	if s == "" {
		return ""
	}
	return titleCaser.String(strings.ToLower(s))
}
