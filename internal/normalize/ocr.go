package normalize

import (
	"regexp"
	"strings"
)

// OCR misreads corrected here are merchant-agnostic: digit/letter
// confusion inside numeric contexts, irregular spacing around decimal
// separators, and 'E' read in place of the euro sign. The cleanup is only
// applied to OCR output, never to text lifted from a PDF text layer.

var (
	// letter O or l sandwiched between digits or next to a decimal
	// separator is a misread 0/1.
	oBetweenDigitsRe = regexp.MustCompile(`(\d)[Oo](\d)`)
	oAfterSepRe      = regexp.MustCompile(`([.,])[Oo](\d|\b)`)
	oBeforeSepRe     = regexp.MustCompile(`(\d|\b)[Oo]([.,]\d)`)
	oTrailingRe      = regexp.MustCompile(`(\d)[Oo]\b`)
	lBetweenDigitsRe = regexp.MustCompile(`(\d)[l|](\d)`)
	lBeforeSepRe     = regexp.MustCompile(`(\d)[l|]([.,]\d)`)
	lLeadingNumRe    = regexp.MustCompile(`\b[l|](\d[\d.,]*)`)

	// "12 , 34" / "12 ,34" / "12, 34" → "12,34"
	spacedSeparatorRe = regexp.MustCompile(`(\d)\s*([.,])\s*(\d)`)

	// "3,45 E" or "3.45E" at a number boundary is a misread euro sign.
	trailingERe = regexp.MustCompile(`(\d[.,]\d{2})\s*E\b`)
)

// CleanOCRText repairs common OCR artifacts in receipt text so the
// deterministic merchant parsers see well-formed numbers.
func CleanOCRText(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = cleanOCRLine(line)
	}
	return strings.Join(lines, "\n")
}

func cleanOCRLine(line string) string {
	s := line

	// Run digit-context replacements until stable; a single pass misses
	// overlapping matches like "1O O2".
	for {
		next := oBetweenDigitsRe.ReplaceAllString(s, "${1}0${2}")
		next = oAfterSepRe.ReplaceAllString(next, "${1}0${2}")
		next = oBeforeSepRe.ReplaceAllString(next, "${1}0${2}")
		next = oTrailingRe.ReplaceAllString(next, "${1}0")
		next = lBetweenDigitsRe.ReplaceAllString(next, "${1}1${2}")
		next = lBeforeSepRe.ReplaceAllString(next, "${1}1${2}")
		next = lLeadingNumRe.ReplaceAllString(next, "1${1}")
		if next == s {
			break
		}
		s = next
	}

	s = spacedSeparatorRe.ReplaceAllString(s, "${1}${2}${3}")
	s = trailingERe.ReplaceAllString(s, "${1}€")

	return s
}
