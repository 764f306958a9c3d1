// Package normalize provides the shared primitives that turn
// locale-ambiguous money and date strings into canonical numeric and ISO
// forms. Every extraction path (CSV, statement PDF, receipt, AI output)
// funnels its fields through this package so results are indistinguishable
// downstream.
package normalize

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	currencyRunes = "€$£¥₤"
	// comma followed by exactly 1-2 digits at the end means a European
	// decimal comma ("45,2", "1.234,56")
	euDecimalRe = regexp.MustCompile(`,\d{1,2}$`)
	amountJunk  = regexp.MustCompile(`[^\d.,+-]`)
)

// ParseAmount converts a raw money string into a signed float.
// Returns (0, false) when nothing numeric can be recovered; the zero value
// is the documented sentinel for irrecoverable amounts.
//
// Disambiguation rule: if a comma is followed by exactly 1-2 trailing
// digits, the comma is the decimal separator and dots are thousands
// separators (European). Otherwise commas are thousands separators.
// If several dots survive, only the last one is kept as the decimal point.
func ParseAmount(raw string) (float64, bool) {
	d, ok := ParseAmountDecimal(raw)
	if !ok {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}

// ParseAmountDecimal is ParseAmount without the float conversion, for
// callers that need exact arithmetic (receipt item reconciliation,
// tolerance checks).
func ParseAmountDecimal(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, false
	}

	// Trailing minus ("45,20-") and parenthesized negatives ("(45.20)").
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasSuffix(s, "-") {
		negative = true
		s = strings.TrimSuffix(s, "-")
	}

	for _, r := range currencyRunes {
		s = strings.ReplaceAll(s, string(r), "")
	}
	s = amountJunk.ReplaceAllString(s, "")
	if s == "" || s == "-" || s == "+" {
		return decimal.Zero, false
	}

	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimPrefix(s, "-")
	}
	s = strings.TrimPrefix(s, "+")

	if euDecimalRe.MatchString(s) {
		// European: dots are thousands separators, comma is the decimal.
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	} else {
		// US/plain: commas are thousands separators.
		s = strings.ReplaceAll(s, ",", "")
	}

	// Collapse any remaining multiple dots, keeping the last as decimal.
	if strings.Count(s, ".") > 1 {
		last := strings.LastIndex(s, ".")
		intPart := strings.ReplaceAll(s[:last], ".", "")
		s = intPart + s[last:]
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// LooksLikeAmount reports whether a cell's content would normalize to a
// number, used for content-sniffing columns.
func LooksLikeAmount(raw string) bool {
	s := strings.TrimSpace(raw)
	if s == "" {
		return false
	}
	hasDigit := false
	for _, r := range s {
		if r >= '0' && r <= '9' {
			hasDigit = true
			break
		}
	}
	if !hasDigit {
		return false
	}
	_, ok := ParseAmountDecimal(s)
	return ok
}
