package statement

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/amoreno/finparse/internal/normalize"
)

// Header phrases that anchor tier 1. Statements in Spanish and English are
// both common in the wild; the phrases only need the column words in order.
var headerLineRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)transaction.*date.*amount.*balance`),
	regexp.MustCompile(`(?i)date.*(description|details|concept).*amount`),
	regexp.MustCompile(`(?i)fecha.*(concepto|descripci[oó]n).*importe`),
	regexp.MustCompile(`(?i)fecha.*importe.*saldo`),
}

const monthAbbrevAlt = `ene|feb|mar|abr|apr|may|jun|jul|ago|aug|sep|set|oct|nov|dic|dec|jan`

// Date pattern families, most specific first.
var (
	monthNameDateRe = regexp.MustCompile(
		`(?i)\b(\d{1,2})[\s\-/.]{1,3}(` + monthAbbrevAlt + `)[a-z]*\.?[\s\-/.]{1,3}(\d{2,4})\b`)
	slashDateRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{2,4})\b`)
	isoLikeRe   = regexp.MustCompile(`\b(\d{4})[-/](\d{1,2})[-/](\d{1,2})\b`)
)

var dateFamilies = []*regexp.Regexp{monthNameDateRe, slashDateRe, isoLikeRe}

// Amount pattern families for the aggressive tier, strictest to loosest.
// The final family accepts any 2+ digit number and exists only as a last
// resort.
var amountFamilies = []*regexp.Regexp{
	regexp.MustCompile(`-?\d{1,3}(?:\.\d{3})*,\d{2}\s*(?:€|EUR)`),
	regexp.MustCompile(`-?\d{1,3}(?:,\d{3})*\.\d{2}\s*(?:€|EUR|\$|USD|GBP|£)`),
	regexp.MustCompile(`(?:€|\$|£)\s*-?\d{1,3}(?:[.,]\d{3})*[.,]\d{2}`),
	regexp.MustCompile(`-?\d{1,3}(?:\.\d{3})+,\d{2}`),
	regexp.MustCompile(`-?\d{1,3}(?:,\d{3})+\.\d{2}`),
	regexp.MustCompile(`-?\d+[.,]\d{2}`),
	regexp.MustCompile(`-?\d{2,}`),
}

// monetaryTokenRe matches currency-shaped tokens when scanning table rows
// right to left for amount and balance columns.
var monetaryTokenRe = regexp.MustCompile(`^-?(?:€|\$|£)?\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{1,2})?(?:€|\$|£|EUR|USD|GBP)?$|^-?\d+[.,]\d{2}(?:€|\$|£|EUR)?$`)

// findDate locates the first recognizable date in a line and returns its
// ISO form along with the matched span.
func findDate(line string) (iso string, start, end int) {
	if m := monthNameDateRe.FindStringSubmatchIndex(line); m != nil {
		day := line[m[2]:m[3]]
		mon := line[m[4]:m[5]]
		year := line[m[6]:m[7]]
		if iso := monthNameToISO(day, mon, year); iso != "" {
			return iso, m[0], m[1]
		}
	}
	if m := slashDateRe.FindStringIndex(line); m != nil {
		if iso := normalize.ParseDate(line[m[0]:m[1]]); iso != "" {
			return iso, m[0], m[1]
		}
	}
	if m := isoLikeRe.FindStringIndex(line); m != nil {
		raw := strings.ReplaceAll(line[m[0]:m[1]], "/", "-")
		if iso := normalize.ParseDate(raw); iso != "" {
			return iso, m[0], m[1]
		}
	}
	return "", 0, 0
}

func monthNameToISO(day, mon, year string) string {
	m, ok := normalize.MonthFromAbbrev(mon)
	if !ok {
		return ""
	}
	if len(year) == 2 {
		n, err := strconv.Atoi(year)
		if err != nil {
			return ""
		}
		if n < 70 {
			year = fmt.Sprintf("20%02d", n)
		} else {
			year = fmt.Sprintf("19%02d", n)
		}
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return ""
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return ""
	}
	return normalize.ParseDate(fmt.Sprintf("%04d-%02d-%02d", y, int(m), d))
}

// parseMonetary normalizes a matched token into a signed amount.
func parseMonetary(token string) (float64, bool) {
	return normalize.ParseAmount(token)
}

// plausibleAmount bounds accepted magnitudes for the aggressive tier so
// page numbers and reference codes are less likely to be picked up.
func plausibleAmount(v float64) bool {
	abs := v
	if abs < 0 {
		abs = -abs
	}
	return abs >= 0.01 && abs <= 1_000_000
}
