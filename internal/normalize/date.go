package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Dates outside this range are treated as parser noise (reference numbers,
// Excel serial collisions) rather than real transaction dates.
const (
	MinYear = 1900
	MaxYear = 2100
)

// excelEpoch is the day-zero of Excel's 1900 date system. Excel treats
// 1900 as a leap year, so the usable epoch is 1899-12-30.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var (
	isoDateRe   = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	digits8Re   = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})$`)
	slashDateRe = regexp.MustCompile(`^(\d{1,4})/(\d{1,2})/(\d{1,4})$`)
	dotDateRe   = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{2,4})$`)
)

// monthAbbrevs maps Spanish and English 3-letter month abbreviations to
// month numbers. Overlapping abbreviations (ene/jan, abr/apr, ago/aug,
// dic/dec) are listed for both languages.
var monthAbbrevs = map[string]time.Month{
	"ene": time.January, "jan": time.January,
	"feb": time.February,
	"mar": time.March,
	"abr": time.April, "apr": time.April,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"ago": time.August, "aug": time.August,
	"sep": time.September, "set": time.September,
	"oct": time.October,
	"nov": time.November,
	"dic": time.December, "dec": time.December,
}

// MonthFromAbbrev resolves a Spanish/English month abbreviation
// ("ene", "feb", "aug", ...). The lookup is case-insensitive and only the
// first three letters are significant.
func MonthFromAbbrev(s string) (time.Month, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) > 3 {
		s = s[:3]
	}
	m, ok := monthAbbrevs[s]
	return m, ok
}

// nativeLayouts are tried last, after every structured format failed.
var nativeLayouts = []string{
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2006/01/02",
	"02-01-2006",
	"2006.01.02",
}

// ParseDate converts a raw date string into ISO YYYY-MM-DD.
// Recognized inputs: Excel serial numbers, ISO, 8-digit YYYYMMDD, slash
// formats (day>12 disambiguates DD/MM vs MM/DD), dot formats, and a small
// set of native layouts bounded to 1900-2100. Anything else normalizes to
// the empty string.
func ParseDate(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if m := isoDateRe.FindStringSubmatch(s); m != nil {
		return buildISO(m[1], m[2], m[3])
	}

	// 8-digit YYYYMMDD outranks the Excel-serial reading of the same
	// digits; a serial that large would be far outside the year range
	// anyway.
	if m := digits8Re.FindStringSubmatch(s); m != nil {
		return buildISO(m[1], m[2], m[3])
	}

	// Excel serial date: a bare integer above 31.
	if n, err := strconv.Atoi(s); err == nil {
		if n > 31 {
			d := excelEpoch.AddDate(0, 0, n)
			if inYearRange(d.Year()) {
				return d.Format("2006-01-02")
			}
		}
		return ""
	}

	if m := slashDateRe.FindStringSubmatch(s); m != nil {
		return parseSlashDate(m[1], m[2], m[3])
	}

	if m := dotDateRe.FindStringSubmatch(s); m != nil {
		year := expandYear(m[3])
		return buildISO(year, m[2], m[1])
	}

	for _, layout := range nativeLayouts {
		if d, err := time.Parse(layout, s); err == nil && inYearRange(d.Year()) {
			return d.Format("2006-01-02")
		}
	}

	return ""
}

// parseSlashDate handles YYYY/MM/DD and DD/MM/YYYY (plus the ambiguous
// MM/DD case, resolved by day>12 or defaulting to day-first).
func parseSlashDate(a, b, c string) string {
	if len(a) == 4 {
		return buildISO(a, b, c)
	}
	year := expandYear(c)
	first, _ := strconv.Atoi(a)
	second, _ := strconv.Atoi(b)
	day, month := a, b
	// A first component above 12 can only be a day; a second component
	// above 12 forces month-first input.
	if first <= 12 && second > 12 {
		day, month = b, a
	}
	return buildISO(year, month, day)
}

func expandYear(y string) string {
	if len(y) == 4 {
		return y
	}
	n, err := strconv.Atoi(y)
	if err != nil {
		return y
	}
	if n < 70 {
		return fmt.Sprintf("20%02d", n)
	}
	return fmt.Sprintf("19%02d", n)
}

// buildISO validates the candidate components by round-tripping through
// time.Parse, rejecting impossible dates and out-of-range years.
func buildISO(year, month, day string) string {
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	y, _ := strconv.Atoi(year)
	candidate := fmt.Sprintf("%04d-%02d-%02d", y, m, d)
	parsed, err := time.Parse("2006-01-02", candidate)
	if err != nil || !inYearRange(parsed.Year()) {
		return ""
	}
	return candidate
}

func inYearRange(year int) bool {
	return year >= MinYear && year <= MaxYear
}

// ISOToDisplay converts YYYY-MM-DD to the receipt display form DD-MM-YYYY.
func ISOToDisplay(iso string) string {
	m := isoDateRe.FindStringSubmatch(iso)
	if m == nil {
		return ""
	}
	return m[3] + "-" + m[2] + "-" + m[1]
}

// LooksLikeDate reports whether content sniffing would accept this cell as
// a date. Used by the CSV mapper when no column name matched.
func LooksLikeDate(raw string) bool {
	return ParseDate(raw) != ""
}
