// Package statement extracts transactions from text already lifted out of
// a PDF bank statement. Extraction cascades through three tiers, each
// attempted only when the previous produced zero rows: a header-anchored
// table/line strategy, a structure-free pattern scan, and an aggressive
// last-resort scan. The tier that produced the rows is reported in the
// diagnostics so downstream quality scoring can tell them apart.
package statement

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/amoreno/finparse/internal/domain"
)

// Errors surfaced when every tier comes up empty. Each one carries
// actionable guidance because at this point there is no further fallback
// besides asking the user for a different export.
var (
	ErrNoDatePatterns = errors.New(
		"no date patterns found in document text; the file is likely image-based and needs OCR, or try re-exporting as CSV")
	ErrNoAmounts = errors.New(
		"dates were found but no transaction amounts; try re-exporting the statement as CSV or Excel")
	ErrNotCorrelated = errors.New(
		"dates and amounts were found but could not be correlated into transactions; try re-exporting as CSV")
)

// lookaheadWindow is how many lines past a date line the windowed scan
// searches for an amount before giving up on that date.
const lookaheadWindow = 15

// Parse runs the tier cascade over statement text.
func Parse(text string) ([]domain.TransactionRow, *domain.ParseDiagnostics, error) {
	diag := &domain.ParseDiagnostics{HeaderRowIndex: -1, Mode: domain.ParseModeAuto}

	lines := splitLines(text)
	diag.RowsTotal = len(lines)
	candidates := countDateLines(lines)

	type tier struct {
		name string
		run  func([]string, *domain.ParseDiagnostics) []domain.TransactionRow
	}
	tiers := []tier{
		{"statement_tier1", parseHeaderAnchored},
		{"statement_tier2", parsePatternScan},
		{"statement_tier3", parseAggressive},
	}

	for _, tr := range tiers {
		rows := tr.run(lines, diag)
		if len(rows) > 0 {
			diag.Tier = tr.name
			// Date lines approximate the candidate-transaction count; a
			// multi-line transaction still has exactly one date line.
			diag.RowsAfterPreproc = candidates
			if diag.RowsAfterPreproc < len(rows) {
				diag.RowsAfterPreproc = len(rows)
			}
			diag.RowsAfterFiltering = len(rows)
			if tr.name == "statement_tier3" {
				diag.AddWarning("aggressive extraction used; amounts may be unreliable")
			}
			return rows, diag, nil
		}
	}

	return nil, diag, classifyEmptyResult(lines)
}

// classifyEmptyResult distinguishes why nothing was extracted, so the
// caller can give the user useful direction.
func classifyEmptyResult(lines []string) error {
	datesSeen, amountsSeen := false, false
	for _, line := range lines {
		if !datesSeen {
			if iso, _, _ := findDate(line); iso != "" {
				datesSeen = true
			}
		}
		if !amountsSeen {
			for _, re := range amountFamilies[:len(amountFamilies)-1] {
				if re.MatchString(line) {
					amountsSeen = true
					break
				}
			}
		}
		if datesSeen && amountsSeen {
			break
		}
	}
	switch {
	case !datesSeen:
		return fmt.Errorf("statement.Parse: %w", ErrNoDatePatterns)
	case !amountsSeen:
		return fmt.Errorf("statement.Parse: %w", ErrNoAmounts)
	default:
		return fmt.Errorf("statement.Parse: %w", ErrNotCorrelated)
	}
}

func countDateLines(lines []string) int {
	n := 0
	for _, line := range lines {
		if iso, _, _ := findDate(line); iso != "" {
			n++
		}
	}
	return n
}

func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// ── Tier 1: header-anchored table/line strategy ────────────────────────

func parseHeaderAnchored(lines []string, diag *domain.ParseDiagnostics) []domain.TransactionRow {
	headerIdx := -1
	for i, line := range lines {
		for _, re := range headerLineRes {
			if re.MatchString(line) {
				headerIdx = i
				break
			}
		}
		if headerIdx >= 0 {
			break
		}
	}
	if headerIdx == -1 {
		return nil
	}
	diag.HeaderRowIndex = headerIdx

	body := lines[headerIdx+1:]
	if looksTabular(body) {
		if rows := parseTableRows(body); len(rows) > 0 {
			return rows
		}
	}
	return windowedScan(body)
}

// looksTabular samples lines after the header for pipe separation or
// multi-space column gaps with a leading date.
func looksTabular(lines []string) bool {
	sample := len(lines)
	if sample > 8 {
		sample = 8
	}
	tabular := 0
	for i := 0; i < sample; i++ {
		line := lines[i]
		fields := splitColumns(line)
		if len(fields) < 3 {
			continue
		}
		if iso, start, _ := findDate(fields[0]); iso != "" && start == 0 {
			tabular++
		}
	}
	return tabular >= 2
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

func splitColumns(line string) []string {
	var parts []string
	if strings.Contains(line, "|") {
		parts = strings.Split(line, "|")
	} else {
		parts = multiSpaceRe.Split(line, -1)
	}
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseTableRows treats each line as one transaction: a date somewhere in
// the row, then the trailing tokens scanned right to left for a
// currency-shaped amount and, when two are present, a balance.
func parseTableRows(lines []string) []domain.TransactionRow {
	var rows []domain.TransactionRow
	for _, line := range lines {
		fields := splitColumns(line)
		if len(fields) < 2 {
			continue
		}

		iso := ""
		dateField := -1
		for i, f := range fields {
			if d, _, _ := findDate(f); d != "" {
				iso = d
				dateField = i
				break
			}
		}
		if iso == "" {
			continue
		}

		// Trailing monetary tokens: the rightmost is the balance when two
		// or more are present, otherwise it is the amount.
		var monetary []float64
		var monetaryIdx []int
		for i := len(fields) - 1; i > dateField && len(monetary) < 2; i-- {
			if monetaryTokenRe.MatchString(fields[i]) {
				if v, ok := parseMonetary(fields[i]); ok {
					monetary = append(monetary, v)
					monetaryIdx = append(monetaryIdx, i)
				}
			} else if len(monetary) > 0 {
				break
			}
		}
		if len(monetary) == 0 {
			continue
		}

		row := domain.TransactionRow{Date: iso}
		if len(monetary) == 2 {
			balance := monetary[0]
			row.Amount = monetary[1]
			row.Balance = &balance
		} else {
			row.Amount = monetary[0]
		}

		var descParts []string
		for i, f := range fields {
			if i == dateField || containsIdx(monetaryIdx, i) {
				continue
			}
			descParts = append(descParts, f)
		}
		row.Description = strings.TrimSpace(strings.Join(descParts, " "))
		rows = append(rows, row)
	}
	return rows
}

func containsIdx(idxs []int, i int) bool {
	for _, v := range idxs {
		if v == i {
			return true
		}
	}
	return false
}

// windowedScan handles statements where a transaction spans several lines:
// each date line opens a window of up to lookaheadWindow lines searched
// for an amount (and optionally a balance), closing early when the next
// date line starts a new transaction.
func windowedScan(lines []string) []domain.TransactionRow {
	var rows []domain.TransactionRow

	for i := 0; i < len(lines); i++ {
		iso, start, end := findDate(lines[i])
		if iso == "" {
			continue
		}

		desc := strings.TrimSpace(lines[i][:start] + " " + lines[i][end:])
		var amount *float64
		var balance *float64

		// The date line itself may carry the numbers.
		amount, balance, desc = takeAmounts(desc, amount, balance)

		for j := i + 1; j < len(lines) && j <= i+lookaheadWindow && amount == nil; j++ {
			if d, _, _ := findDate(lines[j]); d != "" {
				break // next transaction
			}
			var lineRest string
			amount, balance, lineRest = takeAmounts(lines[j], amount, balance)
			if amount == nil && strings.TrimSpace(lineRest) != "" {
				desc = strings.TrimSpace(desc + " " + strings.TrimSpace(lineRest))
			}
		}

		if amount == nil {
			continue
		}
		row := domain.TransactionRow{Date: iso, Amount: *amount, Balance: balance,
			Description: desc}
		rows = append(rows, row)
	}
	return rows
}

// takeAmounts pulls up to two monetary tokens off a line; the first is the
// amount and the second, when present, the balance. The stripped remainder
// is returned for description building.
func takeAmounts(line string, amount, balance *float64) (*float64, *float64, string) {
	rest := line
	for _, re := range amountFamilies[:len(amountFamilies)-1] {
		for amount == nil || balance == nil {
			loc := re.FindStringIndex(rest)
			if loc == nil {
				break
			}
			token := rest[loc[0]:loc[1]]
			rest = rest[:loc[0]] + " " + rest[loc[1]:]
			v, ok := parseMonetary(token)
			if !ok {
				continue
			}
			if amount == nil {
				a := v
				amount = &a
			} else {
				b := v
				balance = &b
			}
		}
		if amount != nil && balance != nil {
			break
		}
	}
	return amount, balance, rest
}

// ── Tier 2: pattern-based extraction without header anchoring ──────────

func parsePatternScan(lines []string, _ *domain.ParseDiagnostics) []domain.TransactionRow {
	return windowedScan(lines)
}

// ── Tier 3: aggressive scan ────────────────────────────────────────────

// parseAggressive tries every date family against every line and every
// amount family against the line's remainder, accepting the first
// plausible monetary magnitude. This is the strategy of last resort and
// its output is flagged in diagnostics.
func parseAggressive(lines []string, _ *domain.ParseDiagnostics) []domain.TransactionRow {
	var rows []domain.TransactionRow

	for _, line := range lines {
		var iso string
		var span []int
		for _, re := range dateFamilies {
			if loc := re.FindStringIndex(line); loc != nil {
				if d, s, e := findDate(line[loc[0]:loc[1]]); d != "" {
					iso = d
					span = []int{loc[0] + s, loc[0] + e}
					break
				}
			}
		}
		if iso == "" {
			continue
		}

		rest := line[:span[0]] + " " + line[span[1]:]
		var amount *float64
		var matched string
		for _, re := range amountFamilies {
			for _, token := range re.FindAllString(rest, -1) {
				if v, ok := parseMonetary(token); ok && plausibleAmount(v) {
					a := v
					amount = &a
					matched = token
					break
				}
			}
			if amount != nil {
				break
			}
		}
		if amount == nil {
			continue
		}

		desc := strings.TrimSpace(strings.Replace(rest, matched, " ", 1))
		desc = multiSpaceRe.ReplaceAllString(desc, " ")
		rows = append(rows, domain.TransactionRow{Date: iso, Amount: *amount, Description: desc})
	}
	return rows
}
