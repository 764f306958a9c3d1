package csvparse

import (
	"regexp"
	"strings"

	"github.com/amoreno/finparse/internal/domain"
	"github.com/amoreno/finparse/internal/normalize"
)

// columnMap records which column index feeds each semantic field.
// -1 means the field has no source column.
type columnMap struct {
	date        int
	time        int
	description int
	amount      int
	balance     int
	category    int
}

// Exact candidate names tried before the regex fallback, folded form.
var (
	dateCandidates = []string{"date", "fecha", "transaction date", "fecha operacion",
		"fecha valor", "booking date", "value date"}
	timeCandidates        = []string{"time", "hora"}
	descriptionCandidates = []string{"description", "descripcion", "concepto", "memo",
		"details", "detail", "narrative"}
	amountCandidates = []string{"amount", "importe", "debit", "credit", "cargo",
		"abono", "value"}
	balanceCandidates  = []string{"balance", "saldo", "running balance"}
	categoryCandidates = []string{"category", "categoria"}
)

var (
	descriptionColRe = regexp.MustCompile(`(?i)description|desc|memo|concepto`)
	amountColRe      = regexp.MustCompile(`(?i)amount|importe|debit|credit|cargo|abono`)
	balanceColRe     = regexp.MustCompile(`(?i)balance|saldo`)
	dateColRe        = regexp.MustCompile(`(?i)date|fecha`)
)

func findByCandidates(headers []string, candidates []string) int {
	for i, h := range headers {
		k := normalize.FoldKey(h)
		for _, c := range candidates {
			if k == c {
				return i
			}
		}
	}
	return -1
}

func findByRegex(headers []string, re *regexp.Regexp, taken map[int]bool) int {
	for i, h := range headers {
		if taken[i] {
			continue
		}
		if re.MatchString(normalize.FoldKey(h)) {
			return i
		}
	}
	return -1
}

// mapColumns assigns header columns to semantic fields: fixed candidate
// names first, regex matching second, then content sniffing for the date
// column when nothing in the header names it.
func mapColumns(headers []string, dataRows [][]string) columnMap {
	m := columnMap{date: -1, time: -1, description: -1, amount: -1, balance: -1, category: -1}
	taken := map[int]bool{}

	assign := func(target *int, idx int) {
		if idx >= 0 && *target == -1 {
			*target = idx
			taken[idx] = true
		}
	}

	assign(&m.date, findByCandidates(headers, dateCandidates))
	assign(&m.time, findByCandidates(headers, timeCandidates))
	assign(&m.description, findByCandidates(headers, descriptionCandidates))
	assign(&m.amount, findByCandidates(headers, amountCandidates))
	assign(&m.balance, findByCandidates(headers, balanceCandidates))
	assign(&m.category, findByCandidates(headers, categoryCandidates))

	if m.date == -1 {
		assign(&m.date, findByRegex(headers, dateColRe, taken))
	}
	if m.description == -1 {
		assign(&m.description, findByRegex(headers, descriptionColRe, taken))
	}
	if m.amount == -1 {
		assign(&m.amount, findByRegex(headers, amountColRe, taken))
	}
	if m.balance == -1 {
		assign(&m.balance, findByRegex(headers, balanceColRe, taken))
	}

	// Content sniffing: when no header named the date column, pick the
	// column whose cells mostly look like dates.
	if m.date == -1 {
		assign(&m.date, sniffDateColumn(headers, dataRows, taken))
	}

	return m
}

func sniffDateColumn(headers []string, dataRows [][]string, taken map[int]bool) int {
	sample := len(dataRows)
	if sample > 10 {
		sample = 10
	}
	for col := range headers {
		if taken[col] {
			continue
		}
		hits, seen := 0, 0
		for i := 0; i < sample; i++ {
			if col >= len(dataRows[i]) {
				continue
			}
			cell := strings.TrimSpace(dataRows[i][col])
			if cell == "" {
				continue
			}
			seen++
			if normalize.LooksLikeDate(cell) {
				hits++
			}
		}
		if seen > 0 && hits*2 >= seen {
			return col
		}
	}
	return -1
}

func (m columnMap) mapped() bool {
	return m.date >= 0 || m.description >= 0 || m.amount >= 0 || m.balance >= 0
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// buildRow normalizes one data row into the canonical shape. Field-level
// normalization failures set the documented sentinels (empty date, zero
// amount) instead of dropping the row here; minimal-row validation decides
// later.
func buildRow(record []string, m columnMap, diag *domain.ParseDiagnostics) domain.TransactionRow {
	row := domain.TransactionRow{}

	rawDate := cell(record, m.date)
	row.Date = normalize.ParseDate(rawDate)
	if rawDate != "" && row.Date == "" {
		diag.SampleInvalidDate(rawDate)
	}

	row.Time = cell(record, m.time)
	row.Description = cell(record, m.description)
	row.Category = cell(record, m.category)

	if raw := cell(record, m.amount); raw != "" {
		if v, ok := normalize.ParseAmount(raw); ok {
			row.Amount = v
		}
	}
	if raw := cell(record, m.balance); raw != "" {
		if v, ok := normalize.ParseAmount(raw); ok {
			b := v
			row.Balance = &b
		}
	}

	if row.Description != "" {
		row.Summary = normalize.MerchantLabel(row.Description)
	}
	return row
}

// Parse converts raw CSV text into canonical rows plus diagnostics.
// Structural failure (no recognizable table) is reported through
// diagnostics with zero rows, never via an error: the caller reads
// RowsAfterFiltering == 0 as the signal to escalate.
func Parse(text string) ([]domain.TransactionRow, *domain.ParseDiagnostics) {
	diag := &domain.ParseDiagnostics{HeaderRowIndex: -1, Mode: domain.ParseModeAuto, Tier: "csv"}

	delim := GuessDelimiter(text)
	if delim == '\t' {
		diag.Delimiter = "tab"
	} else {
		diag.Delimiter = "comma"
	}

	records := splitRecords(text, delim)
	diag.RowsTotal = len(records)
	if len(records) == 0 {
		diag.AddWarning("no parseable lines in input")
		return []domain.TransactionRow{}, diag
	}

	records = stripLeadingColumns(records)

	headerIdx := findHeaderRow(records)
	if headerIdx == -1 {
		diag.AddWarning("no header row detected in first 20 rows; assuming first row")
		headerIdx = 0
	}
	diag.HeaderRowIndex = headerIdx

	// Re-serialize the cleaned table and re-read it header-aware, so
	// ragged pre-header rows cannot skew field alignment.
	cleaned := splitRecords(reserializeFrom(records[headerIdx:], delim), delim)
	if len(cleaned) == 0 {
		diag.AddWarning("table empty after preprocessing")
		return []domain.TransactionRow{}, diag
	}
	headers := cleaned[0]
	dataRows := cleaned[1:]
	diag.ColumnNames = headers
	diag.RowsAfterPreproc = len(dataRows)

	m := mapColumns(headers, dataRows)
	if !m.mapped() {
		diag.AddWarning("no recognizable columns found")
		diag.RowsAfterFiltering = 0
		return []domain.TransactionRow{}, diag
	}

	rows := make([]domain.TransactionRow, 0, len(dataRows))
	for _, record := range dataRows {
		row := buildRow(record, m, diag)
		switch {
		case row.Date != "" && row.HasCoreField():
			rows = append(rows, row)
		case row.HasCoreField():
			// Soft-valid: kept, but counted so quality scoring can see it.
			diag.SoftValidRows++
			rows = append(rows, row)
		default:
			diag.SampleFilteredOut(strings.Join(record, "|"))
		}
	}
	diag.RowsAfterFiltering = len(rows)

	return rows, diag
}
