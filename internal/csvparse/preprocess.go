// Package csvparse turns raw CSV exports into canonical transaction rows.
// Bank exports rarely arrive clean: delimiters vary, decorative columns
// and report headers precede the data, and column names are bank-specific.
// The preprocessor locates the real table, the mapper assigns semantic
// fields, and validation keeps diagnostics for everything it drops.
package csvparse

import (
	"encoding/csv"
	"strings"

	"github.com/amoreno/finparse/internal/normalize"
)

const (
	// headerScanRows is how deep we look for the header row.
	headerScanRows = 20
	// leadColScanRows is how many rows vote on the first data column.
	leadColScanRows = 10
)

// GuessDelimiter picks tab or comma from raw content by frequency.
func GuessDelimiter(text string) rune {
	tabs := strings.Count(text, "\t")
	commas := strings.Count(text, ",")
	if tabs > 0 && tabs >= commas {
		return '\t'
	}
	return ','
}

// splitRecords parses every non-blank line into a cell slice using the
// given delimiter. Quoting errors are tolerated; exports from spreadsheet
// tools frequently contain stray quotes in free-text cells.
func splitRecords(text string, delim rune) [][]string {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := r.Read()
		if err != nil {
			break
		}
		blank := true
		for _, c := range record {
			if strings.TrimSpace(c) != "" {
				blank = false
				break
			}
		}
		if !blank {
			rows = append(rows, record)
		}
	}
	return rows
}

// stripLeadingColumns finds the first column index with data in any of the
// first leadColScanRows rows and drops every column before it. Spreadsheet
// exports often carry empty decorative columns on the left.
func stripLeadingColumns(rows [][]string) [][]string {
	if len(rows) == 0 {
		return rows
	}
	limit := len(rows)
	if limit > leadColScanRows {
		limit = leadColScanRows
	}

	first := -1
	maxCols := 0
	for _, row := range rows {
		if len(row) > maxCols {
			maxCols = len(row)
		}
	}
	for col := 0; col < maxCols && first == -1; col++ {
		for i := 0; i < limit; i++ {
			if col < len(rows[i]) && strings.TrimSpace(rows[i][col]) != "" {
				first = col
				break
			}
		}
	}
	if first <= 0 {
		return rows
	}

	out := make([][]string, len(rows))
	for i, row := range rows {
		if first < len(row) {
			out[i] = row[first:]
		} else {
			out[i] = nil
		}
	}
	return out
}

// headerKeywords are column names that identify a header row, folded form.
var headerKeywords = map[string]bool{
	"date": true, "fecha": true, "fecha operacion": true, "fecha valor": true,
	"description": true, "descripcion": true, "concepto": true, "memo": true,
	"amount": true, "importe": true, "debit": true, "credit": true,
	"cargo": true, "abono": true,
	"balance": true, "saldo": true,
	"category": true, "categoria": true,
	"time": true, "hora": true,
}

func isDateHeader(cell string) bool {
	k := normalize.FoldKey(cell)
	return strings.Contains(k, "date") || strings.Contains(k, "fecha")
}

func isAmountHeader(cell string) bool {
	k := normalize.FoldKey(cell)
	for _, w := range []string{"amount", "importe", "debit", "credit", "cargo", "abono"} {
		if strings.Contains(k, w) {
			return true
		}
	}
	return false
}

func isDescriptionHeader(cell string) bool {
	k := normalize.FoldKey(cell)
	for _, w := range []string{"description", "desc", "memo", "concepto", "detail", "narrative"} {
		if strings.Contains(k, w) {
			return true
		}
	}
	return false
}

// findHeaderRow scans up to headerScanRows rows for the row most likely to
// be the column header: either two keyword matches, or a date header
// co-occurring with an amount or description header. Returns -1 when no
// header is recognizable.
func findHeaderRow(rows [][]string) int {
	limit := len(rows)
	if limit > headerScanRows {
		limit = headerScanRows
	}

	for i := 0; i < limit; i++ {
		hits := 0
		hasDate, hasAmount, hasDesc := false, false, false
		for _, cell := range rows[i] {
			k := normalize.FoldKey(cell)
			if headerKeywords[k] {
				hits++
			}
			if isDateHeader(cell) {
				hasDate = true
			}
			if isAmountHeader(cell) {
				hasAmount = true
			}
			if isDescriptionHeader(cell) {
				hasDesc = true
			}
		}
		if hits >= 2 || (hasDate && (hasAmount || hasDesc)) {
			return i
		}
	}
	return -1
}

// reserializeFrom writes rows back to CSV text with the given delimiter so
// the cleaned table can be re-read with header-aware parsing.
func reserializeFrom(rows [][]string, delim rune) string {
	var b strings.Builder
	w := csv.NewWriter(&b)
	w.Comma = delim
	for _, row := range rows {
		_ = w.Write(row)
	}
	w.Flush()
	return b.String()
}
