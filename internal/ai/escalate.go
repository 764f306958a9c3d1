package ai

import (
	"github.com/amoreno/finparse/internal/domain"
)

// ShouldEscalateCSV decides whether deterministic CSV output is bad
// enough to re-parse the file with the model. lineCount is the number of
// non-empty lines in the original file. The returned reason feeds the
// diagnostics warning list.
func ShouldEscalateCSV(rows []domain.TransactionRow, lineCount int, nonEmptyInput bool) (bool, string) {
	if len(rows) == 0 {
		if nonEmptyInput {
			return true, "no rows extracted from non-empty file"
		}
		return false, ""
	}

	invalidDates := 0
	zeroAmounts := 0
	shortDescriptions := 0
	for _, r := range rows {
		if r.Date == "" {
			invalidDates++
		}
		if r.Amount == 0 {
			zeroAmounts++
		}
		if len(r.Description) <= 3 {
			shortDescriptions++
		}
	}
	n := len(rows)

	if invalidDates*2 > n {
		return true, "over half of extracted rows have invalid dates"
	}
	if n > 3 && zeroAmounts == n {
		return true, "all extracted amounts are zero or invalid"
	}
	if n > 3 && (n-shortDescriptions)*10 < n*3 {
		return true, "most extracted rows lack a usable description"
	}
	if lineCount > 10 && n*5 < lineCount {
		return true, "extracted far fewer rows than the file has lines"
	}
	return false, ""
}
