package csvparse

import (
	"encoding/csv"
	"strconv"
	"strings"

	"github.com/amoreno/finparse/internal/domain"
)

// ToCanonicalCSV serializes rows in the fixed 5-column order
// date,description,amount,balance,category. Category is emitted as an
// empty string rather than omitted so the header is stable and the output
// round-trips through Parse.
func ToCanonicalCSV(rows []domain.TransactionRow) string {
	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write(domain.CanonicalColumns)

	for _, r := range rows {
		balance := ""
		if r.Balance != nil {
			balance = strconv.FormatFloat(*r.Balance, 'f', 2, 64)
		}
		_ = w.Write([]string{
			r.Date,
			r.Description,
			strconv.FormatFloat(r.Amount, 'f', 2, 64),
			balance,
			r.Category,
		})
	}
	w.Flush()
	return b.String()
}
