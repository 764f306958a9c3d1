// Package domain holds the canonical records every ingestion format
// converges to, plus the diagnostic side-channel types returned alongside
// them. Nothing in this package touches I/O.
package domain

// CanonicalColumns is the fixed column order used whenever rows are
// re-serialized to CSV. Category is always emitted (empty string when
// unset) so the header stays stable across round-trips.
var CanonicalColumns = []string{"date", "description", "amount", "balance", "category"}

// TransactionRow is the canonical 5-field transaction record.
// Date is either empty or an ISO YYYY-MM-DD string. Amount is a finite
// signed number (negative = expense); it defaults to 0 when a value could
// not be normalized, never NaN.
type TransactionRow struct {
	Date        string   `json:"date"`
	Time        string   `json:"time,omitempty"`
	Description string   `json:"description"`
	Amount      float64  `json:"amount"`
	Balance     *float64 `json:"balance"`
	Category    string   `json:"category,omitempty"`
	Summary     string   `json:"summary,omitempty"`
}

// HasCoreField reports whether the row carries at least one of description,
// amount or balance. Rows with none of the three are dropped during
// validation.
func (r TransactionRow) HasCoreField() bool {
	return r.Description != "" || r.Amount != 0 || r.Balance != nil
}
