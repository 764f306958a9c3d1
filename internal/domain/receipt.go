package domain

import "math"

// ExtractedReceipt is the structured result of a merchant receipt parse,
// deterministic or AI-assisted.
type ExtractedReceipt struct {
	StoreName string `json:"store_name"`
	// ReceiptDate is the display form DD-MM-YYYY; ReceiptDateISO the
	// YYYY-MM-DD equivalent.
	ReceiptDate     string        `json:"receipt_date"`
	ReceiptDateISO  string        `json:"receipt_date_iso"`
	ReceiptTime     string        `json:"receipt_time,omitempty"`
	Currency        string        `json:"currency"`
	TotalAmount     float64       `json:"total_amount"`
	TaxesTotalCuota *float64      `json:"taxes_total_cuota"`
	Items           []ReceiptItem `json:"items"`
}

// ReceiptItem is one line item. Category is always empty at extraction
// time; categorization is a downstream concern.
type ReceiptItem struct {
	Description  string  `json:"description"`
	Quantity     float64 `json:"quantity"`
	PricePerUnit float64 `json:"price_per_unit"`
	TotalPrice   float64 `json:"total_price"`
	Category     *string `json:"category"`
}

// ItemsTotal sums the line-item totals.
func (r ExtractedReceipt) ItemsTotal() float64 {
	var sum float64
	for _, it := range r.Items {
		sum += it.TotalPrice
	}
	return sum
}

// TotalTolerance is the allowed divergence between the summed line items
// and the declared total: 5% of the total or 0.50 currency units,
// whichever is larger.
func TotalTolerance(total float64) float64 {
	return math.Max(0.05*math.Abs(total), 0.50)
}

// ItemsMatchTotal reports whether the line-item sum agrees with the
// declared total within TotalTolerance.
func (r ExtractedReceipt) ItemsMatchTotal() bool {
	return math.Abs(r.ItemsTotal()-r.TotalAmount) <= TotalTolerance(r.TotalAmount)
}
