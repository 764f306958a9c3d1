package receipt

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/amoreno/finparse/internal/domain"
)

// itemPriceTolerance is the allowed rounding gap when checking
// quantity × unit_price against a line total.
var itemPriceTolerance = decimal.NewFromFloat(0.02)

// reconcileItem decides which of two trailing numeric tokens is the unit
// price and which the line total. When only one number is present it is
// the total and the unit price is synthesized by division.
func reconcileItem(desc string, qty float64, first, second *float64) domain.ReceiptItem {
	item := domain.ReceiptItem{Description: strings.TrimSpace(desc), Quantity: qty}
	q := decimal.NewFromFloat(qty)

	switch {
	case first != nil && second != nil:
		a := decimal.NewFromFloat(*first)
		b := decimal.NewFromFloat(*second)
		// qty × a ≈ b means a is the unit price; otherwise try the
		// reverse reading before falling back to (unit, total) order.
		if q.Mul(a).Sub(b).Abs().LessThanOrEqual(itemPriceTolerance) {
			item.PricePerUnit, _ = a.Float64()
			item.TotalPrice, _ = b.Float64()
		} else if q.Mul(b).Sub(a).Abs().LessThanOrEqual(itemPriceTolerance) {
			item.PricePerUnit, _ = b.Float64()
			item.TotalPrice, _ = a.Float64()
		} else {
			item.PricePerUnit, _ = a.Float64()
			item.TotalPrice, _ = b.Float64()
		}
	case first != nil:
		item.TotalPrice = *first
		if qty > 0 {
			unit := decimal.NewFromFloat(*first).Div(q).Round(2)
			item.PricePerUnit, _ = unit.Float64()
		}
	}
	return item
}
