package receipt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/amoreno/finparse/internal/domain"
	"github.com/amoreno/finparse/internal/normalize"
)

// MercadonaParser reads Mercadona "factura simplificada" tickets: a
// quantity-first item block between the column header and the TOTAL (€)
// line, with a VAT breakdown table at the bottom.
type MercadonaParser struct{}

// NewMercadonaParser returns the Mercadona ticket parser.
func NewMercadonaParser() *MercadonaParser { return &MercadonaParser{} }

func (p *MercadonaParser) Name() string { return "mercadona" }

var (
	mercadonaNameRe  = regexp.MustCompile(`(?i)\bMERCADONA\b`)
	mercadonaDocRe   = regexp.MustCompile(`(?i)FACTURA\s+SIMPLIFICADA`)
	mercadonaLegalRe = regexp.MustCompile(`\bS\.A\.(?:\s|$|,)`)

	mercadonaDateTimeRe = regexp.MustCompile(`(\d{2}[./]\d{2}[./]\d{4})\s+(\d{2}:\d{2})`)
	mercadonaTotalRe    = regexp.MustCompile(`(?m)^TOTAL\s*\(€\)\s+([0-9.,]+)\s*$`)
	mercadonaTotalAltRe = regexp.MustCompile(`(?m)^IMPORTE:?\s+([0-9.,]+)\s*$`)

	mercadonaItemsStartRe = regexp.MustCompile(`(?i)descripci[oó]n.*p\.?\s*unit.*import`)
	mercadonaItemsEndRe   = regexp.MustCompile(`(?i)^TOTAL\s*\(`)
	mercadonaItemRe       = regexp.MustCompile(`^(\d+)\s+(.+?)\s+(\d+,\d{2})(?:\s+(\d+,\d{2}))?$`)
	mercadonaWeightRe     = regexp.MustCompile(`^(\d+[,.]\d{1,3})\s*kg\s*$`)
	mercadonaWeightItemRe = regexp.MustCompile(`^(.+?)\s+(\d+,\d{2})\s*€/kg\s+(\d+,\d{2})$`)

	mercadonaVATStartRe = regexp.MustCompile(`(?i)^IVA\b`)
	mercadonaVATRowRe   = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)%\s+([\d.,]+)\s+([\d.,]+)\s*$`)
	mercadonaVATEndRe   = regexp.MustCompile(`(?i)^TOTAL\b`)
)

func (p *MercadonaParser) CanParse(text string) bool {
	return twoOfThree(
		mercadonaNameRe.MatchString(text),
		mercadonaDocRe.MatchString(text),
		mercadonaLegalRe.MatchString(text),
	)
}

func twoOfThree(a, b, c bool) bool {
	n := 0
	for _, v := range []bool{a, b, c} {
		if v {
			n++
		}
	}
	return n >= 2
}

func (p *MercadonaParser) Parse(text string) (*domain.ExtractedReceipt, error) {
	lines := strings.Split(text, "\n")
	r := &domain.ExtractedReceipt{StoreName: "Mercadona", Currency: "EUR"}

	if m := mercadonaDateTimeRe.FindStringSubmatch(text); m != nil {
		raw := strings.ReplaceAll(m[1], ".", "/")
		r.ReceiptDateISO = normalize.ParseDate(raw)
		r.ReceiptDate = normalize.ISOToDisplay(r.ReceiptDateISO)
		r.ReceiptTime = m[2]
	}

	if m := mercadonaTotalRe.FindStringSubmatch(text); m != nil {
		r.TotalAmount, _ = normalize.ParseAmount(m[1])
	} else if m := mercadonaTotalAltRe.FindStringSubmatch(text); m != nil {
		r.TotalAmount, _ = normalize.ParseAmount(m[1])
	}

	r.Items = p.parseItems(lines)
	r.TaxesTotalCuota = sumVATColumn(lines, mercadonaVATStartRe, mercadonaVATRowRe, mercadonaVATEndRe)

	if r.ReceiptDateISO == "" && r.TotalAmount == 0 {
		return nil, fmt.Errorf("mercadona: no recognizable fields in text")
	}
	return r, nil
}

func (p *MercadonaParser) parseItems(lines []string) []domain.ReceiptItem {
	var items []domain.ReceiptItem
	inBlock := false
	var pendingWeight float64

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if !inBlock {
			if mercadonaItemsStartRe.MatchString(line) {
				inBlock = true
			}
			continue
		}
		if mercadonaItemsEndRe.MatchString(line) {
			break
		}
		if line == "" {
			continue
		}

		// Weighed produce spans two lines: "0,446 kg" then
		// "PLATANO 2,29 €/kg 1,02".
		if m := mercadonaWeightRe.FindStringSubmatch(line); m != nil {
			pendingWeight, _ = parseWeight(m[1])
			continue
		}
		if m := mercadonaWeightItemRe.FindStringSubmatch(line); m != nil && pendingWeight > 0 {
			unit, _ := normalize.ParseAmount(m[2])
			total, _ := normalize.ParseAmount(m[3])
			items = append(items, domain.ReceiptItem{
				Description:  strings.TrimSpace(m[1]),
				Quantity:     pendingWeight,
				PricePerUnit: unit,
				TotalPrice:   total,
			})
			pendingWeight = 0
			continue
		}

		if m := mercadonaItemRe.FindStringSubmatch(line); m != nil {
			qty, err := strconv.ParseFloat(m[1], 64)
			if err != nil || qty <= 0 {
				continue
			}
			first, _ := normalize.ParseAmount(m[3])
			if m[4] != "" {
				second, _ := normalize.ParseAmount(m[4])
				items = append(items, reconcileItem(m[2], qty, &first, &second))
			} else {
				items = append(items, reconcileItem(m[2], qty, &first, nil))
			}
		}
	}
	return items
}

// parseWeight reads a kg quantity. The separator here is always a
// decimal point, even with three decimals like "0,446": amount-style
// thousands disambiguation would read that as 446.
func parseWeight(token string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(token, ",", "."), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// sumVATColumn adds up the cuota column of a VAT breakdown table found
// between a header and footer marker. Returns nil when no table exists.
func sumVATColumn(lines []string, start, row, end *regexp.Regexp) *float64 {
	inTable := false
	var sum float64
	found := false

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if !inTable {
			if start.MatchString(line) {
				inTable = true
			}
			continue
		}
		if m := row.FindStringSubmatch(line); m != nil {
			if v, ok := normalize.ParseAmount(m[3]); ok {
				sum += v
				found = true
			}
			continue
		}
		if end.MatchString(line) {
			break
		}
	}
	if !found {
		return nil
	}
	return &sum
}
