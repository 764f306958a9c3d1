package receipt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/amoreno/finparse/internal/domain"
	"github.com/amoreno/finparse/internal/normalize"
)

// DiaParser reads Dia tickets: the item block sits between dashed or
// starred rules, quantities are written "Nx", and the total is labelled
// TOTAL A PAGAR. The VAT table uses a CUOTA column.
type DiaParser struct{}

// NewDiaParser returns the Dia ticket parser.
func NewDiaParser() *DiaParser { return &DiaParser{} }

func (p *DiaParser) Name() string { return "dia" }

var (
	diaNameRe  = regexp.MustCompile(`\bDIA\b`)
	diaDocRe   = regexp.MustCompile(`(?i)FACTURA\s+SIMPLIFICADA`)
	diaLegalRe = regexp.MustCompile(`(?i)S\.A\.U\.?`)

	diaDateRe = regexp.MustCompile(`(\d{2}[-./]\d{2}[-./]\d{4})(?:\s+(\d{2}:\d{2}))?`)

	diaTotalRe    = regexp.MustCompile(`(?im)^TOTAL\s+A\s+PAGAR\s+([0-9.,]+)\s*$`)
	diaTotalAltRe = regexp.MustCompile(`(?im)^TOTAL\s+([0-9.,]+)\s*$`)

	diaRuleRe      = regexp.MustCompile(`^[-*]{4,}\s*$`)
	diaQtyItemRe   = regexp.MustCompile(`^(\d+)x\s+(.+?)\s+(\d+,\d{2})(?:\s+(\d+,\d{2}))?\s*$`)
	diaPlainItemRe = regexp.MustCompile(`^(.+?)\s+(\d+,\d{2})\s*$`)

	diaVATStartRe = regexp.MustCompile(`(?i)^TIPO\b.*CUOTA`)
	diaVATRowRe   = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)%\s+([\d.,]+)\s+([\d.,]+)\s*$`)
	diaVATEndRe   = regexp.MustCompile(`(?i)^(TOTAL|GRACIAS)\b`)
)

func (p *DiaParser) CanParse(text string) bool {
	return twoOfThree(
		diaNameRe.MatchString(text),
		diaDocRe.MatchString(text),
		diaLegalRe.MatchString(text),
	)
}

func (p *DiaParser) Parse(text string) (*domain.ExtractedReceipt, error) {
	lines := strings.Split(text, "\n")
	r := &domain.ExtractedReceipt{StoreName: "Dia", Currency: "EUR"}

	if m := diaDateRe.FindStringSubmatch(text); m != nil {
		raw := strings.NewReplacer(".", "/", "-", "/").Replace(m[1])
		r.ReceiptDateISO = normalize.ParseDate(raw)
		r.ReceiptDate = normalize.ISOToDisplay(r.ReceiptDateISO)
		r.ReceiptTime = m[2]
	}

	if m := diaTotalRe.FindStringSubmatch(text); m != nil {
		r.TotalAmount, _ = normalize.ParseAmount(m[1])
	} else if m := diaTotalAltRe.FindStringSubmatch(text); m != nil {
		r.TotalAmount, _ = normalize.ParseAmount(m[1])
	}

	r.Items = p.parseItems(lines)
	r.TaxesTotalCuota = sumVATColumn(lines, diaVATStartRe, diaVATRowRe, diaVATEndRe)

	if r.ReceiptDateISO == "" && r.TotalAmount == 0 {
		return nil, fmt.Errorf("dia: no recognizable fields in text")
	}
	return r, nil
}

// parseItems takes the lines between the first and second horizontal
// rule. Tickets without rules fall back to scanning everything before the
// total line.
func (p *DiaParser) parseItems(lines []string) []domain.ReceiptItem {
	start, end := -1, len(lines)
	for i, raw := range lines {
		if diaRuleRe.MatchString(strings.TrimSpace(raw)) {
			if start == -1 {
				start = i + 1
			} else {
				end = i
				break
			}
		}
	}
	if start == -1 {
		start = 0
	}

	var items []domain.ReceiptItem
	for _, raw := range lines[start:end] {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if diaTotalRe.MatchString(line) || diaTotalAltRe.MatchString(line) {
			break
		}

		if m := diaQtyItemRe.FindStringSubmatch(line); m != nil {
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
			continue
		}
		if m := diaPlainItemRe.FindStringSubmatch(line); m != nil {
			total, _ := normalize.ParseAmount(m[2])
			items = append(items, reconcileItem(m[1], 1, &total, nil))
		}
	}
	return items
}
