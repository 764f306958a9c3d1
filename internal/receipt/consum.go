package receipt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/amoreno/finparse/internal/domain"
	"github.com/amoreno/finparse/internal/normalize"
)

// ConsumParser reads Consum cooperative tickets: description-first item
// lines with an optional "N x unit" quantity clause, totals labelled
// TOTAL COMPRA.
type ConsumParser struct{}

// NewConsumParser returns the Consum ticket parser.
func NewConsumParser() *ConsumParser { return &ConsumParser{} }

func (p *ConsumParser) Name() string { return "consum" }

var (
	consumNameRe  = regexp.MustCompile(`(?i)\bCONSUM\b`)
	consumDocRe   = regexp.MustCompile(`(?i)FACTURA\s+SIMPLIFICADA`)
	consumLegalRe = regexp.MustCompile(`(?i)S\.\s*COOP\b`)

	consumDateRe = regexp.MustCompile(`(?i)Fecha:?\s*(\d{2}[./]\d{2}[./]\d{4})`)
	consumTimeRe = regexp.MustCompile(`(?i)Hora:?\s*(\d{2}:\d{2})`)

	consumTotalRe    = regexp.MustCompile(`(?im)^TOTAL\s+COMPRA\s+([0-9.,]+)\s*$`)
	consumTotalAltRe = regexp.MustCompile(`(?im)^TOTAL\s+([0-9.,]+)\s*$`)

	consumItemsStartRe = regexp.MustCompile(`(?i)^DESCRIPCI[OÓ]N\b`)
	consumItemsEndRe   = regexp.MustCompile(`(?i)^TOTAL\s+COMPRA\b`)
	consumQtyItemRe    = regexp.MustCompile(`^(.+?)\s+(\d+)\s*[xX]\s*(\d+,\d{2})\s+(\d+,\d{2})\s*$`)
	consumPlainItemRe  = regexp.MustCompile(`^(.+?)\s+(\d+,\d{2})\s*$`)

	consumVATStartRe = regexp.MustCompile(`(?i)^IVA\b.*CUOTA`)
	consumVATRowRe   = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)%\s+([\d.,]+)\s+([\d.,]+)\s*$`)
	consumVATEndRe   = regexp.MustCompile(`(?i)^(TOTAL|ENTREGADO|CAMBIO)\b`)
)

func (p *ConsumParser) CanParse(text string) bool {
	return twoOfThree(
		consumNameRe.MatchString(text),
		consumDocRe.MatchString(text),
		consumLegalRe.MatchString(text),
	)
}

func (p *ConsumParser) Parse(text string) (*domain.ExtractedReceipt, error) {
	lines := strings.Split(text, "\n")
	r := &domain.ExtractedReceipt{StoreName: "Consum", Currency: "EUR"}

	if m := consumDateRe.FindStringSubmatch(text); m != nil {
		raw := strings.ReplaceAll(m[1], ".", "/")
		r.ReceiptDateISO = normalize.ParseDate(raw)
		r.ReceiptDate = normalize.ISOToDisplay(r.ReceiptDateISO)
	}
	if m := consumTimeRe.FindStringSubmatch(text); m != nil {
		r.ReceiptTime = m[1]
	}

	if m := consumTotalRe.FindStringSubmatch(text); m != nil {
		r.TotalAmount, _ = normalize.ParseAmount(m[1])
	} else if m := consumTotalAltRe.FindStringSubmatch(text); m != nil {
		r.TotalAmount, _ = normalize.ParseAmount(m[1])
	}

	r.Items = p.parseItems(lines)
	r.TaxesTotalCuota = sumVATColumn(lines, consumVATStartRe, consumVATRowRe, consumVATEndRe)

	if r.ReceiptDateISO == "" && r.TotalAmount == 0 {
		return nil, fmt.Errorf("consum: no recognizable fields in text")
	}
	return r, nil
}

func (p *ConsumParser) parseItems(lines []string) []domain.ReceiptItem {
	var items []domain.ReceiptItem
	inBlock := false

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if !inBlock {
			if consumItemsStartRe.MatchString(line) {
				inBlock = true
			}
			continue
		}
		if consumItemsEndRe.MatchString(line) {
			break
		}
		if line == "" {
			continue
		}

		if m := consumQtyItemRe.FindStringSubmatch(line); m != nil {
			qty, err := strconv.ParseFloat(m[2], 64)
			if err != nil || qty <= 0 {
				continue
			}
			unit, _ := normalize.ParseAmount(m[3])
			total, _ := normalize.ParseAmount(m[4])
			items = append(items, reconcileItem(m[1], qty, &unit, &total))
			continue
		}
		if m := consumPlainItemRe.FindStringSubmatch(line); m != nil {
			total, _ := normalize.ParseAmount(m[2])
			items = append(items, reconcileItem(m[1], 1, &total, nil))
		}
	}
	return items
}
