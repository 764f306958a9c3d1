// Package receipt holds the deterministic merchant-specific receipt
// parsers and the registry that dispatches between them. Each parser is
// intentionally self-contained and signature-driven: it recognizes one
// merchant's ticket layout and nothing else. Text that no parser claims,
// or that fails the minimal-fields gate, escalates to the AI fallback.
package receipt

import (
	"errors"

	"github.com/amoreno/finparse/internal/domain"
	"github.com/amoreno/finparse/internal/normalize"
)

// Parser is one deterministic merchant extractor.
type Parser interface {
	// Name identifies the merchant, e.g. "mercadona".
	Name() string
	// CanParse reports whether the text carries this merchant's
	// fingerprints. Detection requires two of three signals (name token,
	// document-type phrase, legal-entity suffix) so OCR dropouts of a
	// single line do not lose the match.
	CanParse(text string) bool
	// Parse extracts the receipt. A nil error does not imply the result
	// passes validation; the registry gates on HasMinimalFields.
	Parse(text string) (*domain.ExtractedReceipt, error)
}

// ErrNoDeterministicMatch signals that no registered parser produced a
// validated result and the caller should escalate to the AI tier.
var ErrNoDeterministicMatch = errors.New("no deterministic receipt parser matched")

// Registry tries parsers in a fixed priority order, most specific first.
type Registry struct {
	parsers []Parser
}

// NewRegistry returns the registry with the built-in merchant parsers.
func NewRegistry() *Registry {
	return &Registry{parsers: []Parser{
		NewMercadonaParser(),
		NewConsumParser(),
		NewDiaParser(),
	}}
}

// Parsers exposes the registered parsers for enumeration in tests.
func (r *Registry) Parsers() []Parser {
	return r.parsers
}

// Parse dispatches text to the first matching parser. fromOCR selects the
// OCR artifact cleanup; text lifted from a PDF text layer is never
// rewritten. The merchant name of the winning parser is returned for
// diagnostics.
func (r *Registry) Parse(text string, fromOCR bool) (*domain.ExtractedReceipt, string, error) {
	if fromOCR {
		text = normalize.CleanOCRText(text)
	}

	for _, p := range r.parsers {
		if !p.CanParse(text) {
			continue
		}
		extracted, err := p.Parse(text)
		if err != nil || extracted == nil {
			continue
		}
		if !HasMinimalFields(extracted) {
			// A parser that matched but produced an incomplete or
			// inconsistent result is treated as "not ok": better to
			// escalate than to return low-confidence deterministic output.
			continue
		}
		return extracted, p.Name(), nil
	}
	return nil, "", ErrNoDeterministicMatch
}

// HasMinimalFields is the validation gate for deterministic receipt
// output: store identified, date present, positive total, at least one
// item, and the item sum within tolerance of the declared total.
func HasMinimalFields(r *domain.ExtractedReceipt) bool {
	if r == nil {
		return false
	}
	if r.StoreName == "" || r.ReceiptDateISO == "" {
		return false
	}
	if r.TotalAmount <= 0 || len(r.Items) == 0 {
		return false
	}
	return r.ItemsMatchTotal()
}
