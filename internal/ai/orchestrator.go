// Package ai is the model-backed fallback tier. Every document flow
// (CSV, statement, receipt) escalates here with a format-specific prompt
// but an identical shape: one completion call, strict-JSON request,
// tolerant decode, normalization of every field.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/amoreno/finparse/internal/domain"
	"github.com/amoreno/finparse/internal/llm"
	"github.com/amoreno/finparse/internal/normalize"
)

// Format selects the extraction prompt.
type Format string

const (
	FormatCSV       Format = "csv"
	FormatStatement Format = "statement"
)

// ReceiptResult carries the model's receipt extraction plus its own
// confidence estimate and free-form problem notes.
type ReceiptResult struct {
	Extracted   *domain.ExtractedReceipt
	Confidence  float64
	Suggestions []string
}

// Orchestrator drives the completion provider for all AI tiers.
type Orchestrator struct {
	provider llm.Provider
	log      zerolog.Logger
	rawSink  func(string)
}

// New builds an orchestrator on the given provider.
func New(provider llm.Provider, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{provider: provider, log: log}
}

// WithRawSink returns a copy whose completions are also handed, raw, to
// fn. Used to attach model output to parse run records.
func (o *Orchestrator) WithRawSink(fn func(string)) *Orchestrator {
	clone := *o
	clone.rawSink = fn
	return &clone
}

// TransactionsFromText extracts transaction rows from raw document text.
// Rows whose date and amount both failed to normalize and whose
// description is empty are dropped; everything else is kept with
// sentinel values, matching the deterministic parsers.
func (o *Orchestrator) TransactionsFromText(ctx context.Context, format Format, text string, categories []string) ([]domain.TransactionRow, error) {
	var system string
	switch format {
	case FormatStatement:
		system = statementSystemPrompt(categories)
	default:
		system = csvSystemPrompt(categories)
	}

	parsed, err := o.completeJSON(ctx, system, truncateSource(text))
	if err != nil {
		return nil, err
	}

	objects, ok := objectList(parsed, "transactions", "rows", "data")
	if !ok {
		return nil, fmt.Errorf("ai.TransactionsFromText: no transaction list in model output")
	}

	rows := make([]domain.TransactionRow, 0, len(objects))
	for _, obj := range objects {
		row := domain.TransactionRow{
			Date:        dateField(obj, "date"),
			Description: stringField(obj, "description"),
			Amount:      floatField(obj, "amount"),
			Balance:     optionalFloatField(obj, "balance"),
			Category:    stringField(obj, "category"),
		}
		if row.HasCoreField() {
			rows = append(rows, row)
		}
	}
	o.log.Debug().Int("rows", len(rows)).Str("format", string(format)).Msg("ai extraction complete")
	return rows, nil
}

// ReceiptFromText extracts a receipt when no deterministic parser
// claimed the text.
func (o *Orchestrator) ReceiptFromText(ctx context.Context, text string) (*ReceiptResult, error) {
	parsed, err := o.completeJSON(ctx, receiptSystemPrompt, truncateSource(text))
	if err != nil {
		return nil, err
	}
	obj, ok := parsed.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("ai.ReceiptFromText: model output is not an object")
	}

	r := &domain.ExtractedReceipt{
		StoreName:       stringField(obj, "store_name"),
		ReceiptDateISO:  dateField(obj, "receipt_date"),
		ReceiptTime:     stringField(obj, "receipt_time"),
		Currency:        stringField(obj, "currency"),
		TotalAmount:     floatField(obj, "total_amount"),
		TaxesTotalCuota: optionalFloatField(obj, "taxes_total"),
	}
	if r.Currency == "" {
		r.Currency = "EUR"
	}
	if r.ReceiptDateISO != "" {
		r.ReceiptDate = normalize.ISOToDisplay(r.ReceiptDateISO)
	}
	if items, ok := objectList(obj["items"]); ok {
		for _, it := range items {
			r.Items = append(r.Items, domain.ReceiptItem{
				Description:  stringField(it, "description"),
				Quantity:     floatField(it, "quantity"),
				PricePerUnit: floatField(it, "price_per_unit"),
				TotalPrice:   floatField(it, "total_price"),
			})
		}
	}

	result := &ReceiptResult{Extracted: r, Confidence: floatField(obj, "confidence")}
	if sugg, ok := obj["suggestions"].([]interface{}); ok {
		for _, s := range sugg {
			if str, ok := s.(string); ok && str != "" {
				result.Suggestions = append(result.Suggestions, str)
			}
		}
	}
	return result, nil
}

// CategorizeBatch classifies descriptions in one call and returns an
// index-to-category map. Out-of-range indexes and categories outside the
// supplied list are dropped.
func (o *Orchestrator) CategorizeBatch(ctx context.Context, descriptions, categories []string) (map[int]string, error) {
	if len(descriptions) == 0 {
		return map[int]string{}, nil
	}

	var b strings.Builder
	for i, d := range descriptions {
		fmt.Fprintf(&b, "%d. %s\n", i, d)
	}

	parsed, err := o.completeJSON(ctx, categorizeSystemPrompt(categories), b.String())
	if err != nil {
		return nil, err
	}

	objects, ok := objectList(parsed, "map", "categories", "results")
	if !ok {
		return nil, fmt.Errorf("ai.CategorizeBatch: no classification list in model output")
	}

	allowed := make(map[string]bool, len(categories))
	for _, c := range categories {
		allowed[c] = true
	}

	out := make(map[int]string, len(objects))
	for _, obj := range objects {
		idx, ok := intField(obj, "index")
		if !ok || idx < 0 || idx >= len(descriptions) {
			continue
		}
		cat := stringField(obj, "category")
		if cat == "" || !allowed[cat] {
			continue
		}
		out[idx] = cat
	}
	return out, nil
}

// RepairRows asks the model to fill sentinel dates and amounts using the
// surrounding rows as context. Rows come back unchanged when the model
// offers no fix.
func (o *Orchestrator) RepairRows(ctx context.Context, rows []domain.TransactionRow) ([]domain.TransactionRow, error) {
	payload, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("ai.RepairRows: marshal rows: %w", err)
	}

	parsed, err := o.completeJSON(ctx, fixesSystemPrompt(), string(payload))
	if err != nil {
		return nil, err
	}

	objects, ok := objectList(parsed, "fixes")
	if !ok {
		return rows, nil
	}

	fixed := make([]domain.TransactionRow, len(rows))
	copy(fixed, rows)
	for _, obj := range objects {
		idx, ok := intField(obj, "index")
		if !ok || idx < 0 || idx >= len(fixed) {
			continue
		}
		if d := dateField(obj, "date"); d != "" {
			fixed[idx].Date = d
		}
		if a := floatField(obj, "amount"); a != 0 {
			fixed[idx].Amount = a
		}
		if desc := stringField(obj, "description"); desc != "" {
			fixed[idx].Description = desc
		}
	}
	return fixed, nil
}

// completeJSON runs one completion and decodes the reply as JSON,
// stripping code fences first. Transport failures pass through wrapped
// so callers can distinguish "AI down" from "AI replied garbage".
func (o *Orchestrator) completeJSON(ctx context.Context, system, user string) (interface{}, error) {
	reply, err := o.provider.Complete(ctx, llm.ChatRequest{
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: user},
		},
		ForceJSON: true,
	})
	if err != nil {
		return nil, fmt.Errorf("ai: %w", err)
	}
	if o.rawSink != nil {
		o.rawSink(reply)
	}

	clean := llm.CleanModelJSON(reply)
	var parsed interface{}
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		o.log.Warn().Str("raw", truncateRaw(reply)).Msg("model returned unparseable JSON")
		return nil, fmt.Errorf("ai: unmarshal model output: %w", err)
	}
	return parsed, nil
}

func truncateRaw(s string) string {
	const max = 300
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
