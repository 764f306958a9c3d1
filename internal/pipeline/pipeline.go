// Package pipeline is the front door of the parser: it dispatches an
// uploaded file to the right flow (CSV, statement, receipt), drives the
// escalation tiers, and assembles rows, diagnostics and a quality
// summary into one result.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/amoreno/finparse/internal/ai"
	"github.com/amoreno/finparse/internal/categorize"
	"github.com/amoreno/finparse/internal/csvparse"
	"github.com/amoreno/finparse/internal/domain"
	"github.com/amoreno/finparse/internal/llm"
	"github.com/amoreno/finparse/internal/ocr"
	"github.com/amoreno/finparse/internal/quality"
	"github.com/amoreno/finparse/internal/receipt"
	"github.com/amoreno/finparse/internal/statement"
)

// ParseRequest is one uploaded document plus its categorization context.
type ParseRequest struct {
	Data     []byte
	MimeType string
	Filename string

	// Categories is the caller's taxonomy; empty selects the default.
	Categories []string
	// Preferences maps folded description keys to category names.
	Preferences map[string]string
}

// ParseResult is the uniform output of every flow. Rows is set for CSV
// and statement input, Extracted for receipts.
type ParseResult struct {
	Rows        []domain.TransactionRow    `json:"rows,omitempty"`
	Extracted   *domain.ExtractedReceipt   `json:"extracted,omitempty"`
	Diagnostics *domain.ParseDiagnostics   `json:"diagnostics"`
	Quality     domain.ParseQualitySummary `json:"quality"`
	RunID       string                     `json:"run_id"`
}

// Pipeline wires the deterministic parsers, the AI tier and the
// categorization engine. A nil provider or extractor disables that tier;
// the flows degrade as their failure semantics describe.
type Pipeline struct {
	registry  *receipt.Registry
	fallback  *ai.Orchestrator
	engine    *categorize.Engine
	extractor ocr.TextExtractor
	runs      *RunStore
	log       zerolog.Logger
}

// Options configures a Pipeline.
type Options struct {
	Provider    llm.Provider
	Extractor   ocr.TextExtractor
	Logger      zerolog.Logger
	RunCapacity int
}

// New builds a pipeline. All rule tables are immutable; one pipeline
// serves concurrent invocations without coordination.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		registry:  receipt.NewRegistry(),
		extractor: opts.Extractor,
		runs:      NewRunStore(opts.RunCapacity),
		log:       opts.Logger,
	}
	if opts.Provider != nil {
		p.fallback = ai.New(opts.Provider, opts.Logger)
	}
	var classifier categorize.BatchClassifier
	if p.fallback != nil {
		classifier = p.fallback
	}
	p.engine = categorize.NewEngine(classifier, opts.Logger)
	return p
}

// Runs exposes the parse run store.
func (p *Pipeline) Runs() *RunStore { return p.runs }

// Parse processes one document end to end.
func (p *Pipeline) Parse(ctx context.Context, req ParseRequest) (*ParseResult, error) {
	if len(bytes.TrimSpace(req.Data)) == 0 {
		return nil, fmt.Errorf("pipeline.Parse: %w", ErrEmptyInput)
	}

	run := p.runs.Start(req.Filename, req.MimeType)
	fallback := p.fallback
	if fallback != nil {
		fallback = fallback.WithRawSink(func(raw string) {
			p.runs.AttachModelOutput(run.RunID, raw)
		})
	}

	var result *ParseResult
	var err error
	switch {
	case isCSVType(req.MimeType, req.Filename):
		result, err = p.parseCSV(ctx, req, fallback)
	case req.MimeType == "application/pdf":
		result, err = p.parseStatement(ctx, req, fallback)
	case strings.HasPrefix(req.MimeType, "image/"):
		result, err = p.parseReceipt(ctx, req, fallback)
	default:
		err = fmt.Errorf("pipeline.Parse: %q: %w", req.MimeType, ErrUnsupportedType)
	}

	parserType := ""
	if result != nil {
		result.RunID = run.RunID
		if result.Diagnostics != nil {
			parserType = result.Diagnostics.Tier
		}
	}
	p.runs.Finish(run.RunID, parserType, err)
	return result, err
}

func isCSVType(mimeType, filename string) bool {
	switch mimeType {
	case "text/csv", "application/csv", "text/plain", "text/tab-separated-values":
		return true
	case "application/vnd.ms-excel":
		// Banks routinely label CSV exports with the Excel MIME type.
		return strings.EqualFold(filepath.Ext(filename), ".csv")
	}
	return false
}

// parseCSV runs the deterministic CSV flow and escalates to the model
// when the output looks structurally broken.
func (p *Pipeline) parseCSV(ctx context.Context, req ParseRequest, fallback *ai.Orchestrator) (*ParseResult, error) {
	text := string(req.Data)
	rows, diag := csvparse.Parse(text)

	lineCount := countNonEmptyLines(text)
	escalate, reason := ai.ShouldEscalateCSV(rows, lineCount, true)
	if escalate {
		diag.AddWarning(reason)
		switch {
		case fallback == nil:
			diag.AIError = "AI fallback not configured"
		default:
			if repaired, ok := p.repairCSVRows(ctx, fallback, rows, lineCount); ok {
				rows = repaired
				diag.Mode = domain.ParseModeAI
				diag.RowsAfterFiltering = len(repaired)
				diag.AddWarning("row-level fixes applied by the model")
				break
			}
			aiRows, err := fallback.TransactionsFromText(ctx, ai.FormatCSV, text, categoriesOrDefault(req.Categories))
			if err != nil {
				diag.AIError = err.Error()
				p.log.Warn().Err(err).Str("file", req.Filename).Msg("csv AI escalation failed")
			} else if len(aiRows) > 0 {
				rows = aiRows
				diag.Mode = domain.ParseModeAI
				diag.Tier = "ai_fallback"
				diag.RowsAfterFiltering = len(aiRows)
			}
		}
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("pipeline.parseCSV: %w", ErrStructuralParse)
	}
	return p.finishRows(ctx, rows, diag, req), nil
}

// repairCSVRows tries row-level fixes before discarding the deterministic
// parse for a full model re-parse. The repair wins only when the fixed
// rows no longer trip an escalation trigger. A row-count shortfall cannot
// be fixed in place, so that trigger skips straight to re-parsing.
func (p *Pipeline) repairCSVRows(ctx context.Context, fallback *ai.Orchestrator, rows []domain.TransactionRow, lineCount int) ([]domain.TransactionRow, bool) {
	if len(rows) == 0 {
		return nil, false
	}
	if lineCount > 10 && len(rows)*5 < lineCount {
		return nil, false
	}
	repaired, err := fallback.RepairRows(ctx, rows)
	if err != nil {
		return nil, false
	}
	if again, _ := ai.ShouldEscalateCSV(repaired, lineCount, true); again {
		return nil, false
	}
	return repaired, true
}

// parseStatement handles PDF statements: extract text, run the tiered
// text parser, escalate to the model only when every tier failed.
func (p *Pipeline) parseStatement(ctx context.Context, req ParseRequest, fallback *ai.Orchestrator) (*ParseResult, error) {
	text, err := p.statementText(ctx, req)
	if err != nil {
		return nil, err
	}

	rows, diag, parseErr := statement.Parse(text)
	if parseErr != nil {
		if fallback == nil {
			return nil, fmt.Errorf("pipeline.parseStatement: %v: %w", parseErr, ErrAIUnavailable)
		}
		aiRows, aiErr := fallback.TransactionsFromText(ctx, ai.FormatStatement, text, categoriesOrDefault(req.Categories))
		if aiErr != nil {
			if errors.Is(aiErr, llm.ErrUnavailable) {
				return nil, fmt.Errorf("pipeline.parseStatement: %v: %w", parseErr, ErrAIUnavailable)
			}
			return nil, fmt.Errorf("pipeline.parseStatement: %v: %w", parseErr, ErrStructuralParse)
		}
		if len(aiRows) == 0 {
			return nil, fmt.Errorf("pipeline.parseStatement: %w", ErrStructuralParse)
		}
		rows = aiRows
		diag = &domain.ParseDiagnostics{
			RowsTotal:          len(aiRows),
			RowsAfterFiltering: len(aiRows),
			Mode:               domain.ParseModeAI,
			Tier:               "ai_fallback",
		}
		diag.AddWarning(parseErr.Error())
	}
	return p.finishRows(ctx, rows, diag, req), nil
}

func (p *Pipeline) statementText(ctx context.Context, req ParseRequest) (string, error) {
	if !bytes.HasPrefix(req.Data, []byte("%PDF")) {
		// Callers may pass pre-extracted statement text under the PDF
		// MIME type.
		return string(req.Data), nil
	}
	if p.extractor == nil {
		return "", fmt.Errorf("pipeline.statementText: no text extractor configured: %w", ErrUnsupportedType)
	}
	text, err := p.extractor.ExtractText(ctx, req.Data, req.MimeType)
	if err != nil {
		return "", fmt.Errorf("pipeline.statementText: %w", err)
	}
	return text, nil
}

// parseReceipt handles photographed or scanned receipts: OCR, the
// deterministic merchant registry, then the model.
func (p *Pipeline) parseReceipt(ctx context.Context, req ParseRequest, fallback *ai.Orchestrator) (*ParseResult, error) {
	if p.extractor == nil {
		return nil, fmt.Errorf("pipeline.parseReceipt: no OCR extractor configured: %w", ErrUnsupportedType)
	}
	text, err := p.extractor.ExtractText(ctx, req.Data, req.MimeType)
	if err != nil {
		return nil, fmt.Errorf("pipeline.parseReceipt: %w", err)
	}

	diag := &domain.ParseDiagnostics{Mode: domain.ParseModeAuto}

	extracted, parserName, err := p.registry.Parse(text, true)
	if err == nil {
		diag.Tier = "receipt_" + parserName
		return &ParseResult{
			Extracted:   extracted,
			Diagnostics: diag,
			Quality:     receiptQuality(diag, 1, nil),
		}, nil
	}
	if !errors.Is(err, receipt.ErrNoDeterministicMatch) {
		return nil, fmt.Errorf("pipeline.parseReceipt: %w", err)
	}

	if fallback == nil {
		return nil, fmt.Errorf("pipeline.parseReceipt: no deterministic parser matched: %w", ErrAIUnavailable)
	}
	res, aiErr := fallback.ReceiptFromText(ctx, text)
	if aiErr != nil {
		if errors.Is(aiErr, llm.ErrUnavailable) {
			return nil, fmt.Errorf("pipeline.parseReceipt: %v: %w", aiErr, ErrAIUnavailable)
		}
		return nil, fmt.Errorf("pipeline.parseReceipt: %v: %w", aiErr, ErrStructuralParse)
	}

	diag.Mode = domain.ParseModeAI
	diag.Tier = "ai_fallback"
	for _, s := range res.Suggestions {
		diag.AddWarning(s)
	}
	return &ParseResult{
		Extracted:   res.Extracted,
		Diagnostics: diag,
		Quality:     receiptQuality(diag, res.Confidence, res.Extracted),
	}, nil
}

// finishRows runs categorization and quality scoring, shared by the CSV
// and statement flows.
func (p *Pipeline) finishRows(ctx context.Context, rows []domain.TransactionRow, diag *domain.ParseDiagnostics, req ParseRequest) *ParseResult {
	catResult := p.engine.Categorize(ctx, rows, req.Categories, req.Preferences)
	if catResult.AIError != "" && diag.AIError == "" {
		diag.AIError = catResult.AIError
	}
	return &ParseResult{
		Rows:        catResult.Rows,
		Diagnostics: diag,
		Quality:     quality.Score(catResult.Rows, diag),
	}
}

// receiptQuality rates a receipt extraction. Deterministic results that
// passed the minimal-fields gate are trusted; AI results inherit the
// model's own confidence with the flat AI penalty.
func receiptQuality(diag *domain.ParseDiagnostics, confidence float64, extracted *domain.ExtractedReceipt) domain.ParseQualitySummary {
	if diag.Mode == domain.ParseModeAuto {
		return domain.ParseQualitySummary{
			Level:     domain.QualityHigh,
			Score:     90,
			Reasons:   []string{"Complete data"},
			ParseMode: domain.ParseModeAuto,
		}
	}

	score := confidence*100 - 5
	if extracted != nil && !extracted.ItemsMatchTotal() {
		score -= 20
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	level := domain.QualityLow
	switch {
	case score >= 80:
		level = domain.QualityHigh
	case score >= 55:
		level = domain.QualityMedium
	}

	reasons := []string{"parsed by AI fallback"}
	if extracted != nil && !extracted.ItemsMatchTotal() {
		reasons = append(reasons, "item totals do not match the receipt total")
	}
	return domain.ParseQualitySummary{
		Level:     level,
		Score:     int(score + 0.5),
		Reasons:   reasons,
		ParseMode: domain.ParseModeAI,
	}
}

func categoriesOrDefault(categories []string) []string {
	if len(categories) == 0 {
		return categorize.DefaultCategories
	}
	return categories
}

func countNonEmptyLines(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
