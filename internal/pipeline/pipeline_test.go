package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/amoreno/finparse/internal/domain"
	"github.com/amoreno/finparse/internal/llm"
)

// scriptedProvider returns canned completions in order.
type scriptedProvider struct {
	replies []string
	err     error
	calls   int
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) Complete(_ context.Context, _ llm.ChatRequest) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "{}", nil
	}
	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return reply, nil
}

// fixedExtractor hands back a canned OCR/text-layer result.
type fixedExtractor struct {
	text string
	err  error
}

func (f *fixedExtractor) ExtractText(_ context.Context, _ []byte, _ string) (string, error) {
	return f.text, f.err
}

func newPipeline(provider llm.Provider, extractorText string) *Pipeline {
	opts := Options{Logger: zerolog.Nop(), Provider: provider}
	if extractorText != "" {
		opts.Extractor = &fixedExtractor{text: extractorText}
	}
	return New(opts)
}

const cleanCSV = "Date,Desc,Amount\n" +
	"2024-01-05,MERCADONA MADRID,-23.50\n" +
	"2024-01-06,NOMINA EMPRESA,1500.00\n"

func TestParse_CSVEndToEnd(t *testing.T) {
	p := newPipeline(nil, "")
	res, err := p.Parse(context.Background(), ParseRequest{
		Data:     []byte(cleanCSV),
		MimeType: "text/csv",
		Filename: "movements.csv",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(res.Rows))
	}
	if res.Rows[0].Category != "Groceries" {
		t.Errorf("row 0 category = %q, want Groceries", res.Rows[0].Category)
	}
	if res.Rows[1].Category != "Income" {
		t.Errorf("row 1 category = %q, want Income", res.Rows[1].Category)
	}
	if res.Diagnostics.Mode != domain.ParseModeAuto {
		t.Errorf("mode = %s", res.Diagnostics.Mode)
	}
	if res.Quality.Level != domain.QualityHigh {
		t.Errorf("quality = %s (%d, %v)", res.Quality.Level, res.Quality.Score, res.Quality.Reasons)
	}

	run, ok := p.Runs().Get(res.RunID)
	if !ok {
		t.Fatal("run not recorded")
	}
	if run.Status != RunStatusDone || run.ParserType != "csv" {
		t.Errorf("run = %+v", run)
	}
}

func TestParse_CSVEscalatesToAI(t *testing.T) {
	// Prose the CSV mapper cannot handle; the model recovers the rows.
	garbled := strings.Repeat("statement narrative line with no structure\n", 12)
	provider := &scriptedProvider{replies: []string{
		`{"transactions":[{"date":"2024-01-05","description":"MERCADONA","amount":-10}]}`,
	}}

	p := newPipeline(provider, "")
	res, err := p.Parse(context.Background(), ParseRequest{
		Data:     []byte(garbled),
		MimeType: "text/csv",
		Filename: "export.csv",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Diagnostics.Mode != domain.ParseModeAI || res.Diagnostics.Tier != "ai_fallback" {
		t.Errorf("diagnostics = %+v", res.Diagnostics)
	}
	if len(res.Rows) != 1 || res.Rows[0].Category != "Groceries" {
		t.Errorf("rows = %+v", res.Rows)
	}

	run, _ := p.Runs().Get(res.RunID)
	if run.ModelOutput == "" {
		t.Error("raw model output must be attached to the run")
	}
	if run.ParserType != "ai_fallback" {
		t.Errorf("parser type = %q", run.ParserType)
	}
}

func TestParse_CSVAIUnavailableKeepsDeterministicError(t *testing.T) {
	garbled := strings.Repeat("no structure here at all\n", 12)

	p := newPipeline(nil, "")
	_, err := p.Parse(context.Background(), ParseRequest{
		Data:     []byte(garbled),
		MimeType: "text/csv",
	})
	if !errors.Is(err, ErrStructuralParse) {
		t.Errorf("err = %v, want ErrStructuralParse", err)
	}
}

func TestParse_CSVRepairRecoversBrokenDates(t *testing.T) {
	// Escalation caused by bad dates is handled with row-level fixes
	// first; the deterministic rows survive instead of being replaced by
	// a full model re-parse.
	csv := "Date,Desc,Amount\n" +
		"2024-01-05,SHOP A,-1.00\n" +
		"notadate,SHOP B,-2.00\n" +
		"notadate,SHOP C,-3.00\n" +
		"notadate,SHOP D,-4.00\n" +
		"2024-01-08,SHOP E,-5.00\n"
	provider := &scriptedProvider{replies: []string{
		`{"fixes":[{"index":1,"date":"2024-01-06"},{"index":2,"date":"2024-01-06"},{"index":3,"date":"2024-01-07"}]}`,
		`{"map":[]}`,
	}}

	p := newPipeline(provider, "")
	res, err := p.Parse(context.Background(), ParseRequest{
		Data:     []byte(csv),
		MimeType: "text/csv",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Rows) != 5 {
		t.Fatalf("rows = %d, want all 5 kept", len(res.Rows))
	}
	if res.Rows[1].Date != "2024-01-06" || res.Rows[3].Date != "2024-01-07" {
		t.Errorf("dates = %q / %q, fixes not applied", res.Rows[1].Date, res.Rows[3].Date)
	}
	if res.Diagnostics.Mode != domain.ParseModeAI {
		t.Errorf("mode = %s, want ai after repair", res.Diagnostics.Mode)
	}
	if res.Diagnostics.Tier != "csv" {
		t.Errorf("tier = %q, repair must not replace the deterministic parse", res.Diagnostics.Tier)
	}
	if res.Diagnostics.AIError != "" {
		t.Errorf("AIError = %q", res.Diagnostics.AIError)
	}
}

func TestParse_CSVAIFailureKeepsDeterministicRows(t *testing.T) {
	// Rows parse, but most dates are broken, which trips escalation.
	csv := "Date,Desc,Amount\n" +
		"2024-01-05,SHOP A,-1.00\n" +
		"notadate,SHOP B,-2.00\n" +
		"notadate,SHOP C,-3.00\n" +
		"notadate,SHOP D,-4.00\n" +
		"2024-01-08,SHOP E,-5.00\n"
	provider := &scriptedProvider{err: llm.ErrUnavailable}

	p := newPipeline(provider, "")
	res, err := p.Parse(context.Background(), ParseRequest{
		Data:     []byte(csv),
		MimeType: "text/csv",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Diagnostics.AIError == "" {
		t.Error("AI failure must be captured as a diagnostic")
	}
	if len(res.Rows) != 5 {
		t.Errorf("rows = %d, deterministic result must survive", len(res.Rows))
	}
	if res.Quality.Level != domain.QualityLow {
		t.Errorf("quality = %s, want low at 60%% missing dates", res.Quality.Level)
	}
}

const statementText = `EXTRACTO DE CUENTA
Fecha Concepto Importe Saldo
01/03/2024 COMPRA MERCADONA VALENCIA -23,50 1.476,50
04/03/2024 NOMINA EMPRESA SL 1.500,00 2.976,50
`

func TestParse_StatementTextLayer(t *testing.T) {
	// Pre-extracted statement text arrives under the PDF MIME type.
	p := newPipeline(nil, "")
	res, err := p.Parse(context.Background(), ParseRequest{
		Data:     []byte(statementText),
		MimeType: "application/pdf",
		Filename: "extracto.pdf",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("rows = %d, want 2: %+v", len(res.Rows), res.Rows)
	}
	if !strings.HasPrefix(res.Diagnostics.Tier, "statement_tier") {
		t.Errorf("tier = %q", res.Diagnostics.Tier)
	}
	if res.Rows[0].Category != "Groceries" || res.Rows[1].Category != "Income" {
		t.Errorf("categories = %q / %q", res.Rows[0].Category, res.Rows[1].Category)
	}
}

func TestParse_StatementFallsBackToAI(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"transactions":[{"date":"2024-03-01","description":"RECOVERED","amount":-5}]}`,
	}}
	p := newPipeline(provider, "")

	res, err := p.Parse(context.Background(), ParseRequest{
		Data:     []byte("no dates or amounts anywhere in this text"),
		MimeType: "application/pdf",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Diagnostics.Tier != "ai_fallback" {
		t.Errorf("tier = %q", res.Diagnostics.Tier)
	}
	if res.Quality.ParseMode != domain.ParseModeAI {
		t.Errorf("parse mode = %s", res.Quality.ParseMode)
	}
}

func TestParse_StatementNoTiersNoAI(t *testing.T) {
	p := newPipeline(nil, "")
	_, err := p.Parse(context.Background(), ParseRequest{
		Data:     []byte("no dates or amounts anywhere in this text"),
		MimeType: "application/pdf",
	})
	if !errors.Is(err, ErrAIUnavailable) {
		t.Errorf("err = %v, want ErrAIUnavailable", err)
	}
}

const mercadonaOCR = `MERCADONA, S.A.
01/02/2024 19:04  OP: 164803
FACTURA SIMPLIFICADA: 2804-017-836175
Descripción           P. Unit   Importe
1 LECHE ENTERA                  0,94
TOTAL (€)                       0,94
`

func TestParse_ReceiptDeterministic(t *testing.T) {
	p := newPipeline(nil, mercadonaOCR)
	res, err := p.Parse(context.Background(), ParseRequest{
		Data:     []byte{0xff, 0xd8, 0xff},
		MimeType: "image/jpeg",
		Filename: "ticket.jpg",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Extracted == nil || res.Extracted.StoreName != "Mercadona" {
		t.Fatalf("extracted = %+v", res.Extracted)
	}
	if res.Diagnostics.Tier != "receipt_mercadona" {
		t.Errorf("tier = %q", res.Diagnostics.Tier)
	}
	if res.Quality.Level != domain.QualityHigh {
		t.Errorf("quality = %s", res.Quality.Level)
	}
}

func TestParse_ReceiptFallsBackToAI(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"store_name":"Bar Pepe","receipt_date":"2024-02-01","currency":"EUR",
		  "total_amount":12.00,"items":[{"description":"Menu","quantity":1,"total_price":12.00}],
		  "confidence":0.9,"suggestions":[]}`,
	}}
	p := newPipeline(provider, "BAR PEPE\nMENU DEL DIA 12,00\nGRACIAS POR SU VISITA")

	res, err := p.Parse(context.Background(), ParseRequest{
		Data:     []byte{0xff, 0xd8, 0xff},
		MimeType: "image/jpeg",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Extracted.StoreName != "Bar Pepe" {
		t.Errorf("extracted = %+v", res.Extracted)
	}
	if res.Diagnostics.Tier != "ai_fallback" {
		t.Errorf("tier = %q", res.Diagnostics.Tier)
	}
	if res.Quality.Level != domain.QualityHigh || res.Quality.Score != 85 {
		t.Errorf("quality = %s/%d", res.Quality.Level, res.Quality.Score)
	}
}

func TestParse_EmptyAndUnsupported(t *testing.T) {
	p := newPipeline(nil, "")

	_, err := p.Parse(context.Background(), ParseRequest{Data: []byte("  \n "), MimeType: "text/csv"})
	if !errors.Is(err, ErrEmptyInput) {
		t.Errorf("err = %v, want ErrEmptyInput", err)
	}

	_, err = p.Parse(context.Background(), ParseRequest{Data: []byte("x"), MimeType: "application/zip"})
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("err = %v, want ErrUnsupportedType", err)
	}
}

func TestParse_PreferencesReachEngine(t *testing.T) {
	p := newPipeline(nil, "")
	res, err := p.Parse(context.Background(), ParseRequest{
		Data:        []byte(cleanCSV),
		MimeType:    "text/csv",
		Preferences: map[string]string{"mercadona madrid": "Shopping"},
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Rows[0].Category != "Shopping" {
		t.Errorf("category = %q, preference must win", res.Rows[0].Category)
	}
}
