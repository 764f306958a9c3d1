package quality

import (
	"strings"
	"testing"

	"github.com/amoreno/finparse/internal/domain"
)

func makeRows(n int, mutate func(i int, r *domain.TransactionRow)) []domain.TransactionRow {
	rows := make([]domain.TransactionRow, n)
	for i := range rows {
		rows[i] = domain.TransactionRow{
			Date:        "2024-01-05",
			Description: "ROW NUMBER " + strings.Repeat("X", i%7),
			Amount:      float64(i+1) * -1.5,
			Category:    "Groceries",
		}
		if mutate != nil {
			mutate(i, &rows[i])
		}
	}
	return rows
}

func diagFor(rows []domain.TransactionRow) *domain.ParseDiagnostics {
	return &domain.ParseDiagnostics{
		RowsTotal:          len(rows),
		RowsAfterFiltering: len(rows),
		Mode:               domain.ParseModeAuto,
	}
}

func TestScore_CleanParseIsHigh(t *testing.T) {
	rows := makeRows(20, nil)
	got := Score(rows, diagFor(rows))

	if got.Level != domain.QualityHigh {
		t.Errorf("level = %s, want high (score %d, reasons %v)", got.Level, got.Score, got.Reasons)
	}
	if got.Score < 80 {
		t.Errorf("score = %d, want >= 80", got.Score)
	}
	if len(got.Reasons) != 1 || got.Reasons[0] != "Auto-categorized" {
		t.Errorf("reasons = %v, want the positive reason", got.Reasons)
	}
}

func TestScore_CoverageUsesCandidateCount(t *testing.T) {
	// RowsTotal counts physical lines (header included, continuation
	// lines for statements); coverage must compare against the
	// candidate-transaction count instead.
	rows := makeRows(2, nil)
	diag := diagFor(rows)
	diag.RowsTotal = 8
	diag.RowsAfterPreproc = 2

	got := Score(rows, diag)
	if got.Level != domain.QualityHigh {
		t.Errorf("level = %s (%d, %v), want high for a complete parse", got.Level, got.Score, got.Reasons)
	}
	for _, r := range got.Reasons {
		if strings.Contains(r, "detected rows") {
			t.Errorf("unexpected coverage reason %q", r)
		}
	}
}

func TestScore_HalfMissingDatesForcedLow(t *testing.T) {
	rows := makeRows(20, func(i int, r *domain.TransactionRow) {
		if i%2 == 0 {
			r.Date = ""
		}
	})
	got := Score(rows, diagFor(rows))

	if got.Level != domain.QualityLow {
		t.Errorf("level = %s, want low at 50%% missing dates", got.Level)
	}
}

func TestScore_SoftDowngradeHighToMedium(t *testing.T) {
	// 25% missing descriptions: above the 20% soft bound but the
	// arithmetic alone (100 - 0.25*30 = 92.5) would still read high.
	rows := makeRows(20, func(i int, r *domain.TransactionRow) {
		if i%4 == 0 {
			r.Description = ""
		}
	})
	got := Score(rows, diagFor(rows))

	if got.Score < 80 {
		t.Fatalf("score = %d, expected the arithmetic to stay high", got.Score)
	}
	if got.Level != domain.QualityMedium {
		t.Errorf("level = %s, want medium", got.Level)
	}
}

func TestScore_LowCoverageForcedLow(t *testing.T) {
	rows := makeRows(4, nil)
	diag := diagFor(rows)
	diag.RowsTotal = 10 // 40% coverage

	got := Score(rows, diag)
	if got.Level != domain.QualityLow {
		t.Errorf("level = %s, want low below 50%% coverage", got.Level)
	}
}

func TestScore_AIModePenalty(t *testing.T) {
	rows := makeRows(20, nil)
	auto := Score(rows, diagFor(rows))

	diag := diagFor(rows)
	diag.Mode = domain.ParseModeAI
	ai := Score(rows, diag)

	if ai.Score != auto.Score-5 {
		t.Errorf("ai score = %d, auto score = %d, want flat 5-point gap", ai.Score, auto.Score)
	}
	if ai.ParseMode != domain.ParseModeAI {
		t.Errorf("parse mode = %s", ai.ParseMode)
	}
}

func TestScore_DuplicatesAndWarningsCapped(t *testing.T) {
	// All 30 rows identical: 29 duplicates, capped at 10 points.
	rows := make([]domain.TransactionRow, 30)
	for i := range rows {
		rows[i] = domain.TransactionRow{Date: "2024-01-05", Description: "SAME", Amount: -1, Category: "Other"}
	}
	diag := diagFor(rows)
	for i := 0; i < 20; i++ {
		diag.AddWarning("w")
	}

	got := Score(rows, diag)
	// 100 - 10 (dup cap) - 10 (warning cap) = 80, high by score but the
	// reasons must surface both problems.
	if got.Score != 80 {
		t.Errorf("score = %d, want 80", got.Score)
	}
	joined := strings.Join(got.Reasons, "; ")
	if !strings.Contains(joined, "duplicate") || !strings.Contains(joined, "warnings") {
		t.Errorf("reasons = %v", got.Reasons)
	}
}

func TestScore_ReasonsCappedAtFour(t *testing.T) {
	rows := makeRows(20, func(i int, r *domain.TransactionRow) {
		if i%3 == 0 {
			r.Date = ""
		}
		if i%4 == 0 {
			r.Description = ""
		}
		r.Category = ""
	})
	diag := diagFor(rows)
	diag.RowsTotal = 40
	diag.SoftValidRows = 3
	diag.AddWarning("x")
	diag.Mode = domain.ParseModeAI

	got := Score(rows, diag)
	if len(got.Reasons) != 4 {
		t.Errorf("reasons = %v, want exactly 4", got.Reasons)
	}
}

func TestScore_EmptyResult(t *testing.T) {
	got := Score(nil, &domain.ParseDiagnostics{RowsTotal: 10})
	if got.Level != domain.QualityLow || got.Score > 40 {
		t.Errorf("empty result scored %d/%s", got.Score, got.Level)
	}
}
