// Package quality turns parse diagnostics into a single score and
// confidence level shown to the user. The function is deterministic over
// already-computed rows and diagnostics; it never re-parses anything.
package quality

import (
	"fmt"

	"github.com/amoreno/finparse/internal/domain"
)

// Level thresholds and downgrade bounds.
const (
	highThreshold   = 80
	mediumThreshold = 55

	hardRatioBound    = 0.40
	hardCoverageBound = 0.50
	softRatioBound    = 0.20
	softCoverageBound = 0.75

	maxReasons = 4
)

// Score rates a parse result from 0 to 100 and assigns a confidence
// level. rows are the final emitted rows; diag is the pipeline's
// diagnostics for the same run.
func Score(rows []domain.TransactionRow, diag *domain.ParseDiagnostics) domain.ParseQualitySummary {
	stats := collect(rows, diag)

	score := 100.0
	score -= stats.missingDateRatio * 45
	score -= stats.missingDescRatio * 30

	if stats.coverage < 0.90 {
		score -= (0.90 - stats.coverage) / 0.90 * 60
	}
	if stats.categoryCoverage < 0.50 {
		score -= (0.50 - stats.categoryCoverage) / 0.50 * 20
	}

	score -= capFloat(float64(stats.softValid), 15)
	score -= capFloat(float64(stats.duplicates), 10)
	score -= capFloat(float64(stats.warnings)*2, 10)
	if stats.aiMode {
		score -= 5
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	level := levelFor(score, stats)

	return domain.ParseQualitySummary{
		Level:     level,
		Score:     int(score + 0.5),
		Reasons:   reasonsFor(stats),
		ParseMode: stats.mode,
	}
}

type stats struct {
	rows             int
	missingDateRatio float64
	missingDescRatio float64
	coverage         float64
	categoryCoverage float64
	softValid        int
	duplicates       int
	warnings         int
	aiMode           bool
	mode             domain.ParseMode
}

func collect(rows []domain.TransactionRow, diag *domain.ParseDiagnostics) stats {
	s := stats{rows: len(rows), coverage: 1, categoryCoverage: 1, mode: domain.ParseModeAuto}

	if len(rows) > 0 {
		missingDate, missingDesc, categorized := 0, 0, 0
		seen := make(map[string]bool, len(rows))
		for _, r := range rows {
			if r.Date == "" {
				missingDate++
			}
			if r.Description == "" {
				missingDesc++
			}
			if r.Category != "" {
				categorized++
			}
			key := fmt.Sprintf("%s|%s|%.2f", r.Date, r.Description, r.Amount)
			if seen[key] {
				s.duplicates++
			}
			seen[key] = true
		}
		n := float64(len(rows))
		s.missingDateRatio = float64(missingDate) / n
		s.missingDescRatio = float64(missingDesc) / n
		s.categoryCoverage = float64(categorized) / n
	}

	if diag != nil {
		// Coverage compares emitted rows against candidate transactions,
		// not physical lines: RowsTotal counts headers and continuation
		// lines too, which would penalize clean parses.
		base := diag.RowsAfterPreproc
		if base == 0 {
			base = diag.RowsTotal
		}
		if base > 0 {
			s.coverage = float64(len(rows)) / float64(base)
			if s.coverage > 1 {
				s.coverage = 1
			}
		}
		s.softValid = diag.SoftValidRows
		s.warnings = len(diag.Warnings)
		s.mode = diag.Mode
		s.aiMode = diag.Mode == domain.ParseModeAI
	}
	return s
}

func levelFor(score float64, s stats) domain.QualityLevel {
	level := domain.QualityLow
	switch {
	case score >= highThreshold:
		level = domain.QualityHigh
	case score >= mediumThreshold:
		level = domain.QualityMedium
	}

	// Structural problems dominate the arithmetic: a result missing most
	// of its dates is low confidence no matter what the score says.
	if s.missingDateRatio > hardRatioBound || s.missingDescRatio > hardRatioBound || s.coverage < hardCoverageBound {
		return domain.QualityLow
	}
	if level == domain.QualityHigh &&
		(s.missingDateRatio > softRatioBound || s.missingDescRatio > softRatioBound || s.coverage < softCoverageBound) {
		return domain.QualityMedium
	}
	return level
}

// reasonsFor lists the dominant problems in a fixed priority order. A
// clean parse gets a positive reason instead of an empty list.
func reasonsFor(s stats) []string {
	var reasons []string
	add := func(cond bool, format string, args ...interface{}) {
		if cond && len(reasons) < maxReasons {
			reasons = append(reasons, fmt.Sprintf(format, args...))
		}
	}

	add(s.missingDateRatio > 0, "%d%% of rows are missing a date", int(s.missingDateRatio*100))
	add(s.missingDescRatio > 0, "%d%% of rows are missing a description", int(s.missingDescRatio*100))
	add(s.coverage < 0.90, "only %d%% of detected rows were extracted", int(s.coverage*100))
	add(s.categoryCoverage < 0.50, "only %d%% of rows were categorized", int(s.categoryCoverage*100))
	add(s.duplicates > 0, "%d duplicate rows detected", s.duplicates)
	add(s.softValid > 0, "%d rows passed only relaxed validation", s.softValid)
	add(s.warnings > 0, "%d parser warnings", s.warnings)
	add(s.aiMode, "parsed by AI fallback")

	if len(reasons) == 0 {
		if s.rows > 0 && s.categoryCoverage >= 0.90 {
			return []string{"Auto-categorized"}
		}
		return []string{"Complete data"}
	}
	return reasons
}

func capFloat(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}
