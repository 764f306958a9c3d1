package domain

// ParseMode records which path produced the rows.
type ParseMode string

const (
	ParseModeAuto ParseMode = "auto"
	ParseModeAI   ParseMode = "ai"
)

// ParseDiagnostics is the side-channel built fresh for every parse call.
// It is read-only after return and never persisted with the canonical
// records; callers feed it to quality scoring and telemetry.
type ParseDiagnostics struct {
	Delimiter      string   `json:"delimiter,omitempty"`
	HeaderRowIndex int      `json:"header_row_index"`
	ColumnNames    []string `json:"column_names,omitempty"`

	RowsTotal          int `json:"rows_total"`
	RowsAfterPreproc   int `json:"rows_after_preprocess"`
	RowsAfterFiltering int `json:"rows_after_filtering"`
	SoftValidRows      int `json:"soft_valid_rows"`

	// Tier is the extraction strategy that produced the rows, e.g. "csv",
	// "statement_tier2", "receipt_mercadona", "ai_fallback".
	Tier string `json:"tier,omitempty"`

	InvalidDateSamples []string `json:"invalid_date_samples,omitempty"`
	FilteredOutSamples []string `json:"filtered_out_samples,omitempty"`
	Warnings           []string `json:"warnings,omitempty"`

	// AIError carries an AI tier failure description when the escalation
	// path was attempted and absorbed.
	AIError string `json:"ai_error,omitempty"`

	Mode ParseMode `json:"mode"`
}

// MaxDiagnosticSamples caps sampled row snippets kept in diagnostics.
const MaxDiagnosticSamples = 5

// AddWarning appends a warning message.
func (d *ParseDiagnostics) AddWarning(msg string) {
	d.Warnings = append(d.Warnings, msg)
}

// SampleInvalidDate keeps up to MaxDiagnosticSamples raw date values that
// failed normalization.
func (d *ParseDiagnostics) SampleInvalidDate(raw string) {
	if len(d.InvalidDateSamples) < MaxDiagnosticSamples {
		d.InvalidDateSamples = append(d.InvalidDateSamples, raw)
	}
}

// SampleFilteredOut keeps up to MaxDiagnosticSamples dropped-row snippets.
func (d *ParseDiagnostics) SampleFilteredOut(raw string) {
	if len(d.FilteredOutSamples) < MaxDiagnosticSamples {
		d.FilteredOutSamples = append(d.FilteredOutSamples, raw)
	}
}

// QualityLevel buckets a quality score.
type QualityLevel string

const (
	QualityHigh   QualityLevel = "high"
	QualityMedium QualityLevel = "medium"
	QualityLow    QualityLevel = "low"
)

// ParseQualitySummary is derived deterministically from diagnostics and row
// completeness. It is recomputed on demand, never mutated.
type ParseQualitySummary struct {
	Level     QualityLevel `json:"level"`
	Score     int          `json:"score"`
	Reasons   []string     `json:"reasons"`
	ParseMode ParseMode    `json:"parseMode"`
}
