// Package categorize assigns a category to every transaction row. The
// resolution order is fixed: user preference, merchant pattern, batched
// AI classification, sign-gated rules, keyword scoring, then the
// terminal fallback. Categories outside the supplied taxonomy are never
// emitted.
package categorize

import (
	"context"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/rs/zerolog"

	"github.com/amoreno/finparse/internal/domain"
	"github.com/amoreno/finparse/internal/normalize"
)

// BatchClassifier is the AI tier: one call classifies a whole batch of
// descriptions. A nil classifier skips the AI step entirely.
type BatchClassifier interface {
	CategorizeBatch(ctx context.Context, descriptions, categories []string) (map[int]string, error)
}

// Engine resolves categories against an immutable taxonomy.
type Engine struct {
	classifier BatchClassifier
	log        zerolog.Logger
}

// NewEngine builds an engine. classifier may be nil.
func NewEngine(classifier BatchClassifier, log zerolog.Logger) *Engine {
	return &Engine{classifier: classifier, log: log}
}

// Result carries the categorized rows plus the AI error, if the batch
// call failed. The heuristic tiers still ran in that case.
type Result struct {
	Rows    []domain.TransactionRow
	AIError string
}

// Categorize fills the Category field of every row. categories defaults
// to DefaultCategories when empty; prefs maps folded description keys to
// category names.
func (e *Engine) Categorize(ctx context.Context, rows []domain.TransactionRow, categories []string, prefs map[string]string) Result {
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	out := make([]domain.TransactionRow, len(rows))
	copy(out, rows)

	// Tier 1-2 plus carried-over categories. Rows nothing claims go into
	// the AI batch.
	var pendingIdx []int
	var pendingDesc []string
	for i := range out {
		key := normalize.FoldKey(out[i].Description)

		if cat, ok := prefs[key]; ok {
			if valid := ValidateCategory(cat, categories); valid != "" {
				out[i].Category = valid
				continue
			}
		}
		if valid := ValidateCategory(out[i].Category, categories); valid != "" {
			out[i].Category = valid
			continue
		}
		if cat := matchMerchantPattern(key); cat != "" {
			if valid := ValidateCategory(cat, categories); valid != "" {
				out[i].Category = valid
				continue
			}
		}
		out[i].Category = ""
		pendingIdx = append(pendingIdx, i)
		pendingDesc = append(pendingDesc, out[i].Description)
	}

	// Tier 3: one batched model call for everything still open.
	var aiError string
	if e.classifier != nil && len(pendingIdx) > 0 {
		classified, err := e.classifier.CategorizeBatch(ctx, pendingDesc, categories)
		if err != nil {
			aiError = err.Error()
			e.log.Warn().Err(err).Int("pending", len(pendingIdx)).Msg("batch classification failed, using heuristics")
		} else {
			for batchIdx, cat := range classified {
				if valid := ValidateCategory(cat, categories); valid != "" {
					out[pendingIdx[batchIdx]].Category = valid
				}
			}
		}
	}

	// Tier 4-6 for whatever remains.
	for _, i := range pendingIdx {
		if out[i].Category != "" {
			continue
		}
		key := normalize.FoldKey(out[i].Description)
		amount := out[i].Amount

		if cat := matchSignRule(key, amount); cat != "" {
			if valid := ValidateCategory(cat, categories); valid != "" {
				out[i].Category = valid
				continue
			}
		}
		if cat := scoreKeywords(key, amount, categories); cat != "" {
			out[i].Category = cat
			continue
		}
		out[i].Category = fallbackCategory(categories)
	}

	return Result{Rows: out, AIError: aiError}
}

func matchMerchantPattern(key string) string {
	best, bestPriority := "", -1
	for _, p := range merchantPatterns {
		if p.priority > bestPriority && p.re.MatchString(key) {
			best, bestPriority = p.category, p.priority
		}
	}
	return best
}

func matchSignRule(key string, amount float64) string {
	for _, rule := range signRules {
		if !rule.sign.accepts(amount) {
			continue
		}
		for _, pat := range rule.patterns {
			if strings.Contains(key, pat) {
				return rule.category
			}
		}
	}
	return ""
}

// scoreKeywords runs the last heuristic: substring hits against each
// category's keyword list, long keywords counting double. Taxonomy order
// breaks ties.
func scoreKeywords(key string, amount float64, categories []string) string {
	best, bestScore := "", 0
	for _, cat := range categories {
		entry, ok := categoryKeywords[cat]
		if !ok || !entry.sign.accepts(amount) {
			continue
		}
		score := 0
		for _, kw := range entry.keywords {
			if strings.Contains(key, kw) {
				if len(kw) >= 6 {
					score += 2
				} else {
					score++
				}
			}
		}
		if score > bestScore {
			best, bestScore = cat, score
		}
	}
	return best
}

func fallbackCategory(categories []string) string {
	for _, c := range categories {
		if c == "Other" {
			return c
		}
	}
	return categories[len(categories)-1]
}

// ValidateCategory maps a candidate category name onto the taxonomy:
// exact folded match first, then the alias table, then a small
// edit-distance match for model typos. Returns "" when nothing fits.
func ValidateCategory(candidate string, categories []string) string {
	key := normalize.FoldKey(candidate)
	if key == "" {
		return ""
	}

	for _, c := range categories {
		if normalize.FoldKey(c) == key {
			return c
		}
	}
	if target, ok := categoryAliases[key]; ok {
		for _, c := range categories {
			if c == target {
				return c
			}
		}
	}
	for _, c := range categories {
		folded := normalize.FoldKey(c)
		if len(key) >= 4 && levenshtein.ComputeDistance(key, folded) <= 2 {
			return c
		}
	}
	return ""
}
