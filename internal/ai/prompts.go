package ai

import (
	"fmt"
	"strings"
)

// maxSourceChars caps the document text sent to the model. Statements
// beyond this are truncated; the model sees a marker so it does not
// invent a trailing balance.
const maxSourceChars = 50000

const truncationMarker = "\n[...document truncated...]"

func truncateSource(text string) string {
	if len(text) <= maxSourceChars {
		return text
	}
	return text[:maxSourceChars] + truncationMarker
}

// amountDateRules is shared by every extraction prompt so the model
// normalizes the same way the deterministic parsers do.
const amountDateRules = `Normalization rules:
- "date" must be ISO format "YYYY-MM-DD". If a date cannot be determined, use "".
- Amounts use a dot as decimal separator. European inputs like "1.234,56" mean 1234.56; US inputs like "1,234.56" also mean 1234.56. A comma followed by exactly two digits at the end is a decimal comma.
- "amount" is signed: negative for money out, positive for money in.
- If an amount cannot be determined, use 0.`

func csvSystemPrompt(categories []string) string {
	return `You are a bank-export parser. The user content is the raw text of a CSV or spreadsheet export that a deterministic parser could not handle.

Extract every transaction row. Output STRICT JSON only, no comments, no Markdown fences.

Output shape:
{"transactions":[{"date":"YYYY-MM-DD","description":"...","amount":-12.34,"balance":null,"category":""}]}

- "balance" is the running balance after the transaction, or null when absent.
` + amountDateRules + `
` + categoryClause(categories)
}

func statementSystemPrompt(categories []string) string {
	return `You are a bank-statement parser. The user content is text extracted from a PDF bank statement; column alignment may be lost.

Extract every transaction. Output STRICT JSON only, no comments, no Markdown fences.

Output shape:
{"transactions":[{"date":"YYYY-MM-DD","description":"...","amount":-12.34,"balance":null,"category":""}]}

- Separate "paid out" / "paid in" columns must be converted to a single signed "amount".
- Ignore page headers, footers, page numbers and marketing text.
` + amountDateRules + `
` + categoryClause(categories)
}

const receiptSystemPrompt = `You are a retail receipt parser. The user content is the text of a shop receipt, possibly from OCR with misread characters.

Extract the receipt. Output STRICT JSON only, no comments, no Markdown fences.

Output shape:
{"transactions":[], "store_name":"...", "receipt_date":"YYYY-MM-DD", "receipt_time":"HH:MM", "currency":"EUR", "total_amount":12.34, "taxes_total":1.23, "items":[{"description":"...","quantity":1,"price_per_unit":1.50,"total_price":1.50}], "confidence":0.9, "suggestions":[]}

- "taxes_total" is the summed VAT (cuota) column, or null when absent.
- "confidence" is your 0..1 estimate that the extraction is complete and consistent.
- "suggestions" lists concrete problems you noticed (unreadable lines, missing total).
- The sum of item totals should match "total_amount"; prefer re-reading a line over inventing an item.
` + amountDateRules

func categorizeSystemPrompt(categories []string) string {
	return fmt.Sprintf(`You are a transaction classifier for personal finance data, mostly Spanish bank descriptions.

The user content is a numbered list of transaction descriptions. Classify each into exactly one of these categories:
%s

Output STRICT JSON only, no comments, no Markdown fences:
{"map":[{"index":0,"category":"Groceries"}]}

- "index" refers to the number in the input list.
- Use "Other" only when no category plausibly applies.
- Spanish hints: NOMINA is salary income, BIZUM is a peer transfer, RECIBO is a direct-debit bill.`,
		strings.Join(categories, ", "))
}

func fixesSystemPrompt() string {
	return `You are a data repair assistant. The user content is a JSON array of transaction rows where some fields failed to parse: empty "date" or zero "amount".

Repair only what the surrounding context supports. Output STRICT JSON only, no Markdown fences:
{"fixes":[{"index":0,"date":"YYYY-MM-DD","amount":-12.34,"description":"..."}]}

- Include an entry only for rows you can actually improve; omit the rest.
- Include only the fields you are fixing for that row.
` + amountDateRules
}

func categoryClause(categories []string) string {
	if len(categories) == 0 {
		return `- Leave "category" as "" for every row.`
	}
	return fmt.Sprintf(`- "category" must be one of: %s. Leave it "" when unsure.`,
		strings.Join(categories, ", "))
}
