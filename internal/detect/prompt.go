package detect

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/R204570/LexAudit-Flow/internal/model"
)

// SystemPrompt instructs the oracle to compare baseline rates against a
// document and answer with strict JSON only.
const SystemPrompt = `You are a Tax Auditor. I will provide the current database values and the text of a new document.
If the tax percentage for one of the listed items has changed, return ONLY valid JSON:
{"change_detected": true, "item": "<item name>", "new_val": 12.0, "quote": "<exact text copied verbatim from the document>"}
If nothing changed, return ONLY:
{"change_detected": false}
The quote must be an exact excerpt of the document, not a paraphrase.
Do not include any other text. Return ONLY the JSON.`

// Baseline renders the item set as "- name: rate%" lines.
func Baseline(items []model.Item) string {
	var b strings.Builder
	for _, it := range items {
		b.WriteString("- ")
		b.WriteString(it.Name)
		b.WriteString(": ")
		b.WriteString(strconv.FormatFloat(it.Rate, 'f', -1, 64))
		b.WriteString("%\n")
	}
	return b.String()
}

// UserPrompt builds the per-document prompt.
func UserPrompt(items []model.Item, text string) string {
	return "Current Database Values:\n" + Baseline(items) +
		"\nNew Document Text:\n" + text +
		"\n\nAnalyze and detect any tax percentage changes."
}

// Truncate cuts s to at most max runes. A non-positive max disables it.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
