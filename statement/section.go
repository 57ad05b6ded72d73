/*
section.go - Flow vs stock classification of statement rows

PURPOSE:
  Cumulative balances depend on what kind of section a row lives in.
  Income-statement sections are flows: the year figure is the sum of the
  four quarters. Balance-sheet sections are stocks: the year figure is a
  point-in-time balance, taken as the latest non-zero quarter.

AUTHORITY ORDER:
  1. An authored AccountingNature on the row wins outright.
  2. Otherwise the section prefix of the row id decides (A/B/C flow,
     D/E/F stock).
  3. The closing-balance section (G) mixes flow and stock children, so
     each row there is classified individually by keyword match.
  4. Anything unknown defaults to flow - summing is the conservative
     failure mode; truncating to a single quarter silently drops data.

  The keyword heuristic is fragile by nature (a line titled "Asset
  Disposal Income" matches both lists), which is why authored natures take
  precedence and SuggestNature exists for migration tooling rather than
  runtime use.
*/
package statement

import "strings"

// Section prefixes of the standardized statement layout. Rows are keyed
// by line id: receipts A*, expenditures B*, surplus/deficit C*, financial
// assets D*, liabilities E*, net financial assets F*, closing balance G*.
var (
	flowSectionPrefixes  = map[byte]bool{'A': true, 'B': true, 'C': true}
	stockSectionPrefixes = map[byte]bool{'D': true, 'E': true, 'F': true}
	mixedSectionPrefixes = map[byte]bool{'G': true}
)

// Keyword lists for rows inside the mixed closing-balance section.
var (
	flowKeywords = []string{
		"accumulated", "surplus", "deficit", "period", "revenue",
		"expense", "income", "expenditure", "receipt", "flow",
	}
	stockKeywords = []string{
		"opening", "asset", "liability", "position", "stock",
	}
)

// classifyRow resolves the effective nature of a computed row.
func classifyRow(row *FinancialRow) AccountingNature {
	if row.Nature == NatureFlow || row.Nature == NatureStock {
		return row.Nature
	}
	if row.ID == "" {
		return NatureFlow
	}

	prefix := strings.ToUpper(row.ID[:1])[0]
	switch {
	case flowSectionPrefixes[prefix]:
		return NatureFlow
	case stockSectionPrefixes[prefix]:
		return NatureStock
	case mixedSectionPrefixes[prefix]:
		return keywordNature(row.ID + " " + row.Title)
	}
	return NatureFlow
}

// keywordNature classifies a single row by keyword match. Matching both
// lists or neither defaults to flow.
func keywordNature(text string) AccountingNature {
	lower := strings.ToLower(text)
	flow := matchesAny(lower, flowKeywords)
	stock := matchesAny(lower, stockKeywords)
	if stock && !flow {
		return NatureStock
	}
	return NatureFlow
}

func matchesAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// SuggestNature runs the keyword heuristic over a line's id and title.
// It exists for authoring and migration tools that want a starting value
// for TemplateLine.Nature; runtime classification prefers authored
// natures and section prefixes.
func SuggestNature(id, title string) AccountingNature {
	prefix := byte(0)
	if id != "" {
		prefix = strings.ToUpper(id[:1])[0]
	}
	switch {
	case flowSectionPrefixes[prefix]:
		return NatureFlow
	case stockSectionPrefixes[prefix]:
		return NatureStock
	}
	return keywordNature(id + " " + title)
}
