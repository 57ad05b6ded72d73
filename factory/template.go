/*
Package factory provides JSON to Go statement template conversion.

PURPOSE:
  Converts JSON template definitions into statement.TemplateLine and
  statement.BudgetActualMapping records. This enables statement authoring
  without code changes - finance administrators define templates in JSON,
  and the factory creates the proper Go structs.

JSON SCHEMA:
  {
    "statement_code": "BUDGET_EXECUTION",
    "lines": [
      {
        "line_code": "A",
        "title": "Receipts",
        "level": 1,
        "display_order": 1,
        "is_total_line": false,
        "event_codes": [],
        "nature": "flow"
      },
      {
        "line_code": "A01",
        "title": "Compensation of Employees",
        "parent_line_code": "A",
        "level": 2,
        "display_order": 1,
        "event_codes": ["COMPENSATION"]
      }
    ],
    "mappings": [
      {
        "line_code": "A01",
        "budget_events": ["COMPENSATION_PLANNING"],
        "actual_events": ["COMPENSATION"]
      }
    ]
  }

KEY FEATURES:
  - Validates the line batch (duplicate codes, unresolved parents,
    formula syntax) before returning it
  - Normalizes event code lists to non-nil empty slices
  - Defaults aggregation to SUM and level to parent level + 1

SEE ALSO:
  - statement/template.go: Validation and hierarchy rules
  - presets.go: Ready-to-use statement definitions
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/warp/statement-engine/statement"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// TemplateJSON is the JSON representation of a statement template.
type TemplateJSON struct {
	StatementCode string        `json:"statement_code"`
	Lines         []LineJSON    `json:"lines"`
	Mappings      []MappingJSON `json:"mappings,omitempty"`
}

// LineJSON is one row definition.
type LineJSON struct {
	LineCode       string            `json:"line_code"`
	Title          string            `json:"title"`
	ParentLineCode string            `json:"parent_line_code,omitempty"`
	Level          int               `json:"level,omitempty"`
	DisplayOrder   int               `json:"display_order"`
	EventCodes     []string          `json:"event_codes,omitempty"`
	IsTotalLine    bool              `json:"is_total_line,omitempty"`
	IsSubtotalLine bool              `json:"is_subtotal_line,omitempty"`
	Formula        string            `json:"calculation_formula,omitempty"`
	Aggregation    string            `json:"aggregation_method,omitempty"` // SUM (default) or DIFF
	Nature         string            `json:"nature,omitempty"`             // flow, stock, or omitted
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// MappingJSON declares budget-vs-actual event mapping for one line.
type MappingJSON struct {
	LineCode     string   `json:"line_code"`
	BudgetEvents []string `json:"budget_events"`
	ActualEvents []string `json:"actual_events"`
}

// =============================================================================
// TEMPLATE FACTORY
// =============================================================================

// TemplateFactory converts JSON templates to engine records.
type TemplateFactory struct{}

func NewTemplateFactory() *TemplateFactory {
	return &TemplateFactory{}
}

// ParseTemplate parses a JSON string into validated template lines and
// mappings. Validation warnings ride along; fatal violations reject the
// whole template.
func (f *TemplateFactory) ParseTemplate(jsonStr string) ([]statement.TemplateLine, []statement.BudgetActualMapping, []statement.Warning, error) {
	var tj TemplateJSON
	if err := json.Unmarshal([]byte(jsonStr), &tj); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to parse template JSON: %w", err)
	}
	return f.FromJSON(tj)
}

// FromJSON converts TemplateJSON to engine records.
func (f *TemplateFactory) FromJSON(tj TemplateJSON) ([]statement.TemplateLine, []statement.BudgetActualMapping, []statement.Warning, error) {
	if tj.StatementCode == "" {
		return nil, nil, nil, fmt.Errorf("statement_code is required")
	}

	levels := make(map[string]int, len(tj.Lines))
	lines := make([]statement.TemplateLine, 0, len(tj.Lines))
	for _, lj := range tj.Lines {
		line := statement.TemplateLine{
			StatementCode:      tj.StatementCode,
			LineCode:           lj.LineCode,
			Title:              lj.Title,
			ParentLineCode:     lj.ParentLineCode,
			Level:              lj.Level,
			DisplayOrder:       lj.DisplayOrder,
			EventCodes:         lj.EventCodes,
			IsTotalLine:        lj.IsTotalLine,
			IsSubtotalLine:     lj.IsSubtotalLine,
			CalculationFormula: lj.Formula,
			AggregationMethod:  parseAggregation(lj.Aggregation),
			Nature:             parseNature(lj.Nature),
			Metadata:           lj.Metadata,
		}
		if line.EventCodes == nil {
			line.EventCodes = []string{}
		}
		if line.Level == 0 {
			// Default: one below the parent, roots at level 1. Lines are
			// expected in document order, parents first.
			line.Level = levels[lj.ParentLineCode] + 1
		}
		levels[line.LineCode] = line.Level
		lines = append(lines, line)
	}

	warnings, err := statement.ValidateLines(lines)
	if err != nil {
		return nil, nil, warnings, err
	}

	mappings := make([]statement.BudgetActualMapping, 0, len(tj.Mappings))
	for _, mj := range tj.Mappings {
		mapping := statement.BudgetActualMapping{
			LineCode:     mj.LineCode,
			BudgetEvents: mj.BudgetEvents,
			ActualEvents: mj.ActualEvents,
		}
		if mapping.BudgetEvents == nil {
			mapping.BudgetEvents = []string{}
		}
		if mapping.ActualEvents == nil {
			mapping.ActualEvents = []string{}
		}
		mappings = append(mappings, mapping)
	}

	return lines, mappings, warnings, nil
}

func parseAggregation(s string) statement.AggregationMethod {
	if s == string(statement.AggregateDiff) {
		return statement.AggregateDiff
	}
	return statement.AggregateSum
}

func parseNature(s string) statement.AccountingNature {
	switch s {
	case string(statement.NatureFlow):
		return statement.NatureFlow
	case string(statement.NatureStock):
		return statement.NatureStock
	}
	return statement.NatureUnspecified
}
