/*
presets.go - Pre-built statement template definitions

PURPOSE:
  Ready-to-use template configurations for the standardized statements
  facilities report on. These are starting points: real deployments
  adjust line sets, event vocabularies, and note numbers.

AVAILABLE PRESETS:
  QuarterlyStatementJSON:    The seven-section quarterly statement
                             (receipts through closing balance)
  BudgetVsActualJSON:        Two-column budget execution statement with
                             explicit planning/actual event mappings

EXAMPLE:
  f := factory.NewTemplateFactory()
  lines, mappings, warnings, err := f.ParseTemplate(factory.QuarterlyStatementJSON("QSTMT"))

SEE ALSO:
  - template.go: JSON schema and parsing
*/
package factory

import "fmt"

// QuarterlyStatementJSON returns the standard seven-section quarterly
// statement layout. Sections A-C are income-statement flows, D-F are
// balance-sheet stocks, and G (closing balance) mixes both.
func QuarterlyStatementJSON(statementCode string) string {
	return fmt.Sprintf(`{
  "statement_code": %q,
  "lines": [
    {"line_code": "A", "title": "Receipts", "level": 1, "display_order": 1, "nature": "flow"},
    {"line_code": "A01", "title": "Government Grants", "parent_line_code": "A", "display_order": 1, "event_codes": ["GRANTS"]},
    {"line_code": "A02", "title": "Own Source Revenue", "parent_line_code": "A", "display_order": 2, "event_codes": ["OWN_REVENUE"]},
    {"line_code": "B", "title": "Expenditures", "level": 1, "display_order": 2, "nature": "flow"},
    {"line_code": "B01", "title": "Compensation of Employees", "parent_line_code": "B", "display_order": 1, "event_codes": ["COMPENSATION"]},
    {"line_code": "B02", "title": "Goods and Services", "parent_line_code": "B", "display_order": 2, "event_codes": ["GOODS_SERVICES"]},
    {"line_code": "B03", "title": "Communication Costs", "parent_line_code": "B", "display_order": 3, "event_codes": ["COMMUNICATION"]},
    {"line_code": "C", "title": "Surplus/Deficit of the Period", "level": 1, "display_order": 3, "is_total_line": true, "calculation_formula": "A - B", "nature": "flow"},
    {"line_code": "D", "title": "Financial Assets", "level": 1, "display_order": 4, "nature": "stock"},
    {"line_code": "D01", "title": "Cash and Cash Equivalents", "parent_line_code": "D", "display_order": 1, "event_codes": ["CASH"], "nature": "stock"},
    {"line_code": "D02", "title": "Receivables", "parent_line_code": "D", "display_order": 2, "event_codes": ["RECEIVABLES"], "nature": "stock"},
    {"line_code": "E", "title": "Financial Liabilities", "level": 1, "display_order": 5, "nature": "stock"},
    {"line_code": "E01", "title": "Payables", "parent_line_code": "E", "display_order": 1, "event_codes": ["PAYABLES"], "nature": "stock"},
    {"line_code": "F", "title": "Net Financial Assets", "level": 1, "display_order": 6, "is_total_line": true, "calculation_formula": "D - E", "nature": "stock"},
    {"line_code": "G", "title": "Closing Balance", "level": 1, "display_order": 7, "is_total_line": true, "calculation_formula": "G01 + G02 + G03"},
    {"line_code": "G01", "title": "Accumulated Surplus/Deficit", "parent_line_code": "G", "display_order": 1, "event_codes": ["ACCUMULATED_SURPLUS"]},
    {"line_code": "G02", "title": "Prior Year Adjustment", "parent_line_code": "G", "display_order": 2, "event_codes": ["PRIOR_YEAR_ADJ"]},
    {"line_code": "G03", "title": "Surplus/Deficit of the Period", "parent_line_code": "G", "display_order": 3, "event_codes": []}
  ]
}`, statementCode)
}

// BudgetVsActualJSON returns a two-column budget execution statement.
// Lines with explicit mappings draw their budget column from a planning
// vocabulary that differs from the execution one; the remaining lines
// fall back to the "_PLANNING" suffix convention.
func BudgetVsActualJSON(statementCode string) string {
	return fmt.Sprintf(`{
  "statement_code": %q,
  "lines": [
    {"line_code": "R", "title": "Total Receipts", "level": 1, "display_order": 1, "is_total_line": true, "calculation_formula": "R01 + R02"},
    {"line_code": "R01", "title": "Government Grants", "parent_line_code": "R", "display_order": 1, "event_codes": ["GRANTS"], "metadata": {"note": "1"}},
    {"line_code": "R02", "title": "Own Source Revenue", "parent_line_code": "R", "display_order": 2, "event_codes": ["OWN_REVENUE"], "metadata": {"note": "2"}},
    {"line_code": "X", "title": "Total Expenditures", "level": 1, "display_order": 2, "is_total_line": true, "calculation_formula": "X01 + X02"},
    {"line_code": "X01", "title": "Compensation of Employees", "parent_line_code": "X", "display_order": 1, "event_codes": ["COMPENSATION"], "metadata": {"note": "3"}},
    {"line_code": "X02", "title": "Goods and Services", "parent_line_code": "X", "display_order": 2, "event_codes": ["GOODS_SERVICES"], "metadata": {"note": "4"}},
    {"line_code": "S", "title": "Surplus/Deficit", "level": 1, "display_order": 3, "is_total_line": true, "calculation_formula": "R - X"}
  ],
  "mappings": [
    {"line_code": "R01", "budget_events": ["GRANTS_APPROPRIATION"], "actual_events": ["GRANTS"]},
    {"line_code": "X01", "budget_events": ["WAGE_BILL_PLANNING"], "actual_events": ["COMPENSATION", "ALLOWANCES"]}
  ]
}`, statementCode)
}
