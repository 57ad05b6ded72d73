/*
builder.go - From template + raw event amounts to computed statements

PURPOSE:
  The builder is the composition point of the engine: it loads a template,
  fetches raw event amounts from the external source, populates leaf rows,
  and hands the tree to the calculator (quarterly statements) or resolves
  each line through the mapper (budget-vs-actual statements).

TWO STATEMENT SHAPES:
  Quarterly:         one column per quarter, execution data only, computed
                     by the hierarchical totals calculator.
  Budget-vs-actual:  two columns drawing from different event
                     vocabularies, resolved by the custom event mapper,
                     aggregated by SUM/DIFF and total-line formulas.

QUARTER ADDRESSING:
  Quarterly data is fetched as four period ids derived from the statement
  period: "<periodID>-Q1" .. "<periodID>-Q4". The amount source must
  return an empty map, never an error, for periods with no activity.

SEE ALSO:
  - calculator.go: Quarterly totals
  - mapper.go: Budget-vs-actual resolution
  - formula.go: Total-line formula evaluation
*/
package statement

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// EVENT AMOUNT SOURCE - External collaborator
// =============================================================================

// AmountKind selects which recording of an event amount to read.
type AmountKind string

const (
	KindPlanning  AmountKind = "planning"  // budgeted figures
	KindExecution AmountKind = "execution" // actual figures
)

// EventAmountSource supplies eventCode -> amount maps scoped to a
// facility and period. Implementations must return an empty or partial
// map - never an error - for codes with no recorded activity.
type EventAmountSource interface {
	GetAmounts(ctx context.Context, kind AmountKind, facilityID, periodID string) (map[string]decimal.Decimal, error)
}

// QuarterPeriodIDs derives the four quarter period ids for a statement
// period, e.g. "2025" -> "2025-Q1" .. "2025-Q4".
func QuarterPeriodIDs(periodID string) [4]string {
	var ids [4]string
	for i := range ids {
		ids[i] = fmt.Sprintf("%s-Q%d", periodID, i+1)
	}
	return ids
}

// =============================================================================
// BUILDER
// =============================================================================

// Builder assembles computed statements from templates and raw amounts.
type Builder struct {
	Templates TemplateStore
	Amounts   EventAmountSource
	Calc      Calculator
}

// Result is a computed statement with its ride-along warnings.
type Result struct {
	Rows     []*FinancialRow
	Warnings []Warning
}

// BudgetActualResult is a computed budget-vs-actual statement.
type BudgetActualResult struct {
	Rows     []*BudgetActualRow
	Warnings []Warning
}

// =============================================================================
// QUARTERLY PATH
// =============================================================================

// BuildQuarterly computes a quarterly statement for one facility/period
// from live execution amounts.
func (b *Builder) BuildQuarterly(ctx context.Context, statementCode, facilityID, periodID string) (*Result, error) {
	lines, err := b.Templates.GetTemplate(ctx, statementCode)
	if err != nil {
		return nil, err
	}
	nodes, warnings := BuildHierarchy(lines)

	var quarters [4]map[string]decimal.Decimal
	for i, qid := range QuarterPeriodIDs(periodID) {
		amounts, err := b.Amounts.GetAmounts(ctx, KindExecution, facilityID, qid)
		if err != nil {
			return nil, fmt.Errorf("fetch execution amounts for %s: %w", qid, err)
		}
		quarters[i] = amounts
	}

	rows := make([]*FinancialRow, len(nodes))
	for i, n := range nodes {
		row, w := buildQuarterlyRow(n, quarters)
		rows[i] = row
		warnings = append(warnings, w...)
	}

	computed, calcWarnings := b.Calc.Compute(rows)
	warnings = append(warnings, calcWarnings...)
	return &Result{Rows: computed, Warnings: warnings}, nil
}

func buildQuarterlyRow(node *TemplateNode, quarters [4]map[string]decimal.Decimal) (*FinancialRow, []Warning) {
	var warnings []Warning

	row := &FinancialRow{
		ID:         node.Line.LineCode,
		Title:      node.Line.Title,
		Nature:     node.Line.Nature,
		IsCategory: len(node.Children) > 0,
	}

	// Total lines are never populated from events; their amounts come from
	// child sums and the cross-line pass.
	if !node.Line.IsTotalLine && len(node.Children) == 0 {
		for _, code := range node.Line.EventCodes {
			seen := false
			for i := range quarters {
				if amount, ok := quarters[i][code]; ok {
					row.Quarters[i] = row.Quarters[i].Add(amount)
					seen = true
				}
			}
			if !seen {
				warnings = append(warnings, Warning{
					Code:    "missing_event",
					Line:    node.Line.LineCode,
					Message: fmt.Sprintf("event %q has no recorded amounts in any quarter; using 0", code),
				})
			}
		}
	}

	for _, child := range node.Children {
		childRow, w := buildQuarterlyRow(child, quarters)
		row.Children = append(row.Children, childRow)
		warnings = append(warnings, w...)
	}
	return row, warnings
}

// =============================================================================
// BUDGET VS ACTUAL PATH
// =============================================================================

// BuildBudgetActual computes a budget-vs-actual statement: the budget
// column from planning amounts, the actual column from execution amounts,
// resolved per line through the custom event mapper.
func (b *Builder) BuildBudgetActual(ctx context.Context, statementCode, facilityID, periodID string) (*BudgetActualResult, error) {
	lines, err := b.Templates.GetTemplate(ctx, statementCode)
	if err != nil {
		return nil, err
	}
	mappings, err := b.Templates.GetMappings(ctx, statementCode)
	if err != nil {
		return nil, err
	}
	mapper := NewMapper(mappings)

	planning, err := b.Amounts.GetAmounts(ctx, KindPlanning, facilityID, periodID)
	if err != nil {
		return nil, fmt.Errorf("fetch planning amounts: %w", err)
	}
	execution, err := b.Amounts.GetAmounts(ctx, KindExecution, facilityID, periodID)
	if err != nil {
		return nil, fmt.Errorf("fetch execution amounts: %w", err)
	}

	nodes, warnings := BuildHierarchy(lines)

	rows := make([]*BudgetActualRow, len(nodes))
	for i, n := range nodes {
		row, w := buildBudgetActualRow(n, mapper, planning, execution)
		rows[i] = row
		warnings = append(warnings, w...)
	}

	// Formula lines are evaluated last, against the amounts of every
	// already-computed line. Unresolved operands skip the line.
	warnings = append(warnings, evaluateFormulaLines(rows, nodes)...)

	for _, r := range rows {
		setVariance(r)
	}
	return &BudgetActualResult{Rows: rows, Warnings: warnings}, nil
}

func buildBudgetActualRow(node *TemplateNode, mapper *Mapper, planning, execution map[string]decimal.Decimal) (*BudgetActualRow, []Warning) {
	var warnings []Warning

	row := &BudgetActualRow{
		LineCode:    node.Line.LineCode,
		Title:       node.Line.Title,
		IsTotalLine: node.Line.IsTotalLine,
		Note:        node.Line.Metadata["note"],
	}

	for _, child := range node.Children {
		childRow, w := buildBudgetActualRow(child, mapper, planning, execution)
		row.Children = append(row.Children, childRow)
		warnings = append(warnings, w...)
	}

	switch {
	case node.Line.IsTotalLine:
		// Deferred to evaluateFormulaLines (or left at child sums below
		// when the total has no formula).
		if node.Line.CalculationFormula == "" && len(row.Children) > 0 {
			aggregateChildren(row, node.Line.Aggregation())
		}
	case len(row.Children) > 0:
		aggregateChildren(row, node.Line.Aggregation())
	default:
		amounts, w := ApplyMappingWithWarnings(
			mapper.Resolve(node.Line.LineCode, node.Line.EventCodes),
			planning, execution,
		)
		row.BudgetAmount = amounts.BudgetAmount
		row.ActualAmount = amounts.ActualAmount
		warnings = append(warnings, w...)
	}

	return row, warnings
}

// aggregateChildren combines child amounts into the parent. SUM adds all
// children; DIFF subtracts the remaining children from the first.
func aggregateChildren(row *BudgetActualRow, method AggregationMethod) {
	if len(row.Children) == 0 {
		return
	}
	budget := row.Children[0].BudgetAmount
	actual := row.Children[0].ActualAmount
	for _, child := range row.Children[1:] {
		if method == AggregateDiff {
			budget = budget.Sub(child.BudgetAmount)
			actual = actual.Sub(child.ActualAmount)
		} else {
			budget = budget.Add(child.BudgetAmount)
			actual = actual.Add(child.ActualAmount)
		}
	}
	row.BudgetAmount = budget
	row.ActualAmount = actual
}

func evaluateFormulaLines(rows []*BudgetActualRow, nodes []*TemplateNode) []Warning {
	var warnings []Warning

	budgetVars := make(map[string]decimal.Decimal)
	actualVars := make(map[string]decimal.Decimal)
	var collect func(r *BudgetActualRow)
	collect = func(r *BudgetActualRow) {
		budgetVars[r.LineCode] = r.BudgetAmount
		actualVars[r.LineCode] = r.ActualAmount
		for _, c := range r.Children {
			collect(c)
		}
	}
	for _, r := range rows {
		collect(r)
	}

	var walk func(node *TemplateNode)
	walk = func(node *TemplateNode) {
		if node.Line.CalculationFormula != "" {
			if w := applyFormula(rows, node.Line, budgetVars, actualVars); w != nil {
				warnings = append(warnings, *w)
			}
		}
		for _, c := range node.Children {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return warnings
}

func applyFormula(rows []*BudgetActualRow, line TemplateLine, budgetVars, actualVars map[string]decimal.Decimal) *Warning {
	formula, err := ParseFormula(line.CalculationFormula)
	if err != nil {
		return &Warning{Code: "formula_skipped", Line: line.LineCode, Message: err.Error()}
	}

	budget, berr := formula.Evaluate(budgetVars)
	actual, aerr := formula.Evaluate(actualVars)
	if berr != nil || aerr != nil {
		err := berr
		if err == nil {
			err = aerr
		}
		return &Warning{Code: "formula_skipped", Line: line.LineCode, Message: err.Error()}
	}

	target := findBudgetActualRow(rows, line.LineCode)
	if target == nil {
		return nil
	}
	target.BudgetAmount = budget
	target.ActualAmount = actual
	budgetVars[line.LineCode] = budget
	actualVars[line.LineCode] = actual
	return nil
}

func findBudgetActualRow(rows []*BudgetActualRow, lineCode string) *BudgetActualRow {
	for _, r := range rows {
		if r.LineCode == lineCode {
			return r
		}
		if found := findBudgetActualRow(r.Children, lineCode); found != nil {
			return found
		}
	}
	return nil
}

func setVariance(row *BudgetActualRow) {
	row.Variance = row.BudgetAmount.Sub(row.ActualAmount)
	for _, c := range row.Children {
		setVariance(c)
	}
}
