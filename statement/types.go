/*
Package statement provides the core statement computation engine.

PURPOSE:
  This package contains the types and algorithms that turn raw per-period
  event amounts into standardized hierarchical financial statements. It
  knows nothing about HTTP, databases, or report approval - it computes.

KEY CONCEPTS IN THIS FILE (types.go):
  - TemplateLine: One declarative row definition in a statement template
  - BudgetActualMapping: Which event codes feed a line's budget vs actual column
  - FinancialRow: A computed row in the quarterly statement tree
  - Quarters: Four per-quarter decimal amounts (Q1..Q4)

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, no floats in computation paths
  2. Purity: the calculator returns new trees, input rows are never mutated
  3. Errors as values: per-line issues are collected as warnings, one bad
     line never aborts the rest of the statement
  4. Explicit emptiness: event code lists are non-nil; an empty slice means
     "no events", there is no nil-vs-empty ambiguity

USAGE:
  lines, _ := store.GetTemplate(ctx, "BUDGET_EXECUTION")
  tree := statement.BuildHierarchy(lines)

SEE ALSO:
  - template.go: Template validation and hierarchy building
  - mapper.go: Budget-vs-actual event mapping
  - calculator.go: Hierarchical totals and cross-line formulas
*/
package statement

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AGGREGATION & NATURE
// =============================================================================

// AggregationMethod controls how a parent line combines its children in
// budget-vs-actual statements.
type AggregationMethod string

const (
	AggregateSum  AggregationMethod = "SUM"  // default
	AggregateDiff AggregationMethod = "DIFF" // first child minus the rest
)

// AccountingNature says whether a line behaves like an income-statement
// flow (period value = sum of quarters) or a balance-sheet stock (period
// value = latest non-zero quarter). Empty means "not authored": the
// calculator falls back to section classification (see section.go).
type AccountingNature string

const (
	NatureFlow        AccountingNature = "flow"
	NatureStock       AccountingNature = "stock"
	NatureUnspecified AccountingNature = ""
)

// =============================================================================
// TEMPLATE LINE - Declarative row definition
// =============================================================================

// TemplateLine is one row definition in a statement template. Templates are
// plain structured records: no behavior, safe to persist and ship around.
type TemplateLine struct {
	StatementCode  string
	LineCode       string // unique within StatementCode
	Title          string
	ParentLineCode string // empty = root line
	Level          int    // >= 1, strictly greater than the parent's level
	DisplayOrder   int    // sort key within a sibling group

	// EventCodes are the raw event identifiers that feed this line.
	// Always non-nil; empty for header and total lines.
	EventCodes []string

	IsTotalLine    bool
	IsSubtotalLine bool

	// CalculationFormula is an arithmetic expression over other line codes,
	// e.g. "A01 - A02". Evaluated by the formula evaluator (formula.go).
	CalculationFormula string

	AggregationMethod AggregationMethod
	Nature            AccountingNature

	// Metadata carries free-form tags. Known keys: "columnType" (used by
	// carry-forward statements) and "note" (statement note reference).
	Metadata map[string]string
}

// Aggregation returns the effective aggregation method (SUM by default).
func (l TemplateLine) Aggregation() AggregationMethod {
	if l.AggregationMethod == AggregateDiff {
		return AggregateDiff
	}
	return AggregateSum
}

// =============================================================================
// BUDGET VS ACTUAL MAPPING
// =============================================================================

// BudgetActualMapping declares, per line, which event codes are read from
// the planning (budget) source and which from the execution (actual)
// source. Absence of a mapping for a line means the standard 1:1 fallback
// applies (see Mapper.FallbackMapping).
type BudgetActualMapping struct {
	LineCode     string
	BudgetEvents []string // read from the planning source
	ActualEvents []string // read from the execution source
}

// =============================================================================
// QUARTERS - Per-quarter amounts
// =============================================================================

// Quarters holds the four per-quarter amounts of a row, Q1 at index 0.
type Quarters [4]decimal.Decimal

// Sum returns Q1+Q2+Q3+Q4.
func (q Quarters) Sum() decimal.Decimal {
	return q[0].Add(q[1]).Add(q[2]).Add(q[3])
}

// LatestNonZero scans Q4 -> Q1 and returns the first non-zero amount,
// or zero when all four quarters are zero. This is the stock rule: a
// balance persists across quarters, so summing would double-count.
func (q Quarters) LatestNonZero() decimal.Decimal {
	for i := 3; i >= 0; i-- {
		if !q[i].IsZero() {
			return q[i]
		}
	}
	return decimal.Zero
}

// Add returns the element-wise sum of two quarter sets.
func (q Quarters) Add(o Quarters) Quarters {
	var out Quarters
	for i := range q {
		out[i] = q[i].Add(o[i])
	}
	return out
}

// Sub returns the element-wise difference of two quarter sets.
func (q Quarters) Sub(o Quarters) Quarters {
	var out Quarters
	for i := range q {
		out[i] = q[i].Sub(o[i])
	}
	return out
}

// IsZero reports whether all four quarters are zero.
func (q Quarters) IsZero() bool {
	return q[0].IsZero() && q[1].IsZero() && q[2].IsZero() && q[3].IsZero()
}

// =============================================================================
// FINANCIAL ROW - Computed statement tree node
// =============================================================================

// TaxSplit carries the net/VAT decomposition of a tax-inclusive line.
// When present, parent aggregation uses Net instead of the gross quarters.
type TaxSplit struct {
	Net Quarters
	VAT Quarters
}

// FinancialRow is one node of the computed quarterly statement tree.
//
// CumulativeBalance is a pointer on purpose: nil distinguishes "not
// computed" from "computed as zero" for downstream display. The calculator
// leaves it nil whenever the computed balance is exactly zero.
type FinancialRow struct {
	ID    string
	Title string

	Quarters          Quarters
	CumulativeBalance *decimal.Decimal

	Children   []*FinancialRow
	IsCategory bool // quarters derived from children, not mapped directly

	// Tax is set only for tax-inclusive line items.
	Tax *TaxSplit

	Nature AccountingNature
}

// Clone returns a deep copy of the row and its subtree. The calculator
// works on clones so callers keep their input trees untouched.
func (r *FinancialRow) Clone() *FinancialRow {
	if r == nil {
		return nil
	}
	out := *r
	if r.CumulativeBalance != nil {
		cb := *r.CumulativeBalance
		out.CumulativeBalance = &cb
	}
	if r.Tax != nil {
		tax := *r.Tax
		out.Tax = &tax
	}
	out.Children = make([]*FinancialRow, len(r.Children))
	for i, c := range r.Children {
		out.Children[i] = c.Clone()
	}
	return &out
}

// Find returns the first row in the subtree whose ID matches, or nil.
func (r *FinancialRow) Find(id string) *FinancialRow {
	if r == nil {
		return nil
	}
	if r.ID == id {
		return r
	}
	for _, c := range r.Children {
		if found := c.Find(id); found != nil {
			return found
		}
	}
	return nil
}

// FindRow searches a forest of rows for the given ID.
func FindRow(rows []*FinancialRow, id string) *FinancialRow {
	for _, r := range rows {
		if found := r.Find(id); found != nil {
			return found
		}
	}
	return nil
}

// setCumulative stores v as the row's cumulative balance, mapping an exact
// zero to nil so "computed as zero" reads as unset downstream.
func (r *FinancialRow) setCumulative(v decimal.Decimal) {
	if v.IsZero() {
		r.CumulativeBalance = nil
		return
	}
	r.CumulativeBalance = &v
}

// =============================================================================
// BUDGET VS ACTUAL ROW - Two-column statement node
// =============================================================================

// BudgetActualRow is one node of a computed budget-vs-actual statement,
// where the two columns draw from different event vocabularies.
type BudgetActualRow struct {
	LineCode     string
	Title        string
	BudgetAmount decimal.Decimal
	ActualAmount decimal.Decimal
	Variance     decimal.Decimal // budget - actual
	IsTotalLine  bool
	Note         string
	Children     []*BudgetActualRow
}

// =============================================================================
// WARNINGS - Non-fatal issues surfaced alongside results
// =============================================================================

// Warning is a human-readable, non-fatal issue raised during computation
// or mapping. Warnings never abort a statement; they ride along with it.
type Warning struct {
	Code    string // e.g. "missing_event", "net_fallback", "orphan_parent"
	Line    string // line code or row id, when applicable
	Message string
}

func (w Warning) String() string {
	if w.Line == "" {
		return w.Code + ": " + w.Message
	}
	return w.Code + " [" + w.Line + "]: " + w.Message
}
