/*
calculator.go - Hierarchical totals and cross-line formulas

PURPOSE:
  Takes a FinancialRow tree whose leaves carry raw per-quarter amounts and
  produces a fully computed tree: category rows summed from children,
  every row's cumulative balance set by its flow/stock nature, and the
  named cross-line formulas (surplus/deficit, net financial assets,
  closing balance) applied as a second pass.

PURITY:
  Compute never mutates its input. It clones the forest, works on the
  clone, and returns it - callers can diff old vs new trees row by row.

TWO PASSES:
  Pass 1 (depth-first, children before parents):
    - tax-inclusive leaves missing a net split get gross copied as net,
      with a data-quality warning
    - category rows sum children per quarter, preferring a child's net
      amounts whenever it carries VAT data
    - every row's cumulative balance is set by nature (section.go):
      flow = Q1+Q2+Q3+Q4, stock = latest non-zero quarter
  Pass 2 (named overrides, each skipped when operands are missing):
    - Surplus/Deficit   = Receipts - Expenditures, per quarter; its own
      cumulative is the sum of the overridden quarters (always a flow)
    - Net Fin. Assets   = Assets - Liabilities, per quarter; cumulative by
      the stock rule - summing would double-count a persisting balance
    - Closing Balance   = sum of its three children, after the period
      surplus child is overwritten to mirror the Surplus/Deficit row so
      the closing balance reconciles with the income-statement result

ERRORS:
  None. Missing operands skip the formula and leave rows at their prior
  values; data-quality issues come back as warnings.

SEE ALSO:
  - section.go: Flow/stock classification
  - types.go: FinancialRow, Quarters
*/
package statement

import (
	"fmt"
	"strings"
)

// Well-known section ids of the standardized statement layout. The
// cross-line pass keys off these.
const (
	RowReceipts           = "A"
	RowExpenditures       = "B"
	RowSurplusDeficit     = "C"
	RowFinancialAssets    = "D"
	RowLiabilities        = "E"
	RowNetFinancialAssets = "F"
	RowClosingBalance     = "G"
)

// Line items whose stated amounts are tax-inclusive. Aggregation must use
// their net figure, not the gross one.
var vatApplicableKeywords = []string{
	"communication", "maintenance", "fuel", "office supplies",
}

// Calculator computes hierarchical totals. It is stateless; the zero
// value is ready to use.
type Calculator struct{}

// Compute returns a fully computed copy of the input forest plus any
// data-quality warnings. The input rows are not modified.
func (c Calculator) Compute(rows []*FinancialRow) ([]*FinancialRow, []Warning) {
	out := make([]*FinancialRow, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}

	var warnings []Warning
	for _, r := range out {
		warnings = append(warnings, c.computeRow(r)...)
	}
	warnings = append(warnings, c.applyCrossLineFormulas(out)...)
	return out, warnings
}

// =============================================================================
// PASS 1 - Bottom-up totals and cumulative balances
// =============================================================================

func (c Calculator) computeRow(row *FinancialRow) []Warning {
	var warnings []Warning

	if len(row.Children) == 0 && row.Tax == nil && isVATApplicable(row.Title) {
		// The row's stated amounts are treated as already net of VAT.
		row.Tax = &TaxSplit{Net: row.Quarters}
		warnings = append(warnings, Warning{
			Code:    "net_fallback",
			Line:    row.ID,
			Message: fmt.Sprintf("tax-inclusive line %q has no net amounts; using gross as net", row.Title),
		})
	}

	if len(row.Children) > 0 {
		for _, child := range row.Children {
			warnings = append(warnings, c.computeRow(child)...)
		}
		if row.IsCategory {
			var sum Quarters
			for _, child := range row.Children {
				sum = sum.Add(aggregableQuarters(child))
			}
			row.Quarters = sum
		}
	}

	c.setCumulativeByNature(row)
	return warnings
}

// aggregableQuarters returns the amounts a parent should sum for a child:
// the net figure when the child carries VAT data, gross otherwise.
func aggregableQuarters(row *FinancialRow) Quarters {
	if row.Tax != nil && !row.Tax.Net.IsZero() {
		return row.Tax.Net
	}
	return row.Quarters
}

func (c Calculator) setCumulativeByNature(row *FinancialRow) {
	switch classifyRow(row) {
	case NatureStock:
		row.setCumulative(row.Quarters.LatestNonZero())
	default:
		row.setCumulative(row.Quarters.Sum())
	}
}

func isVATApplicable(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range vatApplicableKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// =============================================================================
// PASS 2 - Named cross-line formulas
// =============================================================================

func (c Calculator) applyCrossLineFormulas(rows []*FinancialRow) []Warning {
	var warnings []Warning

	surplus := c.applySurplusDeficit(rows)
	c.applyNetFinancialAssets(rows)
	warnings = append(warnings, c.applyClosingBalance(rows, surplus)...)

	return warnings
}

// applySurplusDeficit sets Surplus/Deficit = Receipts - Expenditures per
// quarter. Even though it derives from stock-style subtraction, the
// surplus is always a flow: its cumulative balance is the sum of its own
// (overridden) quarters, not a latest-quarter pick.
func (c Calculator) applySurplusDeficit(rows []*FinancialRow) *FinancialRow {
	receipts := FindRow(rows, RowReceipts)
	expenditures := FindRow(rows, RowExpenditures)
	surplus := FindRow(rows, RowSurplusDeficit)
	if receipts == nil || expenditures == nil || surplus == nil {
		return surplus
	}

	surplus.Quarters = receipts.Quarters.Sub(expenditures.Quarters)
	surplus.setCumulative(surplus.Quarters.Sum())
	return surplus
}

// applyNetFinancialAssets sets Net Financial Assets = Financial Assets -
// Financial Liabilities per quarter. Both operands are stocks, so the
// cumulative balance follows the stock rule.
func (c Calculator) applyNetFinancialAssets(rows []*FinancialRow) {
	assets := FindRow(rows, RowFinancialAssets)
	liabilities := FindRow(rows, RowLiabilities)
	net := FindRow(rows, RowNetFinancialAssets)
	if assets == nil || liabilities == nil || net == nil {
		return
	}

	net.Quarters = assets.Quarters.Sub(liabilities.Quarters)
	net.setCumulative(net.Quarters.LatestNonZero())
}

// applyClosingBalance recomputes the closing-balance section from its
// three named children. The period-surplus child is first overwritten to
// mirror the Surplus/Deficit row, so the closing balance always
// reconciles with the income-statement result.
func (c Calculator) applyClosingBalance(rows []*FinancialRow, surplus *FinancialRow) []Warning {
	closing := FindRow(rows, RowClosingBalance)
	if closing == nil {
		return nil
	}

	accumulated := childByKeyword(closing, "accumulated")
	priorYear := childByKeyword(closing, "prior year")
	periodSurplus := childByKeyword(closing, "period")
	if accumulated == nil || priorYear == nil || periodSurplus == nil {
		return []Warning{{
			Code:    "closing_balance_skipped",
			Line:    closing.ID,
			Message: "closing balance is missing one of its three named children; left unchanged",
		}}
	}

	if surplus != nil {
		periodSurplus.Quarters = surplus.Quarters
		if surplus.CumulativeBalance != nil {
			cb := *surplus.CumulativeBalance
			periodSurplus.CumulativeBalance = &cb
		} else {
			periodSurplus.CumulativeBalance = nil
		}
	}

	closing.Quarters = accumulated.Quarters.Add(priorYear.Quarters).Add(periodSurplus.Quarters)
	closing.setCumulative(closing.Quarters.Sum())
	return nil
}

// childByKeyword finds a direct child whose title contains the keyword,
// case-insensitively. Titles like "Accumulated Surplus/Deficit" also
// contain "period"-adjacent words, so callers match the most specific
// keyword first.
func childByKeyword(parent *FinancialRow, keyword string) *FinancialRow {
	for _, child := range parent.Children {
		if strings.Contains(strings.ToLower(child.Title), keyword) {
			return child
		}
	}
	return nil
}
