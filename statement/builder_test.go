package statement_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/warp/statement-engine/statement"
	"github.com/warp/statement-engine/statement/store"
)

func setExecution(amounts *store.MemoryAmounts, periodID string, pairs map[string]int64) {
	for code, v := range pairs {
		amounts.Set(statement.KindExecution, "F1", periodID, code, decimal.NewFromInt(v))
	}
}

func quarterlyFixture(t *testing.T) (*statement.Builder, *store.MemoryAmounts) {
	t.Helper()

	templates := store.NewMemoryTemplates()
	_, err := templates.PutTemplate(context.Background(), "QS", []statement.TemplateLine{
		{LineCode: "A", Title: "Receipts", Level: 1, DisplayOrder: 1},
		{LineCode: "A01", Title: "Government Grants", ParentLineCode: "A", Level: 2, DisplayOrder: 1, EventCodes: []string{"GRANTS"}},
		{LineCode: "A02", Title: "Own Source Revenue", ParentLineCode: "A", Level: 2, DisplayOrder: 2, EventCodes: []string{"OWN_REVENUE"}},
		{LineCode: "B", Title: "Expenditures", Level: 1, DisplayOrder: 2},
		{LineCode: "B01", Title: "Compensation of Employees", ParentLineCode: "B", Level: 2, DisplayOrder: 1, EventCodes: []string{"COMPENSATION"}},
		{LineCode: "C", Title: "Surplus/Deficit of the Period", Level: 1, DisplayOrder: 3, IsTotalLine: true, CalculationFormula: "A - B"},
	})
	if err != nil {
		t.Fatalf("PutTemplate: %v", err)
	}

	amounts := store.NewMemoryAmounts()
	return &statement.Builder{Templates: templates, Amounts: amounts}, amounts
}

func TestBuildQuarterly_PopulatesAndComputes(t *testing.T) {
	// GIVEN: A two-section template and execution amounts in Q1 and Q2
	// WHEN: Building the quarterly statement
	// THEN: Leaves carry their quarter amounts, categories sum children,
	//       and the surplus line is receipts minus expenditures

	builder, amounts := quarterlyFixture(t)
	setExecution(amounts, "2025-Q1", map[string]int64{"GRANTS": 100, "OWN_REVENUE": 20, "COMPENSATION": 80})
	setExecution(amounts, "2025-Q2", map[string]int64{"GRANTS": 110, "COMPENSATION": 85})

	result, err := builder.BuildQuarterly(context.Background(), "QS", "F1", "2025")
	if err != nil {
		t.Fatalf("BuildQuarterly: %v", err)
	}

	grants := statement.FindRow(result.Rows, "A01")
	if !grants.Quarters[0].Equal(d(100)) || !grants.Quarters[1].Equal(d(110)) {
		t.Errorf("unexpected grants quarters: %v", grants.Quarters)
	}

	receipts := statement.FindRow(result.Rows, "A")
	if !receipts.Quarters[0].Equal(d(120)) {
		t.Errorf("expected receipts Q1 = 120, got %v", receipts.Quarters[0])
	}
	if !receipts.IsCategory {
		t.Error("parent row should be a category")
	}

	surplus := statement.FindRow(result.Rows, "C")
	if !surplus.Quarters[0].Equal(d(40)) || !surplus.Quarters[1].Equal(d(25)) {
		t.Errorf("unexpected surplus quarters: %v", surplus.Quarters)
	}
}

func TestBuildQuarterly_MissingEvent_WarnsAndUsesZero(t *testing.T) {
	// GIVEN: OWN_REVENUE recorded in no quarter at all
	// WHEN: Building
	// THEN: The line computes as zero with a missing_event warning

	builder, amounts := quarterlyFixture(t)
	setExecution(amounts, "2025-Q1", map[string]int64{"GRANTS": 100, "COMPENSATION": 80})

	result, err := builder.BuildQuarterly(context.Background(), "QS", "F1", "2025")
	if err != nil {
		t.Fatalf("BuildQuarterly: %v", err)
	}

	ownRevenue := statement.FindRow(result.Rows, "A02")
	if !ownRevenue.Quarters.IsZero() {
		t.Errorf("expected zero quarters, got %v", ownRevenue.Quarters)
	}

	found := false
	for _, w := range result.Warnings {
		if w.Code == "missing_event" && w.Line == "A02" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected missing_event warning for A02, got %+v", result.Warnings)
	}
}

func TestBuildQuarterly_UnknownTemplate(t *testing.T) {
	builder, _ := quarterlyFixture(t)

	_, err := builder.BuildQuarterly(context.Background(), "NOPE", "F1", "2025")
	if !errors.Is(err, statement.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}

// =============================================================================
// BUDGET VS ACTUAL
// =============================================================================

func budgetActualFixture(t *testing.T) *statement.Builder {
	t.Helper()

	templates := store.NewMemoryTemplates()
	_, err := templates.PutTemplate(context.Background(), "BVA", []statement.TemplateLine{
		{LineCode: "R", Title: "Revenue", Level: 1, DisplayOrder: 1},
		{LineCode: "R01", Title: "Government Grants", ParentLineCode: "R", Level: 2, DisplayOrder: 1, EventCodes: []string{"GRANTS"}},
		{LineCode: "X", Title: "Expenditure", Level: 1, DisplayOrder: 2},
		{LineCode: "X01", Title: "Wages", ParentLineCode: "X", Level: 2, DisplayOrder: 1, EventCodes: []string{"COMPENSATION"}},
		{LineCode: "S", Title: "Surplus", Level: 1, DisplayOrder: 3, IsTotalLine: true, CalculationFormula: "R - X"},
	})
	if err != nil {
		t.Fatalf("PutTemplate: %v", err)
	}
	// X01 reads its budget column from a different vocabulary than the
	// _PLANNING convention would produce.
	err = templates.PutMappings(context.Background(), "BVA", []statement.BudgetActualMapping{
		{LineCode: "X01", BudgetEvents: []string{"WAGE_BILL_PLANNING"}, ActualEvents: []string{"COMPENSATION"}},
	})
	if err != nil {
		t.Fatalf("PutMappings: %v", err)
	}

	amounts := store.NewMemoryAmounts()
	amounts.Set(statement.KindPlanning, "F1", "2025", "GRANTS_PLANNING", decimal.NewFromInt(100))
	amounts.Set(statement.KindPlanning, "F1", "2025", "WAGE_BILL_PLANNING", decimal.NewFromInt(60))
	amounts.Set(statement.KindExecution, "F1", "2025", "GRANTS", decimal.NewFromInt(90))
	amounts.Set(statement.KindExecution, "F1", "2025", "COMPENSATION", decimal.NewFromInt(70))

	return &statement.Builder{Templates: templates, Amounts: amounts}
}

func findBA(rows []*statement.BudgetActualRow, lineCode string) *statement.BudgetActualRow {
	for _, r := range rows {
		if r.LineCode == lineCode {
			return r
		}
		if found := findBA(r.Children, lineCode); found != nil {
			return found
		}
	}
	return nil
}

func TestBuildBudgetActual_ResolvesBothColumns(t *testing.T) {
	// GIVEN: A fallback-mapped revenue leaf and an explicitly mapped wage
	//        leaf
	// WHEN: Building the budget-vs-actual statement
	// THEN: Each column reads its own vocabulary, totals evaluate their
	//       formulas, and variance is budget minus actual

	result, err := budgetActualFixture(t).BuildBudgetActual(context.Background(), "BVA", "F1", "2025")
	if err != nil {
		t.Fatalf("BuildBudgetActual: %v", err)
	}

	grants := findBA(result.Rows, "R01")
	if !grants.BudgetAmount.Equal(d(100)) || !grants.ActualAmount.Equal(d(90)) {
		t.Errorf("R01: expected 100/90, got %v/%v", grants.BudgetAmount, grants.ActualAmount)
	}

	wages := findBA(result.Rows, "X01")
	if !wages.BudgetAmount.Equal(d(60)) || !wages.ActualAmount.Equal(d(70)) {
		t.Errorf("X01: expected explicit mapping 60/70, got %v/%v", wages.BudgetAmount, wages.ActualAmount)
	}

	surplus := findBA(result.Rows, "S")
	if !surplus.BudgetAmount.Equal(d(40)) || !surplus.ActualAmount.Equal(d(20)) {
		t.Errorf("S: expected 40/20, got %v/%v", surplus.BudgetAmount, surplus.ActualAmount)
	}
	if !surplus.Variance.Equal(d(20)) {
		t.Errorf("S: expected variance 20, got %v", surplus.Variance)
	}
}

func TestBuildBudgetActual_DiffAggregation(t *testing.T) {
	// GIVEN: A parent aggregating by DIFF over two children
	// WHEN: Building
	// THEN: The parent is first child minus the rest

	templates := store.NewMemoryTemplates()
	_, err := templates.PutTemplate(context.Background(), "BVA", []statement.TemplateLine{
		{LineCode: "N", Title: "Net Revenue", Level: 1, DisplayOrder: 1, AggregationMethod: statement.AggregateDiff},
		{LineCode: "N01", Title: "Gross", ParentLineCode: "N", Level: 2, DisplayOrder: 1, EventCodes: []string{"GROSS"}},
		{LineCode: "N02", Title: "Refunds", ParentLineCode: "N", Level: 2, DisplayOrder: 2, EventCodes: []string{"REFUNDS"}},
	})
	if err != nil {
		t.Fatalf("PutTemplate: %v", err)
	}

	amounts := store.NewMemoryAmounts()
	amounts.Set(statement.KindExecution, "F1", "2025", "GROSS", decimal.NewFromInt(100))
	amounts.Set(statement.KindExecution, "F1", "2025", "REFUNDS", decimal.NewFromInt(15))

	builder := &statement.Builder{Templates: templates, Amounts: amounts}
	result, err := builder.BuildBudgetActual(context.Background(), "BVA", "F1", "2025")
	if err != nil {
		t.Fatalf("BuildBudgetActual: %v", err)
	}

	net := findBA(result.Rows, "N")
	if !net.ActualAmount.Equal(d(85)) {
		t.Errorf("expected 100 - 15 = 85, got %v", net.ActualAmount)
	}
}
