package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/statement-engine/report"
	"github.com/warp/statement-engine/statement"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTemplateRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.PutTemplate(ctx, "QS", []statement.TemplateLine{
		{LineCode: "A", Title: "Receipts", Level: 1, DisplayOrder: 2},
		{LineCode: "A01", Title: "Grants", ParentLineCode: "A", Level: 2, DisplayOrder: 1, EventCodes: []string{"GRANTS"}},
	})
	require.NoError(t, err)

	lines, err := s.GetTemplate(ctx, "QS")
	require.NoError(t, err)
	require.Len(t, lines, 2)

	// Ordered by level before display order.
	assert.Equal(t, "A", lines[0].LineCode)
	assert.Equal(t, []string{"GRANTS"}, lines[1].EventCodes)
	assert.Equal(t, "QS", lines[0].StatementCode)
}

func TestGetTemplate_Unknown(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetTemplate(context.Background(), "NOPE")
	assert.ErrorIs(t, err, statement.ErrTemplateNotFound)
}

func TestPutTemplate_ReplacesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.PutTemplate(ctx, "QS", []statement.TemplateLine{
		{LineCode: "OLD", Title: "Old", Level: 1, DisplayOrder: 1},
	})
	require.NoError(t, err)

	_, err = s.PutTemplate(ctx, "QS", []statement.TemplateLine{
		{LineCode: "NEW", Title: "New", Level: 1, DisplayOrder: 1},
	})
	require.NoError(t, err)

	lines, err := s.GetTemplate(ctx, "QS")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "NEW", lines[0].LineCode)
}

func TestMappingsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.PutMappings(ctx, "QS", []statement.BudgetActualMapping{
		{LineCode: "X01", BudgetEvents: []string{"WAGE_BILL_PLANNING"}, ActualEvents: []string{"COMPENSATION"}},
	})
	require.NoError(t, err)

	mappings, err := s.GetMappings(ctx, "QS")
	require.NoError(t, err)
	require.Contains(t, mappings, "X01")
	assert.Equal(t, []string{"WAGE_BILL_PLANNING"}, mappings["X01"].BudgetEvents)
}

func TestAmounts_UpsertAndScope(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetAmount(ctx, statement.KindExecution, "F1", "2025-Q1", "GRANTS", decimal.NewFromInt(10)))
	require.NoError(t, s.SetAmount(ctx, statement.KindExecution, "F1", "2025-Q1", "GRANTS", decimal.NewFromInt(25)))
	require.NoError(t, s.SetAmount(ctx, statement.KindPlanning, "F1", "2025-Q1", "GRANTS", decimal.NewFromInt(99)))

	amounts, err := s.GetAmounts(ctx, statement.KindExecution, "F1", "2025-Q1")
	require.NoError(t, err)
	require.Contains(t, amounts, "GRANTS")
	assert.True(t, amounts["GRANTS"].Equal(decimal.NewFromInt(25)), "second write wins")

	empty, err := s.GetAmounts(ctx, statement.KindExecution, "F1", "2030-Q1")
	require.NoError(t, err)
	assert.Empty(t, empty, "unknown scope yields an empty map, never an error")
}

// =============================================================================
// REPORTS
// =============================================================================

func newReport(id string) *report.Report {
	now := time.Now().UTC().Truncate(time.Second)
	return &report.Report{
		ID:            id,
		StatementCode: "QS",
		FacilityID:    "F1",
		PeriodID:      "2025",
		Kind:          report.KindQuarterly,
		Status:        report.StatusDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestReportRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newReport("r1")))

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, report.StatusDraft, got.Status)
	assert.Equal(t, "QS", got.StatementCode)
	assert.Nil(t, got.ReportData)
	assert.Nil(t, got.SubmittedAt)
}

func TestGetReport_Unknown(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, report.ErrReportNotFound)
}

func TestUpdate_GuardedByStatus(t *testing.T) {
	// GIVEN: A stored draft
	// WHEN: Writing back with the wrong expected status
	// THEN: ErrConflict, and the stored report is untouched

	s := newTestStore(t)
	ctx := context.Background()

	r := newReport("r1")
	require.NoError(t, s.Create(ctx, r))

	r.Status = report.StatusSubmitted
	err := s.Update(ctx, r, report.StatusApproved)
	assert.ErrorIs(t, err, report.ErrConflict)

	stored, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, report.StatusDraft, stored.Status)

	// The matching guard succeeds.
	require.NoError(t, s.Update(ctx, r, report.StatusDraft))
	stored, err = s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, report.StatusSubmitted, stored.Status)
}

func TestUpdate_PersistsHistoryAppendOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := newReport("r1")
	require.NoError(t, s.Create(ctx, r))

	now := time.Now().UTC().Truncate(time.Second)
	r.Status = report.StatusSubmitted
	r.WorkflowHistory = append(r.WorkflowHistory, report.HistoryEntry{
		ID: "h1", Action: report.ActionSubmit, ActionBy: "user-1", ActionAt: now,
		FromStatus: report.StatusDraft, ToStatus: report.StatusSubmitted,
		Comments: "first submission", ValidationErrors: []string{"late"},
	})
	require.NoError(t, s.Update(ctx, r, report.StatusDraft))

	r.Status = report.StatusApproved
	r.WorkflowHistory = append(r.WorkflowHistory, report.HistoryEntry{
		ID: "h2", Action: report.ActionApprove, ActionBy: "boss", ActionAt: now,
		FromStatus: report.StatusSubmitted, ToStatus: report.StatusApproved,
	})
	require.NoError(t, s.Update(ctx, r, report.StatusSubmitted))

	stored, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, stored.WorkflowHistory, 2)
	assert.Equal(t, report.ActionSubmit, stored.WorkflowHistory[0].Action)
	assert.Equal(t, []string{"late"}, stored.WorkflowHistory[0].ValidationErrors)
	assert.Equal(t, "boss", stored.WorkflowHistory[1].ActionBy)
}

func TestSaveData_RoundTripsComputedTree(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newReport("r1")))

	cb := decimal.NewFromInt(100)
	data := &report.ReportData{
		Rows: []*statement.FinancialRow{
			{ID: "A01", Title: "Grants",
				Quarters:          statement.Quarters{decimal.NewFromInt(25), decimal.NewFromInt(25), decimal.NewFromInt(25), decimal.NewFromInt(25)},
				CumulativeBalance: &cb},
		},
		ComputedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.SaveData(ctx, "r1", data))

	stored, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, stored.ReportData)
	require.Len(t, stored.ReportData.Rows, 1)
	assert.True(t, stored.ReportData.Rows[0].Quarters[0].Equal(decimal.NewFromInt(25)))
	require.NotNil(t, stored.ReportData.Rows[0].CumulativeBalance)
	assert.True(t, stored.ReportData.Rows[0].CumulativeBalance.Equal(cb))
}
