/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  JSON shapes exchanged with clients. Kept separate from domain types so
  the engine's internals can evolve without breaking the wire format.

CONVENTIONS:
  - Amounts are serialized as decimal strings, no floats on the wire
  - Nullable cumulative balances serialize as null, distinguishing
    "not computed" from "computed as zero"
  - Errors: {"error": "..."} with an appropriate HTTP status

SEE ALSO:
  - handlers.go: Handler implementations using these DTOs
*/
package api

import (
	"time"

	"github.com/warp/statement-engine/report"
	"github.com/warp/statement-engine/statement"
)

// =============================================================================
// TEMPLATE DTOs
// =============================================================================

// TemplateResponse returns a template's lines plus validation warnings.
type TemplateResponse struct {
	StatementCode string                    `json:"statement_code"`
	Lines         []statement.TemplateLine  `json:"lines"`
	Warnings      []statement.Warning       `json:"warnings,omitempty"`
}

// PublishResponse reports the catalog-gated publish outcome.
type PublishResponse struct {
	Published     bool     `json:"published"`
	InvalidEvents []string `json:"invalid_events,omitempty"`
	AffectedLines []string `json:"affected_lines,omitempty"`
}

// =============================================================================
// STATEMENT DTOs
// =============================================================================

// RowDTO mirrors statement.FinancialRow with explicit JSON naming.
type RowDTO struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Q1                string    `json:"q1"`
	Q2                string    `json:"q2"`
	Q3                string    `json:"q3"`
	Q4                string    `json:"q4"`
	CumulativeBalance *string   `json:"cumulative_balance"`
	IsCategory        bool      `json:"is_category"`
	Children          []*RowDTO `json:"children,omitempty"`
}

// StatementResponse is the computed quarterly statement.
type StatementResponse struct {
	StatementCode string              `json:"statement_code"`
	FacilityID    string              `json:"facility_id"`
	PeriodID      string              `json:"period_id"`
	Rows          []*RowDTO           `json:"rows"`
	Warnings      []statement.Warning `json:"warnings,omitempty"`
}

// BudgetActualResponse is the computed two-column statement.
type BudgetActualResponse struct {
	StatementCode string                         `json:"statement_code"`
	FacilityID    string                         `json:"facility_id"`
	PeriodID      string                         `json:"period_id"`
	Rows          []*statement.BudgetActualRow   `json:"rows"`
	Warnings      []statement.Warning            `json:"warnings,omitempty"`
}

func toRowDTO(r *statement.FinancialRow) *RowDTO {
	dto := &RowDTO{
		ID:         r.ID,
		Title:      r.Title,
		Q1:         r.Quarters[0].String(),
		Q2:         r.Quarters[1].String(),
		Q3:         r.Quarters[2].String(),
		Q4:         r.Quarters[3].String(),
		IsCategory: r.IsCategory,
	}
	if r.CumulativeBalance != nil {
		s := r.CumulativeBalance.String()
		dto.CumulativeBalance = &s
	}
	for _, c := range r.Children {
		dto.Children = append(dto.Children, toRowDTO(c))
	}
	return dto
}

func toRowDTOs(rows []*statement.FinancialRow) []*RowDTO {
	out := make([]*RowDTO, len(rows))
	for i, r := range rows {
		out[i] = toRowDTO(r)
	}
	return out
}

// =============================================================================
// REPORT DTOs
// =============================================================================

// CreateReportRequest creates a new draft report.
type CreateReportRequest struct {
	StatementCode string `json:"statement_code"`
	FacilityID    string `json:"facility_id"`
	PeriodID      string `json:"period_id"`
	Kind          string `json:"kind,omitempty"` // quarterly (default) or budget_actual
}

// ReportResponse is the snapshot-gated view of a report.
type ReportResponse struct {
	ID            string                `json:"id"`
	StatementCode string                `json:"statement_code"`
	FacilityID    string                `json:"facility_id"`
	PeriodID      string                `json:"period_id"`
	Status        report.Status         `json:"status"`
	IsSnapshot    bool                  `json:"is_snapshot"`
	SnapshotAt    *time.Time            `json:"snapshot_at,omitempty"`
	Rows          []*RowDTO             `json:"rows,omitempty"`
	BudgetActual  []*statement.BudgetActualRow `json:"budget_actual_rows,omitempty"`
	Warnings      []statement.Warning   `json:"warnings,omitempty"`
	History       []report.HistoryEntry `json:"workflow_history"`
}

// WorkflowActionRequest carries a workflow action.
type WorkflowActionRequest struct {
	ActorID     string   `json:"actor_id"`
	Comments    string   `json:"comments,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}

// WorkflowActionResponse reports a successful transition.
type WorkflowActionResponse struct {
	PreviousStatus report.Status       `json:"previous_status"`
	NewStatus      report.Status       `json:"new_status"`
	HistoryEntry   report.HistoryEntry `json:"history_entry"`
}

// BulkApproveRequest approves many reports independently.
type BulkApproveRequest struct {
	ReportIDs []string `json:"report_ids"`
	ActorID   string   `json:"actor_id"`
}

// BulkItemResult is the per-report outcome; partial success is normal.
type BulkItemResult struct {
	ReportID  string        `json:"report_id"`
	NewStatus report.Status `json:"new_status,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// ErrorResponse is the uniform error shape.
type ErrorResponse struct {
	Error string `json:"error"`
}
