/*
Package report governs the lifecycle of generated statements.

PURPOSE:
  A Report binds a computed statement (statement package) to a facility,
  a period, and an approval lifecycle. This package owns the workflow
  state machine, the append-only history, and the snapshot gate deciding
  whether a view recomputes from live data or serves frozen figures.

KEY CONCEPTS IN THIS FILE (report.go):
  - Report: The lifecycle entity with status, snapshot, and history
  - Status: draft, submitted, changes_requested, approved, rejected
  - HistoryEntry: One immutable workflow transition record
  - ReportData: The computed (or frozen) statement attached to a report

SNAPSHOT RULE:
  While status is draft or rejected, every view recomputes from live
  event amounts. From the moment of submit the data is frozen: submitted,
  changes_requested and approved reports serve the stored tree untouched,
  with no event-amount reads, until a recall returns them to draft.

SEE ALSO:
  - workflow.go: Transition table and rules
  - service.go: Compute, view, and workflow actions
*/
package report

import (
	"time"

	"github.com/warp/statement-engine/statement"
)

// =============================================================================
// STATUS & ACTIONS
// =============================================================================

type Status string

const (
	StatusDraft            Status = "draft"
	StatusSubmitted        Status = "submitted"
	StatusChangesRequested Status = "changes_requested"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
)

type Action string

const (
	ActionSubmit         Action = "submit"
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionRequestChanges Action = "request_changes"
	ActionRecall         Action = "recall"
)

// =============================================================================
// KIND - Which computation path a report uses
// =============================================================================

type Kind string

const (
	KindQuarterly    Kind = "quarterly"
	KindBudgetActual Kind = "budget_actual"
)

// =============================================================================
// REPORT ENTITY
// =============================================================================

// Report is the lifecycle entity for one computed statement.
type Report struct {
	ID            string
	StatementCode string
	FacilityID    string
	PeriodID      string
	Kind          Kind

	Status Status

	// ReportData is the last computed (or frozen) statement. Nil until
	// the first view or submit.
	ReportData *ReportData

	SubmittedAt *time.Time
	SubmittedBy string
	ApprovedAt  *time.Time
	ApprovedBy  string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// WorkflowHistory is append-only: entries are never mutated or
	// removed, only added.
	WorkflowHistory []HistoryEntry
}

// ReportData is the computed statement attached to a report. Exactly one
// of Rows/BudgetActualRows is populated, matching the report's Kind.
type ReportData struct {
	Rows             []*statement.FinancialRow
	BudgetActualRows []*statement.BudgetActualRow
	Warnings         []statement.Warning
	ComputedAt       time.Time
}

// HistoryEntry records one successful workflow transition. Entries are
// plain structured records, safe to hand to any persistence layer.
type HistoryEntry struct {
	ID          string
	Action      Action
	ActionBy    string
	ActionAt    time.Time
	FromStatus  Status
	ToStatus    Status
	Comments    string
	Attachments []string

	// ValidationErrors carries failing validation recorded on a lenient
	// submit. Empty otherwise.
	ValidationErrors []string
}

// IsFrozen reports whether the report's data is snapshot-gated: views
// must serve ReportData verbatim and issue no live event-amount reads.
func (r *Report) IsFrozen() bool {
	switch r.Status {
	case StatusSubmitted, StatusChangesRequested, StatusApproved:
		return r.ReportData != nil
	}
	return false
}
