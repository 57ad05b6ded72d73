/*
service.go - Report lifecycle orchestration

PURPOSE:
  The service wires the statement builder, the workflow machine, and the
  external collaborators (Validator, Notifier, Store) into the operations
  the API layer exposes: create draft, view (snapshot-gated), apply a
  workflow action, bulk approve.

ATOMICITY:
  A transition is a single read-modify-write: read the report, resolve
  the target status, write back guarded by the status read. Two
  concurrent transitions from the same source state cannot both succeed -
  the store refuses the second write with ErrConflict.

SUBMIT CONTRACT:
  Submit consults the Validator first. In strict mode a failing
  validation aborts the transition (no state change, BlockedSubmitError
  with the error list). In lenient mode the transition proceeds and the
  failures are recorded on the history entry. Submit also freezes the
  report data: the statement is computed once, at that moment, and served
  unchanged until the report returns to draft.

NOTIFICATIONS:
  Fire-and-forget. A panicking or failing notifier never rolls back a
  transition.

SEE ALSO:
  - workflow.go: Transition table
  - statement/builder.go: Live computation paths
*/
package report

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/warp/statement-engine/statement"
)

// =============================================================================
// COLLABORATOR CONTRACTS
// =============================================================================

// Store persists reports. Update is guarded: it must refuse the write
// with ErrConflict when the stored status no longer equals expected.
type Store interface {
	Create(ctx context.Context, r *Report) error
	Get(ctx context.Context, id string) (*Report, error)
	Update(ctx context.Context, r *Report, expected Status) error

	// SaveData stores freshly computed report data without touching
	// status or history (the live recompute path).
	SaveData(ctx context.Context, id string, data *ReportData) error
}

// ValidationResult is the outcome of the external submit validation.
type ValidationResult struct {
	IsValid  bool
	Errors   []string
	Warnings []string
}

// Validator is the external collaborator consulted on submit.
type Validator interface {
	Validate(ctx context.Context, reportID string) (*ValidationResult, error)
}

// Notifier delivers workflow notifications. Failures are logged and
// dropped; delivery is out of this core's scope.
type Notifier interface {
	Notify(reportID string, action Action, actorID string, recipients []string) error
}

// ValidationMode controls how submit treats failing validation.
type ValidationMode string

const (
	ModeStrict  ValidationMode = "strict"  // failing validation aborts the submit
	ModeLenient ValidationMode = "lenient" // submit proceeds, failures recorded in history
)

// =============================================================================
// SERVICE
// =============================================================================

// Service orchestrates report computation and workflow.
type Service struct {
	Reports   Store
	Builder   *statement.Builder
	Validator Validator
	Notifier  Notifier
	Mode      ValidationMode

	// Recipients resolves who gets notified for an action. Optional.
	Recipients func(r *Report, action Action) []string

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CreateDraft creates a new draft report for a statement/facility/period.
func (s *Service) CreateDraft(ctx context.Context, statementCode, facilityID, periodID string, kind Kind) (*Report, error) {
	if kind == "" {
		kind = KindQuarterly
	}
	now := s.now()
	r := &Report{
		ID:            uuid.NewString(),
		StatementCode: statementCode,
		FacilityID:    facilityID,
		PeriodID:      periodID,
		Kind:          kind,
		Status:        StatusDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Reports.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// =============================================================================
// VIEW - Snapshot-gated read
// =============================================================================

// View is what a read request returns: either live figures or a frozen
// snapshot, flagged as such.
type View struct {
	Report     *Report
	Data       *ReportData
	IsSnapshot bool
	SnapshotAt *time.Time
}

// GetOrCompute serves a report's statement. Frozen reports (submitted,
// changes_requested, approved with populated data) return the stored
// tree verbatim - no event-amount reads happen on that path. Draft and
// rejected reports recompute from live amounts on every call and persist
// the fresh tree.
func (s *Service) GetOrCompute(ctx context.Context, reportID string) (*View, error) {
	r, err := s.Reports.Get(ctx, reportID)
	if err != nil {
		return nil, err
	}

	if r.IsFrozen() {
		at := r.ReportData.ComputedAt
		return &View{Report: r, Data: r.ReportData, IsSnapshot: true, SnapshotAt: &at}, nil
	}

	data, err := s.compute(ctx, r)
	if err != nil {
		return nil, err
	}
	if err := s.Reports.SaveData(ctx, r.ID, data); err != nil {
		return nil, err
	}
	r.ReportData = data
	return &View{Report: r, Data: data}, nil
}

func (s *Service) compute(ctx context.Context, r *Report) (*ReportData, error) {
	switch r.Kind {
	case KindBudgetActual:
		result, err := s.Builder.BuildBudgetActual(ctx, r.StatementCode, r.FacilityID, r.PeriodID)
		if err != nil {
			return nil, err
		}
		return &ReportData{
			BudgetActualRows: result.Rows,
			Warnings:         result.Warnings,
			ComputedAt:       s.now(),
		}, nil
	default:
		result, err := s.Builder.BuildQuarterly(ctx, r.StatementCode, r.FacilityID, r.PeriodID)
		if err != nil {
			return nil, err
		}
		return &ReportData{
			Rows:       result.Rows,
			Warnings:   result.Warnings,
			ComputedAt: s.now(),
		}, nil
	}
}

// =============================================================================
// WORKFLOW ACTIONS
// =============================================================================

// ActionRequest describes one workflow action attempt.
type ActionRequest struct {
	ReportID    string
	Action      Action
	ActorID     string
	Comments    string
	Attachments []string
}

// ActionResult reports a successful transition.
type ActionResult struct {
	PreviousStatus Status
	NewStatus      Status
	HistoryEntry   HistoryEntry
}

// ApplyAction performs one workflow transition as an atomic
// read-modify-write. On success it appends exactly one history entry and
// fires the notifier without awaiting it.
func (s *Service) ApplyAction(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	r, err := s.Reports.Get(ctx, req.ReportID)
	if err != nil {
		return nil, err
	}

	from := r.Status
	to, err := NextStatus(r.ID, from, req.Action)
	if err != nil {
		return nil, err
	}

	now := s.now()
	entry := HistoryEntry{
		ID:          uuid.NewString(),
		Action:      req.Action,
		ActionBy:    req.ActorID,
		ActionAt:    now,
		FromStatus:  from,
		ToStatus:    to,
		Comments:    req.Comments,
		Attachments: req.Attachments,
	}

	if req.Action == ActionSubmit {
		if err := s.prepareSubmit(ctx, r, &entry, now); err != nil {
			return nil, err
		}
	}
	if req.Action == ActionApprove {
		r.ApprovedAt = &now
		r.ApprovedBy = req.ActorID
	}

	r.Status = to
	r.UpdatedAt = now
	r.WorkflowHistory = append(r.WorkflowHistory, entry)

	if err := s.Reports.Update(ctx, r, from); err != nil {
		return nil, err
	}

	s.notify(r, req.Action, req.ActorID)

	return &ActionResult{PreviousStatus: from, NewStatus: to, HistoryEntry: entry}, nil
}

// prepareSubmit runs the validation contract and freezes the report data.
func (s *Service) prepareSubmit(ctx context.Context, r *Report, entry *HistoryEntry, now time.Time) error {
	if s.Validator != nil {
		result, err := s.Validator.Validate(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("validate report %s: %w", r.ID, err)
		}
		if !result.IsValid {
			if s.Mode != ModeLenient {
				return &BlockedSubmitError{ReportID: r.ID, Errors: result.Errors}
			}
			entry.ValidationErrors = result.Errors
		}
	}

	// Freeze: the statement is computed once at submit time and served
	// unchanged for every later view until the report leaves the frozen
	// states.
	data, err := s.compute(ctx, r)
	if err != nil {
		return fmt.Errorf("compute snapshot for report %s: %w", r.ID, err)
	}
	r.ReportData = data
	r.SubmittedAt = &now
	r.SubmittedBy = entry.ActionBy
	return nil
}

func (s *Service) notify(r *Report, action Action, actorID string) {
	if s.Notifier == nil {
		return
	}
	var recipients []string
	if s.Recipients != nil {
		recipients = s.Recipients(r, action)
	}
	go func() {
		defer func() {
			if p := recover(); p != nil {
				log.Printf("notifier panic for report %s: %v", r.ID, p)
			}
		}()
		if err := s.Notifier.Notify(r.ID, action, actorID, recipients); err != nil {
			log.Printf("notify report %s action %s: %v", r.ID, action, err)
		}
	}()
}

// =============================================================================
// BULK APPROVAL
// =============================================================================

// BulkResult is the per-report outcome of a bulk action. Partial success
// is the normal outcome, not an error state.
type BulkResult struct {
	ReportID  string
	NewStatus Status
	Err       error
}

// BulkApprove approves each report independently. A failure on one id is
// captured in its result and does not stop the rest. No ordering
// guarantee is given.
func (s *Service) BulkApprove(ctx context.Context, reportIDs []string, actorID string) []BulkResult {
	results := make([]BulkResult, 0, len(reportIDs))
	for _, id := range reportIDs {
		res, err := s.ApplyAction(ctx, ActionRequest{
			ReportID: id,
			Action:   ActionApprove,
			ActorID:  actorID,
		})
		if err != nil {
			results = append(results, BulkResult{ReportID: id, Err: err})
			continue
		}
		results = append(results, BulkResult{ReportID: id, NewStatus: res.NewStatus})
	}
	return results
}
