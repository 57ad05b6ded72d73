/*
handlers.go - HTTP API handlers for the statement engine

PURPOSE:
  Exposes the statement computation and report workflow engine via REST.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Templates:
    GET    /api/templates/{code}           Template lines
    PUT    /api/templates/{code}           Replace template (JSON definition)
    POST   /api/templates/{code}/publish   Catalog-gated publish

  Statements (live computation):
    GET    /api/statements/{code}/compute        Quarterly statement
    GET    /api/statements/{code}/budget-actual  Budget-vs-actual statement

  Reports (workflow):
    POST   /api/reports                    Create draft
    GET    /api/reports/{id}               Snapshot-gated view
    POST   /api/reports/{id}/submit        Validate + freeze + transition
    POST   /api/reports/{id}/approve
    POST   /api/reports/{id}/reject
    POST   /api/reports/{id}/request-changes
    POST   /api/reports/{id}/recall
    POST   /api/reports/bulk-approve       Independent per-id approval

ERROR HANDLING:
  - 400: invalid input, template/mapping authoring errors
  - 403: recall of an approved report (approval is durable)
  - 404: unknown template/report
  - 409: illegal transition or lost concurrent-transition race
  - 422: strict-mode submit blocked by validation
  - 500: internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/statement-engine/factory"
	"github.com/warp/statement-engine/report"
	"github.com/warp/statement-engine/statement"
	"github.com/warp/statement-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Reports  *report.Service
	Builder  *statement.Builder
	Factory  *factory.TemplateFactory
}

// NewHandler creates a handler wired to the given store and service.
func NewHandler(store *sqlite.Store, reports *report.Service, builder *statement.Builder) *Handler {
	return &Handler{
		Store:   store,
		Reports: reports,
		Builder: builder,
		Factory: factory.NewTemplateFactory(),
	}
}

// =============================================================================
// TEMPLATE HANDLERS
// =============================================================================

// GetTemplate returns the flat, ordered line list for a statement code.
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	lines, err := h.Store.GetTemplate(r.Context(), code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TemplateResponse{StatementCode: code, Lines: lines})
}

// PutTemplate replaces a template from a JSON definition.
func (h *Handler) PutTemplate(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "unreadable body"})
		return
	}

	lines, mappings, warnings, err := h.Factory.ParseTemplate(string(body))
	if err != nil {
		h.writeError(w, err)
		return
	}

	if _, err := h.Store.PutTemplate(r.Context(), code, lines); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Store.PutMappings(r.Context(), code, mappings); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TemplateResponse{StatementCode: code, Lines: lines, Warnings: warnings})
}

// PublishTemplate runs the strict configuration-time check: every mapped
// event code must exist in the full event catalog.
func (h *Handler) PublishTemplate(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	mappings, err := h.Store.GetMappings(r.Context(), code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	catalog, err := h.Store.Catalog(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	result := statement.NewMapper(mappings).ValidateEventCodesExist(catalog)
	if !result.IsValid {
		writeJSON(w, http.StatusBadRequest, PublishResponse{
			Published:     false,
			InvalidEvents: result.InvalidEvents,
			AffectedLines: result.AffectedLines,
		})
		return
	}
	writeJSON(w, http.StatusOK, PublishResponse{Published: true})
}

// =============================================================================
// STATEMENT HANDLERS - Live computation
// =============================================================================

// ComputeStatement computes a quarterly statement from live amounts.
func (h *Handler) ComputeStatement(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	facilityID := r.URL.Query().Get("facility")
	periodID := r.URL.Query().Get("period")
	if facilityID == "" || periodID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "facility and period query parameters are required"})
		return
	}

	result, err := h.Builder.BuildQuarterly(r.Context(), code, facilityID, periodID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatementResponse{
		StatementCode: code,
		FacilityID:    facilityID,
		PeriodID:      periodID,
		Rows:          toRowDTOs(result.Rows),
		Warnings:      result.Warnings,
	})
}

// ComputeBudgetActual computes a budget-vs-actual statement.
func (h *Handler) ComputeBudgetActual(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	facilityID := r.URL.Query().Get("facility")
	periodID := r.URL.Query().Get("period")
	if facilityID == "" || periodID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "facility and period query parameters are required"})
		return
	}

	result, err := h.Builder.BuildBudgetActual(r.Context(), code, facilityID, periodID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BudgetActualResponse{
		StatementCode: code,
		FacilityID:    facilityID,
		PeriodID:      periodID,
		Rows:          result.Rows,
		Warnings:      result.Warnings,
	})
}

// =============================================================================
// REPORT HANDLERS - Workflow
// =============================================================================

// CreateReport creates a new draft report.
func (h *Handler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var req CreateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}
	if req.StatementCode == "" || req.FacilityID == "" || req.PeriodID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "statement_code, facility_id and period_id are required"})
		return
	}

	created, err := h.Reports.CreateDraft(r.Context(), req.StatementCode, req.FacilityID, req.PeriodID, report.Kind(req.Kind))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": created.ID, "status": string(created.Status)})
}

// GetReport serves a report through the snapshot gate: frozen reports
// return stored data untouched, draft/rejected reports recompute.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, err := h.Reports.GetOrCompute(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := ReportResponse{
		ID:            view.Report.ID,
		StatementCode: view.Report.StatementCode,
		FacilityID:    view.Report.FacilityID,
		PeriodID:      view.Report.PeriodID,
		Status:        view.Report.Status,
		IsSnapshot:    view.IsSnapshot,
		SnapshotAt:    view.SnapshotAt,
		History:       view.Report.WorkflowHistory,
	}
	if view.Data != nil {
		resp.Rows = toRowDTOs(view.Data.Rows)
		resp.BudgetActual = view.Data.BudgetActualRows
		resp.Warnings = view.Data.Warnings
	}
	writeJSON(w, http.StatusOK, resp)
}

// WorkflowAction handles submit/approve/reject/request-changes/recall.
func (h *Handler) WorkflowAction(action report.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req WorkflowActionRequest
		if r.Body != nil {
			// Body is optional for actions without comments.
			_ = json.NewDecoder(r.Body).Decode(&req)
		}

		result, err := h.Reports.ApplyAction(r.Context(), report.ActionRequest{
			ReportID:    id,
			Action:      action,
			ActorID:     req.ActorID,
			Comments:    req.Comments,
			Attachments: req.Attachments,
		})
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, WorkflowActionResponse{
			PreviousStatus: result.PreviousStatus,
			NewStatus:      result.NewStatus,
			HistoryEntry:   result.HistoryEntry,
		})
	}
}

// BulkApprove approves each listed report independently; per-item
// failures never stop the rest.
func (h *Handler) BulkApprove(w http.ResponseWriter, r *http.Request) {
	var req BulkApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}

	results := h.Reports.BulkApprove(r.Context(), req.ReportIDs, req.ActorID)
	items := make([]BulkItemResult, len(results))
	for i, res := range results {
		items[i] = BulkItemResult{ReportID: res.ReportID, NewStatus: res.NewStatus}
		if res.Err != nil {
			items[i].Error = res.Err.Error()
		}
	}
	writeJSON(w, http.StatusOK, items)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, report.ErrRecallApproved):
		status = http.StatusForbidden
	case errors.Is(err, report.ErrReportNotFound), statement.IsNotFound(err):
		status = http.StatusNotFound
	case report.IsConflict(err):
		status = http.StatusConflict
	case isBlockedSubmit(err):
		status = http.StatusUnprocessableEntity
	case isTransitionError(err):
		status = http.StatusConflict
	case statement.IsAuthoringError(err):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func isBlockedSubmit(err error) bool {
	var be *report.BlockedSubmitError
	return errors.As(err, &be)
}

func isTransitionError(err error) bool {
	var te *report.TransitionError
	return errors.As(err, &te)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
