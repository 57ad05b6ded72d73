/*
errors.go - Workflow error types

ERROR CATEGORIES:
  1. Transition errors - Illegal source state for an action (fatal to
     that single action, never to the report)
  2. Blocked submits   - Strict-mode validation failures
  3. Conflicts         - A concurrent transition won the race
  4. Not-found         - Unknown report id

Approval is durable: recalling an approved report is refused with a
permission-style error rather than a plain transition error, so API
layers can map it to 403 instead of 409.
*/
package report

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrReportNotFound is returned when a report id resolves to nothing.
	ErrReportNotFound = errors.New("report not found")

	// ErrConflict is returned when a concurrent transition modified the
	// report between read and write. The action may be retried against
	// the fresh state.
	ErrConflict = errors.New("concurrent workflow transition detected")

	// ErrRecallApproved is returned when recalling an approved report.
	// Approval is meant to be durable; this is a permission refusal, not
	// a state mismatch.
	ErrRecallApproved = errors.New("approved reports cannot be recalled")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// TransitionError reports an illegal source state for a workflow action.
type TransitionError struct {
	ReportID string
	Action   Action
	From     Status
	Allowed  []Status
}

func (e *TransitionError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	return fmt.Sprintf("cannot %s report %s from status %q (allowed from: %s)",
		e.Action, e.ReportID, e.From, strings.Join(allowed, ", "))
}

// BlockedSubmitError is returned by a strict-mode submit whose validation
// failed. The report remains in its prior state.
type BlockedSubmitError struct {
	ReportID string
	Errors   []string
}

func (e *BlockedSubmitError) Error() string {
	return fmt.Sprintf("submit blocked by validation: %s", strings.Join(e.Errors, "; "))
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConflict returns true if the error is a lost transition race.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsClientError returns true for errors caused by the caller's request
// rather than the system (4xx at the API edge).
func IsClientError(err error) bool {
	var te *TransitionError
	var be *BlockedSubmitError
	return errors.As(err, &te) || errors.As(err, &be) ||
		errors.Is(err, ErrRecallApproved) || errors.Is(err, ErrReportNotFound)
}
