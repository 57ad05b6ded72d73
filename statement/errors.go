/*
errors.go - Centralized error types for the statement engine

PURPOSE:
  All engine error types in one place. Collaborating packages (report,
  api, store) wrap these with additional context.

ERROR CATEGORIES:
  1. Template errors - Authoring/publish-time violations (fatal)
  2. Mapping errors  - Event catalog violations (fatal at publish time)
  3. Formula errors  - Unparseable or unresolvable formulas
  4. Store errors    - Missing templates/reports

Per-period computation never raises errors for missing data: missing
event codes degrade to zero with a Warning, and cross-line formulas whose
operands are absent are skipped.

SEE ALSO:
  - template.go: Uses TemplateValidationError
  - mapper.go: Uses MappingConfigurationError
  - formula.go: Uses FormulaError
*/
package statement

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrTemplateNotFound is returned when no template exists for a
	// statement code.
	ErrTemplateNotFound = errors.New("statement template not found")

	// ErrLineNotFound is returned when a line code is not part of the
	// template being operated on.
	ErrLineNotFound = errors.New("template line not found")

	// ErrDuplicateLineCode is returned when inserting a line whose code
	// already exists within the same statement.
	ErrDuplicateLineCode = errors.New("duplicate line code")

	// ErrUnresolvedParent is returned when a line references a parent
	// line code that does not exist in the template.
	ErrUnresolvedParent = errors.New("unresolved parent line code")

	// ErrUnknownEventCode is returned by catalog validation when a mapped
	// event code is absent from the full catalog of known events.
	ErrUnknownEventCode = errors.New("event code not in catalog")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// TemplateValidationError blocks a template insert or publish.
type TemplateValidationError struct {
	StatementCode string
	LineCode      string
	Reason        string
	wrapped       error
}

func (e *TemplateValidationError) Error() string {
	return fmt.Sprintf("template %s line %s: %s", e.StatementCode, e.LineCode, e.Reason)
}

func (e *TemplateValidationError) Unwrap() error { return e.wrapped }

// MappingConfigurationError is fatal at template-publish time: one or more
// mapped event codes are not part of the known event catalog at all (as
// opposed to merely having no activity in a given period).
type MappingConfigurationError struct {
	InvalidEvents []string
	AffectedLines []string
}

func (e *MappingConfigurationError) Error() string {
	return fmt.Sprintf("invalid event codes %s (lines %s)",
		strings.Join(e.InvalidEvents, ", "), strings.Join(e.AffectedLines, ", "))
}

func (e *MappingConfigurationError) Unwrap() error { return ErrUnknownEventCode }

// FormulaError reports an unparseable or unresolvable calculation formula.
type FormulaError struct {
	Formula string
	Pos     int
	Reason  string
}

func (e *FormulaError) Error() string {
	return fmt.Sprintf("formula %q at %d: %s", e.Formula, e.Pos, e.Reason)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing template or line.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound) || errors.Is(err, ErrLineNotFound)
}

// IsAuthoringError returns true for errors caused by invalid template or
// mapping configuration (client-fixable, 4xx at the API edge).
func IsAuthoringError(err error) bool {
	var tve *TemplateValidationError
	var mce *MappingConfigurationError
	var fe *FormulaError
	return errors.As(err, &tve) || errors.As(err, &mce) || errors.As(err, &fe) ||
		errors.Is(err, ErrDuplicateLineCode) || errors.Is(err, ErrUnresolvedParent)
}
