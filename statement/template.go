/*
template.go - Statement template store contract and hierarchy building

PURPOSE:
  Templates are ordered, flat lists of TemplateLine records per statement
  code. This file defines the store contract, insert-time validation, and
  the builder that turns a flat list into an ordered tree.

VALIDATION RULES:
  Fatal (block insert/publish):
    - duplicate line code within a statement
    - parentLineCode that resolves to no line
  Warnings (hierarchy still builds):
    - parent level not strictly below the child level
    - total line with no calculation formula (it would compute as a plain
      event sum, which is usually an authoring mistake)

SEE ALSO:
  - statement/store/memory.go: In-memory TemplateStore
  - store/sqlite: Persistent TemplateStore
  - builder.go: Turns template trees into computed statements
*/
package statement

import (
	"context"
	"fmt"
	"sort"
)

// =============================================================================
// STORE CONTRACT
// =============================================================================

// TemplateStore supplies template lines and budget-vs-actual mappings.
// Implementations: statement/store (memory), store/sqlite (persistent).
type TemplateStore interface {
	// GetTemplate returns the flat, ordered line list for a statement
	// code, or ErrTemplateNotFound.
	GetTemplate(ctx context.Context, statementCode string) ([]TemplateLine, error)

	// GetMappings returns the budget-vs-actual mappings configured for a
	// statement code, keyed by line code. Empty map when none exist.
	GetMappings(ctx context.Context, statementCode string) (map[string]BudgetActualMapping, error)
}

// =============================================================================
// TEMPLATE NODE - Hierarchical view of a template
// =============================================================================

// TemplateNode is a template line with its resolved children, ordered by
// DisplayOrder within each sibling group.
type TemplateNode struct {
	Line     TemplateLine
	Children []*TemplateNode
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidateLines checks a batch of lines for a single statement. Fatal
// violations come back as an error; non-fatal issues as warnings. The
// batch is validated as a whole, so a parent may appear anywhere in it.
func ValidateLines(lines []TemplateLine) ([]Warning, error) {
	var warnings []Warning

	byCode := make(map[string]TemplateLine, len(lines))
	for _, l := range lines {
		if _, dup := byCode[l.LineCode]; dup {
			return warnings, &TemplateValidationError{
				StatementCode: l.StatementCode,
				LineCode:      l.LineCode,
				Reason:        "line code already defined",
				wrapped:       ErrDuplicateLineCode,
			}
		}
		byCode[l.LineCode] = l
	}

	for _, l := range lines {
		if l.ParentLineCode != "" {
			parent, ok := byCode[l.ParentLineCode]
			if !ok {
				return warnings, &TemplateValidationError{
					StatementCode: l.StatementCode,
					LineCode:      l.LineCode,
					Reason:        fmt.Sprintf("parent %q does not exist", l.ParentLineCode),
					wrapped:       ErrUnresolvedParent,
				}
			}
			if parent.Level >= l.Level {
				warnings = append(warnings, Warning{
					Code: "level_inversion",
					Line: l.LineCode,
					Message: fmt.Sprintf("parent %s level %d is not below line level %d",
						parent.LineCode, parent.Level, l.Level),
				})
			}
		}

		if l.IsTotalLine && l.CalculationFormula == "" {
			warnings = append(warnings, Warning{
				Code:    "total_without_formula",
				Line:    l.LineCode,
				Message: "total line has no calculation formula; it will compute as a plain event sum",
			})
		}

		if l.CalculationFormula != "" {
			if _, err := ParseFormula(l.CalculationFormula); err != nil {
				return warnings, &TemplateValidationError{
					StatementCode: l.StatementCode,
					LineCode:      l.LineCode,
					Reason:        "invalid formula: " + err.Error(),
				}
			}
		}
	}

	return warnings, nil
}

// =============================================================================
// HIERARCHY BUILDING
// =============================================================================

// BuildHierarchy groups lines by parent and sorts every sibling group by
// DisplayOrder, recursively. A line whose declared parent is missing from
// the list is attached at the root with an orphan warning - the hierarchy
// always builds.
func BuildHierarchy(lines []TemplateLine) ([]*TemplateNode, []Warning) {
	var warnings []Warning

	nodes := make(map[string]*TemplateNode, len(lines))
	for _, l := range lines {
		nodes[l.LineCode] = &TemplateNode{Line: l}
	}

	var roots []*TemplateNode
	for _, l := range lines {
		node := nodes[l.LineCode]
		if l.ParentLineCode == "" {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[l.ParentLineCode]
		if !ok {
			warnings = append(warnings, Warning{
				Code:    "orphan_parent",
				Line:    l.LineCode,
				Message: fmt.Sprintf("parent %q not in template; attaching at root", l.ParentLineCode),
			})
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	sortSiblings(roots)
	return roots, warnings
}

func sortSiblings(nodes []*TemplateNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Line.DisplayOrder < nodes[j].Line.DisplayOrder
	})
	for _, n := range nodes {
		sortSiblings(n.Children)
	}
}

// FormulaReferences collects every line code referenced by calculation
// formulas in the template. Used at publish time to verify the formulas
// only reference lines that exist.
func FormulaReferences(lines []TemplateLine) (map[string][]string, error) {
	refs := make(map[string][]string)
	for _, l := range lines {
		if l.CalculationFormula == "" {
			continue
		}
		expr, err := ParseFormula(l.CalculationFormula)
		if err != nil {
			return nil, err
		}
		refs[l.LineCode] = expr.References()
	}
	return refs, nil
}
