/*
mapper.go - Custom event mapping for budget-vs-actual statements

PURPOSE:
  Budget-vs-actual statements draw their two columns from different event
  vocabularies: the budget column reads planning events, the actual column
  reads execution events. This file resolves a line's amounts from those
  two sources, using an explicit override mapping when one is configured
  and a conventional fallback otherwise.

FALLBACK CONVENTION:
  Planning events mirror the execution vocabulary with a "_PLANNING"
  suffix. GetFallbackMapping synthesizes the planning variant for each
  standard code, leaving codes that already carry the suffix untouched:

    ["GOODS_SERVICES"]          -> budget ["GOODS_SERVICES_PLANNING"]
                                   actual ["GOODS_SERVICES"]
    ["GOODS_SERVICES_PLANNING"] -> budget ["GOODS_SERVICES_PLANNING"]
                                   actual ["GOODS_SERVICES_PLANNING"]

DEGRADATION:
  A code missing from a period's amount map contributes zero and raises a
  Warning. Only ValidateEventCodesExist - the publish-time check against
  the full event catalog - treats an unknown code as fatal.

SEE ALSO:
  - builder.go: Uses the mapper to resolve each statement line
  - errors.go: MappingConfigurationError
*/
package statement

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// PlanningSuffix marks the planning-side variant of an execution event
// code in the standard vocabulary convention.
const PlanningSuffix = "_PLANNING"

// =============================================================================
// MAPPER
// =============================================================================

// Mapper resolves per-line budget/actual amounts from planning and
// execution event amount maps. Mappings are loaded once per statement
// resolution; the mapper itself holds no other state.
type Mapper struct {
	mappings map[string]BudgetActualMapping
}

// NewMapper builds a mapper over the given explicit mappings (may be nil).
func NewMapper(mappings map[string]BudgetActualMapping) *Mapper {
	if mappings == nil {
		mappings = map[string]BudgetActualMapping{}
	}
	return &Mapper{mappings: mappings}
}

// EventMapping returns the explicit mapping for a line, or nil when the
// standard fallback applies.
func (m *Mapper) EventMapping(lineCode string) *BudgetActualMapping {
	if mapping, ok := m.mappings[lineCode]; ok {
		return &mapping
	}
	return nil
}

// Resolve returns the effective mapping for a line: the explicit override
// when configured, otherwise the fallback synthesized from the line's
// standard event codes.
func (m *Mapper) Resolve(lineCode string, standardEventCodes []string) BudgetActualMapping {
	if mapping := m.EventMapping(lineCode); mapping != nil {
		return *mapping
	}
	return FallbackMapping(lineCode, standardEventCodes)
}

// =============================================================================
// AMOUNT RESOLUTION
// =============================================================================

// LineAmounts is the resolved pair of figures for one line.
type LineAmounts struct {
	BudgetAmount decimal.Decimal
	ActualAmount decimal.Decimal
}

// ApplyMapping sums the mapped budget events over the planning amounts and
// the mapped actual events over the execution amounts. A code absent from
// its source map contributes zero; nothing here is fatal.
func ApplyMapping(mapping BudgetActualMapping, planning, execution map[string]decimal.Decimal) LineAmounts {
	amounts, _ := ApplyMappingWithWarnings(mapping, planning, execution)
	return amounts
}

// ApplyMappingWithWarnings performs the same arithmetic as ApplyMapping
// and additionally reports one warning per missing event code, so
// operators can see degraded lines without the computation aborting.
func ApplyMappingWithWarnings(mapping BudgetActualMapping, planning, execution map[string]decimal.Decimal) (LineAmounts, []Warning) {
	var warnings []Warning

	sum := func(codes []string, source map[string]decimal.Decimal, side string) decimal.Decimal {
		total := decimal.Zero
		for _, code := range codes {
			amount, ok := source[code]
			if !ok {
				warnings = append(warnings, Warning{
					Code:    "missing_event",
					Line:    mapping.LineCode,
					Message: fmt.Sprintf("%s event %q has no recorded amount; using 0", side, code),
				})
				continue
			}
			total = total.Add(amount)
		}
		return total
	}

	return LineAmounts{
		BudgetAmount: sum(mapping.BudgetEvents, planning, "budget"),
		ActualAmount: sum(mapping.ActualEvents, execution, "actual"),
	}, warnings
}

// FallbackMapping synthesizes the standard 1:1 mapping for a line with no
// explicit override. The actual side is always the unmodified standard
// code list; the budget side is each code's planning variant. An empty
// code list yields an empty (not nil) mapping.
func FallbackMapping(lineCode string, standardEventCodes []string) BudgetActualMapping {
	budget := make([]string, 0, len(standardEventCodes))
	actual := make([]string, 0, len(standardEventCodes))
	for _, code := range standardEventCodes {
		if strings.HasSuffix(code, PlanningSuffix) {
			budget = append(budget, code)
		} else {
			budget = append(budget, code+PlanningSuffix)
		}
		actual = append(actual, code)
	}
	return BudgetActualMapping{LineCode: lineCode, BudgetEvents: budget, ActualEvents: actual}
}

// =============================================================================
// VALIDATION
// =============================================================================

// MissingEvent identifies one mapped code absent from a period's amounts.
type MissingEvent struct {
	LineCode  string
	EventCode string
	Side      string // "budget" or "actual"
}

// MappingReport is the outcome of per-period mapping validation.
// Missing-for-this-period events are informational: they do not flip
// IsValid, because facilities legitimately record no activity for some
// codes in some periods.
type MappingReport struct {
	IsValid       bool
	MissingEvents []MissingEvent
	Warnings      []Warning
}

// ValidateMappings checks every configured mapping against the period's
// planning and execution amount maps.
func (m *Mapper) ValidateMappings(planning, execution map[string]decimal.Decimal) MappingReport {
	report := MappingReport{IsValid: true}

	for lineCode, mapping := range m.mappings {
		for _, code := range mapping.BudgetEvents {
			if _, ok := planning[code]; !ok {
				report.MissingEvents = append(report.MissingEvents, MissingEvent{
					LineCode: lineCode, EventCode: code, Side: "budget",
				})
			}
		}
		for _, code := range mapping.ActualEvents {
			if _, ok := execution[code]; !ok {
				report.MissingEvents = append(report.MissingEvents, MissingEvent{
					LineCode: lineCode, EventCode: code, Side: "actual",
				})
			}
		}

		if len(mapping.BudgetEvents) == 0 {
			report.Warnings = append(report.Warnings, Warning{
				Code:    "empty_mapping_side",
				Line:    lineCode,
				Message: "mapping declares no budget events; budget column will always be 0",
			})
		}
		if len(mapping.ActualEvents) == 0 {
			report.Warnings = append(report.Warnings, Warning{
				Code:    "empty_mapping_side",
				Line:    lineCode,
				Message: "mapping declares no actual events; actual column will always be 0",
			})
		}
	}

	return report
}

// CatalogReport is the outcome of the stricter configuration-time check.
type CatalogReport struct {
	IsValid       bool
	InvalidEvents []string
	AffectedLines []string
}

// ValidateEventCodesExist checks every mapped event code against the full
// catalog of known event codes. Unlike per-period validation, a code that
// the catalog has never heard of is an invalid reference: IsValid becomes
// false. This gates template publishing, not per-period computation.
func (m *Mapper) ValidateEventCodesExist(catalog map[string]struct{}) CatalogReport {
	invalidSet := make(map[string]struct{})
	affectedSet := make(map[string]struct{})

	for lineCode, mapping := range m.mappings {
		for _, code := range append(append([]string{}, mapping.BudgetEvents...), mapping.ActualEvents...) {
			if _, ok := catalog[code]; !ok {
				invalidSet[code] = struct{}{}
				affectedSet[lineCode] = struct{}{}
			}
		}
	}

	report := CatalogReport{IsValid: len(invalidSet) == 0}
	for code := range invalidSet {
		report.InvalidEvents = append(report.InvalidEvents, code)
	}
	for line := range affectedSet {
		report.AffectedLines = append(report.AffectedLines, line)
	}
	sort.Strings(report.InvalidEvents)
	sort.Strings(report.AffectedLines)
	return report
}
