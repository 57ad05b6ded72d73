// Package store provides in-memory implementations of the engine's store
// contracts, for tests and development. The SQLite implementations live
// in store/sqlite.
package store

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/statement-engine/report"
	"github.com/warp/statement-engine/statement"
)

// =============================================================================
// MEMORY TEMPLATE STORE
// =============================================================================

// MemoryTemplates holds statement templates, mappings, and the event
// catalog in memory.
type MemoryTemplates struct {
	mu       sync.RWMutex
	lines    map[string][]statement.TemplateLine          // statementCode -> ordered lines
	mappings map[string]map[string]statement.BudgetActualMapping // statementCode -> lineCode -> mapping
	catalog  map[string]struct{}
}

func NewMemoryTemplates() *MemoryTemplates {
	return &MemoryTemplates{
		lines:    make(map[string][]statement.TemplateLine),
		mappings: make(map[string]map[string]statement.BudgetActualMapping),
		catalog:  make(map[string]struct{}),
	}
}

// PutTemplate validates and stores the full line list for a statement.
// Returns validation warnings; fatal violations reject the whole batch.
func (m *MemoryTemplates) PutTemplate(_ context.Context, statementCode string, lines []statement.TemplateLine) ([]statement.Warning, error) {
	warnings, err := statement.ValidateLines(lines)
	if err != nil {
		return warnings, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]statement.TemplateLine, len(lines))
	copy(stored, lines)
	for i := range stored {
		stored[i].StatementCode = statementCode
		if stored[i].EventCodes == nil {
			stored[i].EventCodes = []string{}
		}
	}
	m.lines[statementCode] = stored
	return warnings, nil
}

func (m *MemoryTemplates) GetTemplate(_ context.Context, statementCode string) ([]statement.TemplateLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lines, ok := m.lines[statementCode]
	if !ok {
		return nil, statement.ErrTemplateNotFound
	}
	out := make([]statement.TemplateLine, len(lines))
	copy(out, lines)
	return out, nil
}

// PutMappings replaces the budget-vs-actual mappings for a statement.
func (m *MemoryTemplates) PutMappings(_ context.Context, statementCode string, mappings []statement.BudgetActualMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byLine := make(map[string]statement.BudgetActualMapping, len(mappings))
	for _, mapping := range mappings {
		byLine[mapping.LineCode] = mapping
	}
	m.mappings[statementCode] = byLine
	return nil
}

func (m *MemoryTemplates) GetMappings(_ context.Context, statementCode string) (map[string]statement.BudgetActualMapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]statement.BudgetActualMapping, len(m.mappings[statementCode]))
	for k, v := range m.mappings[statementCode] {
		out[k] = v
	}
	return out, nil
}

// SetCatalog replaces the full catalog of known event codes.
func (m *MemoryTemplates) SetCatalog(codes []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalog = make(map[string]struct{}, len(codes))
	for _, c := range codes {
		m.catalog[c] = struct{}{}
	}
}

// Catalog returns the known event codes as a set.
func (m *MemoryTemplates) Catalog(_ context.Context) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]struct{}, len(m.catalog))
	for c := range m.catalog {
		out[c] = struct{}{}
	}
	return out, nil
}

// =============================================================================
// MEMORY AMOUNT SOURCE
// =============================================================================

type amountKey struct {
	Kind       statement.AmountKind
	FacilityID string
	PeriodID   string
}

// MemoryAmounts is an in-memory EventAmountSource.
type MemoryAmounts struct {
	mu      sync.RWMutex
	amounts map[amountKey]map[string]decimal.Decimal
}

func NewMemoryAmounts() *MemoryAmounts {
	return &MemoryAmounts{amounts: make(map[amountKey]map[string]decimal.Decimal)}
}

// Set records one event amount.
func (m *MemoryAmounts) Set(kind statement.AmountKind, facilityID, periodID, eventCode string, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := amountKey{Kind: kind, FacilityID: facilityID, PeriodID: periodID}
	if m.amounts[k] == nil {
		m.amounts[k] = make(map[string]decimal.Decimal)
	}
	m.amounts[k][eventCode] = amount
}

// GetAmounts returns the recorded amounts for a facility/period. Missing
// scopes yield an empty map, never an error.
func (m *MemoryAmounts) GetAmounts(_ context.Context, kind statement.AmountKind, facilityID, periodID string) (map[string]decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k := amountKey{Kind: kind, FacilityID: facilityID, PeriodID: periodID}
	out := make(map[string]decimal.Decimal, len(m.amounts[k]))
	for code, amount := range m.amounts[k] {
		out[code] = amount
	}
	return out, nil
}

// =============================================================================
// MEMORY REPORT STORE
// =============================================================================

// MemoryReports implements report.Store with guarded status writes: an
// Update whose expected status no longer matches the stored one fails
// with report.ErrConflict, so two concurrent transitions from the same
// source state cannot both succeed.
type MemoryReports struct {
	mu      sync.Mutex
	reports map[string]*report.Report
}

func NewMemoryReports() *MemoryReports {
	return &MemoryReports{reports: make(map[string]*report.Report)}
}

func (m *MemoryReports) Create(_ context.Context, r *report.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[r.ID] = cloneReport(r)
	return nil
}

func (m *MemoryReports) Get(_ context.Context, id string) (*report.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, report.ErrReportNotFound
	}
	return cloneReport(r), nil
}

func (m *MemoryReports) Update(_ context.Context, r *report.Report, expected report.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.reports[r.ID]
	if !ok {
		return report.ErrReportNotFound
	}
	if stored.Status != expected {
		return report.ErrConflict
	}
	m.reports[r.ID] = cloneReport(r)
	return nil
}

func (m *MemoryReports) SaveData(_ context.Context, id string, data *report.ReportData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.reports[id]
	if !ok {
		return report.ErrReportNotFound
	}
	stored.ReportData = data
	return nil
}

// List returns all stored reports (development/API listing helper).
func (m *MemoryReports) List(_ context.Context) ([]*report.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*report.Report, 0, len(m.reports))
	for _, r := range m.reports {
		out = append(out, cloneReport(r))
	}
	return out, nil
}

func cloneReport(r *report.Report) *report.Report {
	out := *r
	out.WorkflowHistory = append([]report.HistoryEntry(nil), r.WorkflowHistory...)
	if r.SubmittedAt != nil {
		t := *r.SubmittedAt
		out.SubmittedAt = &t
	}
	if r.ApprovedAt != nil {
		t := *r.ApprovedAt
		out.ApprovedAt = &t
	}
	// ReportData is treated as immutable once attached; the pointer is
	// shared rather than deep-copied.
	return &out
}
