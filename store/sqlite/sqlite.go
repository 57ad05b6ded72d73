/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces (statement.TemplateStore,
  statement.EventAmountSource, report.Store) using SQLite. In production,
  the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

KEY TABLES:
  template_lines:    Declarative statement row definitions
  event_mappings:    Budget-vs-actual event mappings per line
  event_catalog:     Full catalog of known event codes
  event_amounts:     Raw planning/execution amounts per facility/period
  reports:           Report entities with status and frozen data
  workflow_history:  Append-only transition records

APPEND-ONLY ENFORCEMENT:
  workflow_history rows are only ever inserted. Update() appends the
  entries a transition added and never touches existing ones.

GUARDED TRANSITIONS:
  Update() writes the report row with "WHERE id = ? AND status = ?". A
  concurrent transition that already moved the status makes the UPDATE
  match zero rows, which surfaces as report.ErrConflict - two concurrent
  transitions from the same source state cannot both succeed.

AMOUNT STORAGE:
  Decimal amounts are stored as TEXT and parsed with shopspring/decimal
  to avoid floating-point drift.

USAGE:
  store, err := sqlite.New("./data/statements.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - statement/template.go: TemplateStore contract
  - report/service.go: Store contract
  - statement/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/statement-engine/report"
	"github.com/warp/statement-engine/statement"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS template_lines (
		statement_code   TEXT NOT NULL,
		line_code        TEXT NOT NULL,
		title            TEXT NOT NULL,
		parent_line_code TEXT NOT NULL DEFAULT '',
		level            INTEGER NOT NULL,
		display_order    INTEGER NOT NULL,
		event_codes      TEXT NOT NULL DEFAULT '[]',
		is_total_line    INTEGER NOT NULL DEFAULT 0,
		is_subtotal_line INTEGER NOT NULL DEFAULT 0,
		formula          TEXT NOT NULL DEFAULT '',
		aggregation      TEXT NOT NULL DEFAULT 'SUM',
		nature           TEXT NOT NULL DEFAULT '',
		metadata         TEXT NOT NULL DEFAULT '{}',
		PRIMARY KEY (statement_code, line_code)
	);

	CREATE TABLE IF NOT EXISTS event_mappings (
		statement_code TEXT NOT NULL,
		line_code      TEXT NOT NULL,
		budget_events  TEXT NOT NULL DEFAULT '[]',
		actual_events  TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (statement_code, line_code)
	);

	CREATE TABLE IF NOT EXISTS event_catalog (
		code TEXT PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS event_amounts (
		kind        TEXT NOT NULL,
		facility_id TEXT NOT NULL,
		period_id   TEXT NOT NULL,
		event_code  TEXT NOT NULL,
		amount      TEXT NOT NULL,
		PRIMARY KEY (kind, facility_id, period_id, event_code)
	);

	CREATE TABLE IF NOT EXISTS reports (
		id             TEXT PRIMARY KEY,
		statement_code TEXT NOT NULL,
		facility_id    TEXT NOT NULL,
		period_id      TEXT NOT NULL,
		kind           TEXT NOT NULL,
		status         TEXT NOT NULL,
		report_data    TEXT,
		submitted_at   TEXT,
		submitted_by   TEXT NOT NULL DEFAULT '',
		approved_at    TEXT,
		approved_by    TEXT NOT NULL DEFAULT '',
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);
	CREATE INDEX IF NOT EXISTS idx_reports_scope
		ON reports(statement_code, facility_id, period_id);

	-- Append-only: rows are inserted, never updated or deleted.
	CREATE TABLE IF NOT EXISTS workflow_history (
		id                TEXT PRIMARY KEY,
		report_id         TEXT NOT NULL,
		seq               INTEGER NOT NULL,
		action            TEXT NOT NULL,
		action_by         TEXT NOT NULL,
		action_at         TEXT NOT NULL,
		from_status       TEXT NOT NULL,
		to_status         TEXT NOT NULL,
		comments          TEXT NOT NULL DEFAULT '',
		attachments       TEXT NOT NULL DEFAULT '[]',
		validation_errors TEXT NOT NULL DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_history_report ON workflow_history(report_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TEMPLATE STORE
// =============================================================================

// PutTemplate validates and replaces the full line list for a statement.
func (s *Store) PutTemplate(ctx context.Context, statementCode string, lines []statement.TemplateLine) ([]statement.Warning, error) {
	warnings, err := statement.ValidateLines(lines)
	if err != nil {
		return warnings, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return warnings, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM template_lines WHERE statement_code = ?`, statementCode); err != nil {
		return warnings, err
	}
	for _, l := range lines {
		events, _ := json.Marshal(orEmpty(l.EventCodes))
		metadata, _ := json.Marshal(l.Metadata)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO template_lines
			(statement_code, line_code, title, parent_line_code, level, display_order,
			 event_codes, is_total_line, is_subtotal_line, formula, aggregation, nature, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			statementCode, l.LineCode, l.Title, l.ParentLineCode, l.Level, l.DisplayOrder,
			string(events), boolToInt(l.IsTotalLine), boolToInt(l.IsSubtotalLine),
			l.CalculationFormula, string(l.Aggregation()), string(l.Nature), string(metadata))
		if err != nil {
			return warnings, err
		}
	}
	return warnings, tx.Commit()
}

// GetTemplate returns the ordered line list for a statement code.
func (s *Store) GetTemplate(ctx context.Context, statementCode string) ([]statement.TemplateLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT line_code, title, parent_line_code, level, display_order,
		       event_codes, is_total_line, is_subtotal_line, formula, aggregation, nature, metadata
		FROM template_lines
		WHERE statement_code = ?
		ORDER BY level, display_order, line_code`, statementCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []statement.TemplateLine
	for rows.Next() {
		var l statement.TemplateLine
		var events, metadata, aggregation, nature string
		var isTotal, isSubtotal int
		if err := rows.Scan(&l.LineCode, &l.Title, &l.ParentLineCode, &l.Level, &l.DisplayOrder,
			&events, &isTotal, &isSubtotal, &l.CalculationFormula, &aggregation, &nature, &metadata); err != nil {
			return nil, err
		}
		l.StatementCode = statementCode
		l.IsTotalLine = isTotal != 0
		l.IsSubtotalLine = isSubtotal != 0
		l.AggregationMethod = statement.AggregationMethod(aggregation)
		l.Nature = statement.AccountingNature(nature)
		if err := json.Unmarshal([]byte(events), &l.EventCodes); err != nil {
			return nil, err
		}
		if l.EventCodes == nil {
			l.EventCodes = []string{}
		}
		if metadata != "" && metadata != "{}" {
			if err := json.Unmarshal([]byte(metadata), &l.Metadata); err != nil {
				return nil, err
			}
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, statement.ErrTemplateNotFound
	}
	return lines, nil
}

// PutMappings replaces the budget-vs-actual mappings for a statement.
func (s *Store) PutMappings(ctx context.Context, statementCode string, mappings []statement.BudgetActualMapping) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM event_mappings WHERE statement_code = ?`, statementCode); err != nil {
		return err
	}
	for _, m := range mappings {
		budget, _ := json.Marshal(orEmpty(m.BudgetEvents))
		actual, _ := json.Marshal(orEmpty(m.ActualEvents))
		_, err := tx.ExecContext(ctx, `
			INSERT INTO event_mappings (statement_code, line_code, budget_events, actual_events)
			VALUES (?, ?, ?, ?)`,
			statementCode, m.LineCode, string(budget), string(actual))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetMappings returns mappings keyed by line code; empty map when none.
func (s *Store) GetMappings(ctx context.Context, statementCode string) (map[string]statement.BudgetActualMapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT line_code, budget_events, actual_events
		FROM event_mappings WHERE statement_code = ?`, statementCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]statement.BudgetActualMapping)
	for rows.Next() {
		var m statement.BudgetActualMapping
		var budget, actual string
		if err := rows.Scan(&m.LineCode, &budget, &actual); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(budget), &m.BudgetEvents); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(actual), &m.ActualEvents); err != nil {
			return nil, err
		}
		out[m.LineCode] = m
	}
	return out, rows.Err()
}

// =============================================================================
// EVENT CATALOG & AMOUNTS
// =============================================================================

// SetCatalog replaces the full catalog of known event codes.
func (s *Store) SetCatalog(ctx context.Context, codes []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM event_catalog`); err != nil {
		return err
	}
	for _, c := range codes {
		if _, err := tx.ExecContext(ctx, `INSERT INTO event_catalog (code) VALUES (?)`, c); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Catalog returns the known event codes as a set.
func (s *Store) Catalog(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code FROM event_catalog`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		out[code] = struct{}{}
	}
	return out, rows.Err()
}

// SetAmount records one event amount (upsert).
func (s *Store) SetAmount(ctx context.Context, kind statement.AmountKind, facilityID, periodID, eventCode string, amount decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO event_amounts (kind, facility_id, period_id, event_code, amount)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (kind, facility_id, period_id, event_code)
		DO UPDATE SET amount = excluded.amount`,
		string(kind), facilityID, periodID, eventCode, amount.String())
	return err
}

// GetAmounts returns the recorded amounts for a facility/period. Scopes
// with no activity yield an empty map, never an error.
func (s *Store) GetAmounts(ctx context.Context, kind statement.AmountKind, facilityID, periodID string) (map[string]decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_code, amount FROM event_amounts
		WHERE kind = ? AND facility_id = ? AND period_id = ?`,
		string(kind), facilityID, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]decimal.Decimal)
	for rows.Next() {
		var code, raw string
		if err := rows.Scan(&code, &raw); err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount for event %s: %w", code, err)
		}
		out[code] = amount
	}
	return out, rows.Err()
}

// =============================================================================
// REPORT STORE
// =============================================================================

// Create inserts a new report.
func (s *Store) Create(ctx context.Context, r *report.Report) error {
	data, err := marshalData(r.ReportData)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports
		(id, statement_code, facility_id, period_id, kind, status, report_data,
		 submitted_at, submitted_by, approved_at, approved_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StatementCode, r.FacilityID, r.PeriodID, string(r.Kind), string(r.Status), data,
		timePtr(r.SubmittedAt), r.SubmittedBy, timePtr(r.ApprovedAt), r.ApprovedBy,
		r.CreatedAt.Format(time.RFC3339Nano), r.UpdatedAt.Format(time.RFC3339Nano))
	return err
}

// Get loads a report with its full workflow history.
func (s *Store) Get(ctx context.Context, id string) (*report.Report, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, statement_code, facility_id, period_id, kind, status, report_data,
		       submitted_at, submitted_by, approved_at, approved_by, created_at, updated_at
		FROM reports WHERE id = ?`, id)

	var r report.Report
	var kind, status, createdAt, updatedAt string
	var data, submittedAt, approvedAt sql.NullString
	err := row.Scan(&r.ID, &r.StatementCode, &r.FacilityID, &r.PeriodID, &kind, &status, &data,
		&submittedAt, &r.SubmittedBy, &approvedAt, &r.ApprovedBy, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, report.ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}

	r.Kind = report.Kind(kind)
	r.Status = report.Status(status)
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	if r.SubmittedAt, err = parseTimePtr(submittedAt); err != nil {
		return nil, err
	}
	if r.ApprovedAt, err = parseTimePtr(approvedAt); err != nil {
		return nil, err
	}
	if data.Valid && data.String != "" {
		var rd report.ReportData
		if err := json.Unmarshal([]byte(data.String), &rd); err != nil {
			return nil, fmt.Errorf("corrupt report data for %s: %w", id, err)
		}
		r.ReportData = &rd
	}

	history, err := s.loadHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	r.WorkflowHistory = history
	return &r, nil
}

// Update writes the report guarded by the expected status and appends any
// new history entries. A lost race returns report.ErrConflict.
func (s *Store) Update(ctx context.Context, r *report.Report, expected report.Status) error {
	data, err := marshalData(r.ReportData)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE reports SET
			status = ?, report_data = ?,
			submitted_at = ?, submitted_by = ?, approved_at = ?, approved_by = ?,
			updated_at = ?
		WHERE id = ? AND status = ?`,
		string(r.Status), data,
		timePtr(r.SubmittedAt), r.SubmittedBy, timePtr(r.ApprovedAt), r.ApprovedBy,
		r.UpdatedAt.Format(time.RFC3339Nano),
		r.ID, string(expected))
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the report is gone or another transition won the race.
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports WHERE id = ?`, r.ID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return report.ErrReportNotFound
		}
		return report.ErrConflict
	}

	var stored int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM workflow_history WHERE report_id = ?`, r.ID).Scan(&stored); err != nil {
		return err
	}
	for i := stored; i < len(r.WorkflowHistory); i++ {
		e := r.WorkflowHistory[i]
		attachments, _ := json.Marshal(orEmpty(e.Attachments))
		validationErrors, _ := json.Marshal(orEmpty(e.ValidationErrors))
		_, err := tx.ExecContext(ctx, `
			INSERT INTO workflow_history
			(id, report_id, seq, action, action_by, action_at, from_status, to_status,
			 comments, attachments, validation_errors)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, r.ID, i, string(e.Action), e.ActionBy, e.ActionAt.Format(time.RFC3339Nano),
			string(e.FromStatus), string(e.ToStatus), e.Comments,
			string(attachments), string(validationErrors))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveData stores freshly computed report data without touching status or
// history.
func (s *Store) SaveData(ctx context.Context, id string, data *report.ReportData) error {
	raw, err := marshalData(data)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `UPDATE reports SET report_data = ? WHERE id = ?`, raw, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return report.ErrReportNotFound
	}
	return nil
}

// ListReports returns the reports recorded for a statement code (listing
// surface for the API layer).
func (s *Store) ListReports(ctx context.Context, statementCode string) ([]*report.Report, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM reports WHERE statement_code = ? ORDER BY created_at`, statementCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reports := make([]*report.Report, 0, len(ids))
	for _, id := range ids {
		r, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func (s *Store) loadHistory(ctx context.Context, reportID string) ([]report.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, action_by, action_at, from_status, to_status,
		       comments, attachments, validation_errors
		FROM workflow_history WHERE report_id = ? ORDER BY seq`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []report.HistoryEntry
	for rows.Next() {
		var e report.HistoryEntry
		var action, from, to, actionAt, attachments, validationErrors string
		if err := rows.Scan(&e.ID, &action, &e.ActionBy, &actionAt, &from, &to,
			&e.Comments, &attachments, &validationErrors); err != nil {
			return nil, err
		}
		e.Action = report.Action(action)
		e.FromStatus = report.Status(from)
		e.ToStatus = report.Status(to)
		if e.ActionAt, err = time.Parse(time.RFC3339Nano, actionAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(attachments), &e.Attachments); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(validationErrors), &e.ValidationErrors); err != nil {
			return nil, err
		}
		history = append(history, e)
	}
	return history, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func marshalData(data *report.ReportData) (sql.NullString, error) {
	if data == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func timePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
